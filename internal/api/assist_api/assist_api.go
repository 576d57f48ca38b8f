package assist_api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi"
	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/BearBump/HotelAssist/internal/services/chat"
	"github.com/BearBump/HotelAssist/internal/services/payments"
	"github.com/BearBump/HotelAssist/internal/services/sessions"
	"github.com/BearBump/HotelAssist/internal/transcript"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

type AssistAPI struct {
	mgr *sessions.Manager
}

func New(mgr *sessions.Manager) *AssistAPI {
	return &AssistAPI{mgr: mgr}
}

// Register mounts the session routes on r.
func (a *AssistAPI) Register(r chi.Router) {
	r.Route("/v1/sessions/{id}", func(r chi.Router) {
		r.Post("/", a.openSession)
		r.Delete("/", a.closeSession)
		r.Post("/switch/{to}", a.switchSession)
		r.Get("/transcript", a.getTranscript)
		r.Post("/messages", a.sendMessage)
		r.Delete("/messages/pending", a.cancelMessage)
		r.Post("/orders", a.createOrder)
		r.Get("/payments", a.listPayments)
		r.Get("/notifications/unread", a.unread)
		r.Post("/notifications/read", a.markRead)
	})
}

type sessionResponse struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
}

type transcriptResponse struct {
	SessionID string             `json:"sessionId"`
	Version   uint64             `json:"version"`
	Busy      bool               `json:"busy"`
	Entries   []transcript.Entry `json:"entries"`
}

type messageRequest struct {
	Query string `json:"query"`
	// Async returns the pending placeholder right away instead of waiting for the answer.
	Async bool `json:"async,omitempty"`
}

type entryResponse struct {
	Entry transcript.Entry `json:"entry"`
	Error string           `json:"error,omitempty"`
}

type paymentsResponse struct {
	Policy  policyView            `json:"policy"`
	Records []payments.PollRecord `json:"records"`
}

type policyView struct {
	FirstDelay string `json:"firstDelay"`
	Interval   string `json:"interval"`
	Window     string `json:"window"`
	MaxPolls   int    `json:"maxPolls"`
}

func (a *AssistAPI) openSession(w http.ResponseWriter, r *http.Request) {
	s, created, err := a.mgr.Open(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	code := http.StatusOK
	if created {
		code = http.StatusCreated
	}
	writeJSON(w, code, sessionResponse{ID: s.ID, Created: created})
}

func (a *AssistAPI) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := a.mgr.Close(chi.URLParam(r, "id")); err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *AssistAPI) switchSession(w http.ResponseWriter, r *http.Request) {
	s, err := a.mgr.Switch(chi.URLParam(r, "id"), chi.URLParam(r, "to"))
	if err != nil {
		writeError(w, statusOf(err), err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{ID: s.ID})
}

func (a *AssistAPI) getTranscript(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, transcriptResponse{
		SessionID: s.ID,
		Version:   s.Store.Version(),
		Busy:      s.Chat.Busy(),
		Entries:   s.Store.Snapshot(),
	})
}

func (a *AssistAPI) sendMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode message"))
		return
	}

	if req.Async {
		e, err := s.Chat.Submit(req.Query)
		if err != nil {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, http.StatusAccepted, entryResponse{Entry: e})
		return
	}

	e, err := s.Chat.Send(r.Context(), req.Query)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, entryResponse{Entry: e})
	case e.ID != "":
		// The placeholder was resolved to an error entry.
		writeJSON(w, http.StatusBadGateway, entryResponse{Entry: e, Error: err.Error()})
	default:
		writeError(w, statusOf(err), err)
	}
}

func (a *AssistAPI) cancelMessage(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cancelled": s.Chat.Cancel()})
}

func (a *AssistAPI) createOrder(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "decode order"))
		return
	}

	e, err := s.Chat.CreateOrder(r.Context(), req)
	if err != nil {
		if e.ID == "" {
			writeError(w, statusOf(err), err)
			return
		}
		writeJSON(w, statusOf(err), entryResponse{Entry: e, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, entryResponse{Entry: e})
}

func (a *AssistAPI) listPayments(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	p := s.Payments.Policy()
	writeJSON(w, http.StatusOK, paymentsResponse{
		Policy: policyView{
			FirstDelay: p.FirstDelay.String(),
			Interval:   p.Interval.String(),
			Window:     p.Window.String(),
			MaxPolls:   p.MaxPolls(),
		},
		Records: s.Payments.Records(),
	})
}

func (a *AssistAPI) unread(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"unread": s.Notifications.Unread()})
}

func (a *AssistAPI) markRead(w http.ResponseWriter, r *http.Request) {
	s, ok := a.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"cleared": s.Notifications.ResetUnread()})
}

func (a *AssistAPI) session(w http.ResponseWriter, r *http.Request) (*sessions.Session, bool) {
	s, err := a.mgr.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, statusOf(err), err)
		return nil, false
	}
	return s, true
}

func statusOf(err error) int {
	var be *hotelapi.BusinessError
	switch {
	case errors.Is(err, sessions.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, sessions.ErrBadID), errors.Is(err, chat.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrRequestInFlight), errors.Is(err, chat.ErrUnpaidOrder):
		return http.StatusConflict
	case errors.Is(err, chat.ErrCancelled), errors.Is(err, chat.ErrClosed):
		return http.StatusGone
	case errors.Is(err, sessions.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.As(err, &be):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err.Error())
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
