package journal_api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/BearBump/HotelAssist/internal/services/journal"
	"github.com/BearBump/HotelAssist/internal/storage/pgjournal"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type JournalAPI struct {
	svc *journal.Service
}

func New(svc *journal.Service) *JournalAPI {
	return &JournalAPI{svc: svc}
}

func (a *JournalAPI) Register(r chi.Router) {
	r.Get("/v1/orders/{orderNo}", a.getOrder)
	r.Get("/v1/sessions/{id}/notifications", a.listNotifications)
}

type notificationsResponse struct {
	SessionID     string                          `json:"sessionId"`
	Notifications []*models.DeliveredNotification `json:"notifications"`
}

func (a *JournalAPI) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := a.svc.GetPaymentOutcome(r.Context(), chi.URLParam(r, "orderNo"))
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, pgjournal.ErrNotFound) {
			code = http.StatusNotFound
		}
		writeJSON(w, code, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (a *JournalAPI) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", defaultLimit)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if limit <= 0 || limit > maxLimit {
		limit = defaultLimit
	}

	id := chi.URLParam(r, "id")
	list, err := a.svc.ListNotifications(r.Context(), id, limit, offset)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if list == nil {
		list = []*models.DeliveredNotification{}
	}
	writeJSON(w, http.StatusOK, notificationsResponse{SessionID: id, Notifications: list})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.Errorf("invalid %s %q", name, v)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err.Error())
	}
}
