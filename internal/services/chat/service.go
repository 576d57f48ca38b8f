// Package chat handles the user side of a conversation: hotel queries, cancelling the
// request in flight and creating orders.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi"
	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/BearBump/HotelAssist/internal/transcript"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Assistant texts written by the conversation.
const (
	TextAborted      = "Request is aborted"
	TextFailed       = "Request failed, please try again!"
	TextUnpaidOrder  = "You have an unpaid order, please complete the payment first"
	TextNoResults    = "No hotels matched your request."
	TextOrderCreated = "Order created, please scan the QR code to pay"
)

var (
	ErrEmptyQuery      = errors.New("query is empty")
	ErrRequestInFlight = errors.New("a request is already in progress")
	ErrUnpaidOrder     = errors.New("unpaid order pending")
	ErrCancelled       = errors.New("request cancelled")
	ErrClosed          = errors.New("conversation closed")
)

type Client interface {
	QueryHotels(ctx context.Context, query string) (models.HotelResults, error)
	CreateAndPayOrder(ctx context.Context, req models.OrderRequest) (models.OrderCreated, error)
}

// OrderRegistrar starts payment polling for a freshly created order.
type OrderRegistrar interface {
	Register(orderNo string) bool
}

type request struct {
	id     string
	cancel context.CancelFunc
}

type Service struct {
	client  Client
	store   *transcript.Store
	watcher OrderRegistrar

	// base outlives a single HTTP call; background requests hang off it.
	base      context.Context
	closeBase context.CancelFunc

	orderMu sync.Mutex

	mu       sync.Mutex
	inflight *request
	closed   bool
	wg       sync.WaitGroup
}

func New(client Client, store *transcript.Store, watcher OrderRegistrar) *Service {
	base, cancel := context.WithCancel(context.Background())
	return &Service{
		client:    client,
		store:     store,
		watcher:   watcher,
		base:      base,
		closeBase: cancel,
	}
}

// Busy reports whether a query is in flight.
func (s *Service) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight != nil
}

func (s *Service) begin(ctx context.Context) (*request, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, nil, ErrClosed
	}
	if s.inflight != nil {
		return nil, nil, ErrRequestInFlight
	}
	rctx, cancel := context.WithCancel(ctx)
	r := &request{id: uuid.NewString(), cancel: cancel}
	s.inflight = r
	return r, rctx, nil
}

// end clears r and reports whether it was still the request in flight,
// i.e. nobody cancelled it meanwhile.
func (s *Service) end(r *request) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.cancel()
	if s.inflight != r {
		return false
	}
	s.inflight = nil
	return true
}

// Send runs a hotel query and waits for it. The user entry and a pending assistant
// placeholder are appended first; the placeholder is resolved in place.
func (s *Service) Send(ctx context.Context, query string) (transcript.Entry, error) {
	r, rctx, _, err := s.start(ctx, query)
	if err != nil {
		return transcript.Entry{}, err
	}
	return s.run(rctx, r, strings.TrimSpace(query))
}

// Submit is Send without waiting: it returns the pending placeholder and resolves it
// in the background.
func (s *Service) Submit(query string) (transcript.Entry, error) {
	r, rctx, placeholder, err := s.start(s.base, query)
	if err != nil {
		return transcript.Entry{}, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.run(rctx, r, strings.TrimSpace(query))
	}()
	return placeholder, nil
}

func (s *Service) start(ctx context.Context, query string) (*request, context.Context, transcript.Entry, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil, transcript.Entry{}, ErrEmptyQuery
	}
	r, rctx, err := s.begin(ctx)
	if err != nil {
		return nil, nil, transcript.Entry{}, err
	}
	s.store.Append(transcript.Entry{Role: transcript.RoleUser, Text: q})
	placeholder := s.store.Append(transcript.Entry{
		Role:      transcript.RoleAssistant,
		Status:    transcript.StatusPending,
		RequestID: r.id,
	})
	return r, rctx, placeholder, nil
}

func (s *Service) run(ctx context.Context, r *request, query string) (transcript.Entry, error) {
	res, err := s.client.QueryHotels(ctx, query)
	if !s.end(r) {
		return transcript.Entry{}, ErrCancelled
	}

	pred := transcript.ByRequestID(r.id)
	if err != nil {
		slog.Error("hotel query", "request_id", r.id, "error", err.Error())
		s.store.Mutate(pred, func(e *transcript.Entry) {
			e.Status = transcript.StatusError
			e.Text = TextFailed
		})
		got, _ := s.store.Find(pred)
		return got, errors.Wrap(err, "query hotels")
	}

	s.store.Mutate(pred, func(e *transcript.Entry) {
		e.Status = transcript.StatusDone
		if res.HasOffers() {
			e.Kind = transcript.KindHotels
			hotels := res
			e.Hotels = &hotels
			e.Text = res.Summary
			return
		}
		e.Kind = transcript.KindText
		e.Text = res.Summary
		if e.Text == "" {
			e.Text = TextNoResults
		}
	})
	got, _ := s.store.Find(pred)
	return got, nil
}

// Cancel aborts the query in flight, removes its placeholder and tells the user.
// Payment and notification polling are not affected. It reports whether anything
// was cancelled.
func (s *Service) Cancel() bool {
	s.mu.Lock()
	r := s.inflight
	s.inflight = nil
	s.mu.Unlock()
	if r == nil {
		return false
	}

	r.cancel()
	s.store.Remove(transcript.ByRequestID(r.id))
	s.store.Append(transcript.Entry{Role: transcript.RoleAssistant, Text: TextAborted})
	slog.Info("chat request aborted", "request_id", r.id)
	return true
}

// CreateOrder books the room and, on success, appends an order entry awaiting payment
// and hands it to the payment watcher. Only one unpaid order may exist at a time.
func (s *Service) CreateOrder(ctx context.Context, req models.OrderRequest) (transcript.Entry, error) {
	// One order at a time, so two submissions cannot both pass the unpaid check.
	s.orderMu.Lock()
	defer s.orderMu.Unlock()

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return transcript.Entry{}, ErrClosed
	}
	if _, pending := s.store.Find(transcript.AwaitingPayment()); pending {
		e := s.store.Append(transcript.Entry{Role: transcript.RoleAssistant, Text: TextUnpaidOrder})
		return e, ErrUnpaidOrder
	}
	if req.PaymentType == 0 {
		req.PaymentType = models.PaymentTypeAlipay
	}

	created, err := s.client.CreateAndPayOrder(ctx, req)
	if err != nil {
		text, status := TextFailed, transcript.StatusError
		var be *hotelapi.BusinessError
		if errors.As(err, &be) {
			status = transcript.StatusDone
			if be.Msg != "" {
				text = be.Msg
			}
		}
		slog.Error("create order", "hotel_id", req.HotelID, "error", err.Error())
		e := s.store.Append(transcript.Entry{Role: transcript.RoleAssistant, Status: status, Text: text})
		return e, err
	}

	e := s.store.Append(transcript.Entry{
		Role: transcript.RoleAssistant,
		Kind: transcript.KindOrder,
		Text: TextOrderCreated,
		Order: &models.OrderPayload{
			OrderNo:      created.OrderNo,
			QRCodeURL:    created.QRCodeURL,
			HotelName:    req.HotelName,
			RoomType:     req.RoomType,
			CheckInDate:  req.CheckInDate,
			CheckOutDate: req.CheckOutDate,
			GuestNames:   append([]string(nil), req.GuestNames...),
			Amount:       req.OrderAmount,
			OrderStatus:  models.OrderStatusAwaitingPayment,
			PayStatus:    models.PayStatusUnpaid,
			PaymentType:  models.PaymentTypeName(created.PaymentType),
			CreateTime:   created.CreatedAt.Format("2006-01-02 15:04:05"),
		},
	})
	if s.watcher != nil {
		s.watcher.Register(created.OrderNo)
	}
	slog.Info("order created", "order_no", created.OrderNo, "hotel_id", req.HotelID)
	return e, nil
}

// Close cancels the request in flight without writing to the transcript and waits for
// background queries to return.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	r := s.inflight
	s.inflight = nil
	s.mu.Unlock()
	if r != nil {
		r.cancel()
	}
	s.closeBase()
	s.wg.Wait()
}
