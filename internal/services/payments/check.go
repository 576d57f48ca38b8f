package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/HotelAssist/internal/broker/messages"
	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/BearBump/HotelAssist/internal/transcript"
	"github.com/pkg/errors"
)

// Transcript texts written by the watchers.
const (
	SummaryPaid       = "Order payment succeeded"
	StatusTextPaid    = "Payment succeeded!"
	StatusTextTimeout = "No payment information found yet, please check the order center later."
)

func progressText(elapsed time.Duration) string {
	return fmt.Sprintf("Checking payment status... (waited %ds)", int(elapsed/time.Second))
}

type OrderClient interface {
	GetOrderDetail(ctx context.Context, orderNo string) (models.OrderDetail, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// PollRecord is the bookkeeping of one order awaiting payment.
type PollRecord struct {
	OrderNo   string    `json:"orderNo"`
	PollCount int       `json:"pollCount"`
	StartTime time.Time `json:"startTime"`
}

type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomePaid      Outcome = "paid"
	OutcomeExhausted Outcome = "exhausted"
	OutcomeCancelled Outcome = "cancelled"
	// OutcomeDropped means the order entry no longer awaits payment.
	OutcomeDropped Outcome = "dropped"
)

// Terminal reports whether the order leaves the active set.
func (o Outcome) Terminal() bool { return o != OutcomePending }

// Update describes the result of one status check.
type Update struct {
	OrderNo    string
	Outcome    Outcome
	PollCount  int
	Elapsed    time.Duration
	StatusText string
	Err        error
}

type Observer func(Update)

type counters struct {
	totalPolls     atomic.Int64
	totalPaid      atomic.Int64
	totalExhausted atomic.Int64
	totalErrors    atomic.Int64
	lastErrorMu    sync.Mutex
	lastError      string
}

func (c *counters) setLastError(err error) {
	c.lastErrorMu.Lock()
	c.lastError = err.Error()
	c.lastErrorMu.Unlock()
}

func (c *counters) getLastError() string {
	c.lastErrorMu.Lock()
	defer c.lastErrorMu.Unlock()
	return c.lastError
}

// checker performs one status check and applies its result to the transcript.
// Both watcher variants share it.
type checker struct {
	client OrderClient
	store  *transcript.Store
	policy Policy

	producer  Producer
	topic     string
	sessionID string

	rl                 RateLimiter
	rateLimitPerMinute int64

	observer Observer
	now      func() time.Time
	stats    *counters
}

func (c *checker) check(ctx context.Context, rec *PollRecord) Update {
	u := Update{OrderNo: rec.OrderNo}
	if ctx.Err() != nil {
		u.Outcome = OutcomeCancelled
		return u
	}

	c.throttle(ctx)
	if ctx.Err() != nil {
		u.Outcome = OutcomeCancelled
		return u
	}
	detail, err := c.client.GetOrderDetail(ctx, rec.OrderNo)
	rec.PollCount++
	c.stats.totalPolls.Add(1)
	u.PollCount = rec.PollCount
	u.Elapsed = c.now().Sub(rec.StartTime)

	// Torn down while the fetch was outstanding: leave the transcript alone.
	if ctx.Err() != nil {
		u.Outcome = OutcomeCancelled
		return u
	}
	if err != nil {
		u.Err = err
		c.stats.totalErrors.Add(1)
		c.stats.setLastError(err)
		slog.Error("check order payment", "order_no", rec.OrderNo, "poll", rec.PollCount, "error", err.Error())
	}

	switch {
	case err == nil && detail.Paid():
		u.Outcome, u.StatusText = OutcomePaid, StatusTextPaid
		if !c.store.Mutate(awaiting(rec.OrderNo), func(e *transcript.Entry) { applyPaid(e.Order, detail) }) {
			u.Outcome = OutcomeDropped
			break
		}
		c.stats.totalPaid.Add(1)
		slog.Info("order paid", "order_no", rec.OrderNo, "polls", rec.PollCount)
		c.publish(ctx, rec, messages.PaymentOutcomePaid, &detail, u.Elapsed)

	case rec.PollCount >= c.policy.MaxPolls():
		u.Outcome, u.StatusText = OutcomeExhausted, StatusTextTimeout
		if !c.store.Mutate(awaiting(rec.OrderNo), func(e *transcript.Entry) {
			e.Order.OrderStatus = models.OrderStatusUnconfirmed
			e.Order.StatusText = StatusTextTimeout
		}) {
			u.Outcome = OutcomeDropped
			break
		}
		c.stats.totalExhausted.Add(1)
		slog.Warn("order payment not found within window", "order_no", rec.OrderNo, "polls", rec.PollCount)
		c.publish(ctx, rec, messages.PaymentOutcomeExhausted, nil, u.Elapsed)

	default:
		u.Outcome, u.StatusText = OutcomePending, progressText(u.Elapsed)
		if !c.store.Mutate(awaiting(rec.OrderNo), func(e *transcript.Entry) {
			e.Order.StatusText = u.StatusText
		}) {
			u.Outcome = OutcomeDropped
		}
	}

	if c.observer != nil {
		c.observer(u)
	}
	return u
}

func awaiting(orderNo string) transcript.Predicate {
	byNo, wait := transcript.ByOrderNo(orderNo), transcript.AwaitingPayment()
	return func(e *transcript.Entry) bool { return byNo(e) && wait(e) }
}

func applyPaid(o *models.OrderPayload, d models.OrderDetail) {
	o.OrderStatus = models.OrderStatusPaid
	o.PayStatus = models.PayStatusPaid
	o.PaymentType = models.PaymentTypeName(d.PaymentType)
	if o.PaymentType == "" {
		o.PaymentType = models.PaymentTypeName(models.PaymentTypeAlipay)
	}
	o.Summary = SummaryPaid
	o.StatusText = StatusTextPaid

	// The entry created from the form may lack fields the backend knows.
	if o.HotelName == "" {
		o.HotelName = d.HotelName
	}
	if o.RoomType == "" {
		o.RoomType = d.RoomTypeName
	}
	if o.CheckInDate == "" {
		o.CheckInDate = d.CheckInDate
	}
	if o.CheckOutDate == "" {
		o.CheckOutDate = d.CheckOutDate
	}
	if len(o.GuestNames) == 0 && len(d.GuestNames) > 0 {
		o.GuestNames = append([]string(nil), d.GuestNames...)
	}
	if o.Amount == 0 {
		o.Amount = d.OrderAmount
	}
	if o.CreateTime == "" {
		o.CreateTime = d.CreateTime
	}
}

func (c *checker) throttle(ctx context.Context) {
	if c.rl == nil || c.rateLimitPerMinute <= 0 {
		return
	}
	key := fmt.Sprintf("rl:hotelapi:order_detail:%s", c.now().UTC().Format("200601021504"))
	allowed, n, err := c.rl.Allow(ctx, key, c.rateLimitPerMinute, 70*time.Second)
	if err != nil {
		slog.Warn("rate limiter unavailable", "error", err.Error())
		return
	}
	if !allowed {
		slog.Warn("rate limit exceeded", "endpoint", "order_detail", "count", n)
		t := time.NewTimer(500 * time.Millisecond)
		defer t.Stop()
		select {
		case <-ctx.Done():
		case <-t.C:
		}
	}
}

func (c *checker) publish(ctx context.Context, rec *PollRecord, outcome string, d *models.OrderDetail, elapsed time.Duration) {
	if c.producer == nil || c.topic == "" {
		return
	}
	msg := messages.PaymentStatusChanged{
		SessionID:      c.sessionID,
		OrderNo:        rec.OrderNo,
		Outcome:        outcome,
		CheckedAt:      c.now().UTC(),
		PollCount:      rec.PollCount,
		ElapsedSeconds: int64(elapsed / time.Second),
	}
	if d != nil {
		msg.PaymentType = models.PaymentTypeName(d.PaymentType)
		msg.HotelName = d.HotelName
		msg.RoomType = d.RoomTypeName
		msg.Amount = d.OrderAmount
	}
	// The result is already in the transcript; a teardown right after it must not lose the event.
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := publishJSON(pctx, c.producer, c.topic, []byte(rec.OrderNo), msg); err != nil {
		c.stats.totalErrors.Add(1)
		c.stats.setLastError(err)
		slog.Error("publish payment status", "order_no", rec.OrderNo, "error", err.Error())
	}
}

// publishJSON retries a few times: the broker may lag behind the service on startup.
func publishJSON(ctx context.Context, p Producer, topic string, key []byte, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}
	var pubErr error
	for i := 0; i < 3; i++ {
		if pubErr = p.Publish(ctx, topic, key, b); pubErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		time.Sleep(time.Duration(100*(i+1)) * time.Millisecond)
	}
	return pubErr
}
