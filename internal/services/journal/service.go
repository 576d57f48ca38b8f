// Package journal keeps the durable record of payment outcomes and delivered
// notifications fed from the assist event topics.
package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/HotelAssist/internal/broker/messages"
	"github.com/BearBump/HotelAssist/internal/cache"
	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/pkg/errors"
)

// ErrInvalidEvent marks events that can never be applied.
var ErrInvalidEvent = errors.New("invalid event")

type Repository interface {
	UpsertPaymentOutcome(ctx context.Context, in models.PaymentOutcome) error
	GetPaymentOutcome(ctx context.Context, orderNo string) (*models.PaymentOutcome, error)
	RecordNotification(ctx context.Context, n models.DeliveredNotification) (bool, error)
	ListNotifications(ctx context.Context, sessionID string, limit, offset int) ([]*models.DeliveredNotification, error)
}

type Service struct {
	repo       Repository
	cache      cache.BytesCache
	outcomeTTL time.Duration
}

func New(repo Repository, c cache.BytesCache, outcomeTTL time.Duration) *Service {
	return &Service{repo: repo, cache: c, outcomeTTL: outcomeTTL}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.outcomeTTL > 0
}

// GetPaymentOutcome reads through the cache; cache errors only cost a DB read.
func (s *Service) GetPaymentOutcome(ctx context.Context, orderNo string) (*models.PaymentOutcome, error) {
	if orderNo == "" {
		return nil, errors.New("orderNo is required")
	}
	if s.cacheEnabled() {
		if b, ok, err := s.cache.Get(ctx, outcomeKey(orderNo)); err == nil && ok {
			var o models.PaymentOutcome
			if json.Unmarshal(b, &o) == nil {
				return &o, nil
			}
		}
	}

	o, err := s.repo.GetPaymentOutcome(ctx, orderNo)
	if err != nil {
		return nil, err
	}
	if s.cacheEnabled() {
		b, _ := json.Marshal(o)
		_ = s.cache.Set(ctx, outcomeKey(orderNo), b, s.outcomeTTL)
	}
	return o, nil
}

func (s *Service) ListNotifications(ctx context.Context, sessionID string, limit, offset int) ([]*models.DeliveredNotification, error) {
	if sessionID == "" {
		return nil, errors.New("sessionId is required")
	}
	return s.repo.ListNotifications(ctx, sessionID, limit, offset)
}

func (s *Service) ApplyPaymentEvent(ctx context.Context, msg messages.PaymentStatusChanged) error {
	if msg.OrderNo == "" {
		return errors.Wrap(ErrInvalidEvent, "order_no is required")
	}
	if msg.Outcome != messages.PaymentOutcomePaid && msg.Outcome != messages.PaymentOutcomeExhausted {
		return errors.Wrapf(ErrInvalidEvent, "unknown outcome %q", msg.Outcome)
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = time.Now().UTC()
	}

	err := s.repo.UpsertPaymentOutcome(ctx, models.PaymentOutcome{
		OrderNo:        msg.OrderNo,
		SessionID:      msg.SessionID,
		Outcome:        msg.Outcome,
		PollCount:      msg.PollCount,
		ElapsedSeconds: msg.ElapsedSeconds,
		PaymentType:    msg.PaymentType,
		HotelName:      msg.HotelName,
		RoomType:       msg.RoomType,
		Amount:         msg.Amount,
		CheckedAt:      msg.CheckedAt,
	})
	if err != nil {
		return err
	}

	// The stored row may differ from msg (older redelivery), so drop the cached copy.
	if s.cacheEnabled() {
		_ = s.cache.Del(ctx, outcomeKey(msg.OrderNo))
	}
	return nil
}

func (s *Service) ApplyNotificationEvent(ctx context.Context, msg messages.NotificationDelivered) error {
	if msg.SessionID == "" || msg.NotificationID == "" {
		return errors.Wrap(ErrInvalidEvent, "session_id and notification_id are required")
	}
	if msg.DeliveredAt.IsZero() {
		msg.DeliveredAt = time.Now().UTC()
	}
	if msg.EmittedAt.IsZero() {
		msg.EmittedAt = msg.DeliveredAt
	}
	inserted, err := s.repo.RecordNotification(ctx, models.DeliveredNotification{
		SessionID:      msg.SessionID,
		NotificationID: msg.NotificationID,
		Type:           msg.Type,
		Title:          msg.Title,
		Body:           msg.Body,
		EmittedAt:      msg.EmittedAt,
		DeliveredAt:    msg.DeliveredAt,
	})
	if err != nil {
		return err
	}
	if !inserted {
		slog.Debug("notification already journaled", "session_id", msg.SessionID, "notification_id", msg.NotificationID)
	}
	return nil
}

// Handler routes consumer messages by topic. Malformed or invalid events are logged and
// skipped so one bad message cannot block the partition; storage errors stop consumption.
func (s *Service) Handler(ctx context.Context, paymentTopic, notificationTopic string) func(topic string, key, value []byte) error {
	return func(topic string, key, value []byte) error {
		var err error
		switch topic {
		case paymentTopic:
			var msg messages.PaymentStatusChanged
			if err = json.Unmarshal(value, &msg); err == nil {
				err = s.ApplyPaymentEvent(ctx, msg)
			}
		case notificationTopic:
			var msg messages.NotificationDelivered
			if err = json.Unmarshal(value, &msg); err == nil {
				err = s.ApplyNotificationEvent(ctx, msg)
			}
		default:
			slog.Warn("unexpected topic", "topic", topic, "key", string(key))
			return nil
		}

		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		if errors.Is(err, ErrInvalidEvent) || errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
			slog.Error("bad kafka msg", "topic", topic, "key", string(key), "error", err.Error())
			return nil
		}
		return err
	}
}

func outcomeKey(orderNo string) string {
	return fmt.Sprintf("journal:order:%s:outcome", orderNo)
}
