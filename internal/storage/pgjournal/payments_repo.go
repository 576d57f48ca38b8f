package pgjournal

import (
	"context"
	"time"

	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

// UpsertPaymentOutcome records the final outcome of an order. A redelivered or older
// event never overwrites a newer one.
func (s *Storage) UpsertPaymentOutcome(ctx context.Context, in models.PaymentOutcome) error {
	now := time.Now().UTC()
	_, err := s.db.Exec(ctx, `
INSERT INTO payment_outcomes (
  order_no, session_id, outcome, poll_count, elapsed_seconds,
  payment_type, hotel_name, room_type, amount, checked_at, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
ON CONFLICT (order_no) DO UPDATE SET
  session_id = EXCLUDED.session_id,
  outcome = EXCLUDED.outcome,
  poll_count = EXCLUDED.poll_count,
  elapsed_seconds = EXCLUDED.elapsed_seconds,
  payment_type = EXCLUDED.payment_type,
  hotel_name = EXCLUDED.hotel_name,
  room_type = EXCLUDED.room_type,
  amount = EXCLUDED.amount,
  checked_at = EXCLUDED.checked_at,
  updated_at = EXCLUDED.updated_at
WHERE payment_outcomes.checked_at <= EXCLUDED.checked_at
`, in.OrderNo, in.SessionID, in.Outcome, in.PollCount, in.ElapsedSeconds,
		in.PaymentType, in.HotelName, in.RoomType, in.Amount, in.CheckedAt, now)
	if err != nil {
		return errors.Wrap(err, "upsert payment outcome")
	}
	return nil
}

func (s *Storage) GetPaymentOutcome(ctx context.Context, orderNo string) (*models.PaymentOutcome, error) {
	var o models.PaymentOutcome
	err := s.db.QueryRow(ctx, `
SELECT
  order_no, session_id, outcome, poll_count, elapsed_seconds,
  payment_type, hotel_name, room_type, amount::float8, checked_at, created_at, updated_at
FROM payment_outcomes
WHERE order_no = $1
`, orderNo).Scan(
		&o.OrderNo, &o.SessionID, &o.Outcome, &o.PollCount, &o.ElapsedSeconds,
		&o.PaymentType, &o.HotelName, &o.RoomType, &o.Amount, &o.CheckedAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select payment outcome")
	}
	return &o, nil
}
