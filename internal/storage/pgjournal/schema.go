package pgjournal

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS payment_outcomes (
  order_no TEXT PRIMARY KEY,
  session_id TEXT NOT NULL DEFAULT '',
  outcome TEXT NOT NULL,
  poll_count INT NOT NULL DEFAULT 0,
  elapsed_seconds BIGINT NOT NULL DEFAULT 0,
  payment_type TEXT NOT NULL DEFAULT '',
  hotel_name TEXT NOT NULL DEFAULT '',
  room_type TEXT NOT NULL DEFAULT '',
  amount NUMERIC(12,2) NOT NULL DEFAULT 0,
  checked_at TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_outcomes_session_id ON payment_outcomes(session_id)`,
		`
CREATE TABLE IF NOT EXISTS delivered_notifications (
  session_id TEXT NOT NULL,
  notification_id TEXT NOT NULL,
  type TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL DEFAULT '',
  body TEXT NOT NULL DEFAULT '',
  emitted_at TIMESTAMPTZ NOT NULL,
  delivered_at TIMESTAMPTZ NOT NULL,
  PRIMARY KEY (session_id, notification_id)
)`,
		`CREATE INDEX IF NOT EXISTS idx_delivered_notifications_session_delivered ON delivered_notifications(session_id, delivered_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
