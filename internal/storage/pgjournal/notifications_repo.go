package pgjournal

import (
	"context"

	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/pkg/errors"
)

// RecordNotification inserts a delivered notification once per session; it reports
// whether a row was written.
func (s *Storage) RecordNotification(ctx context.Context, n models.DeliveredNotification) (bool, error) {
	tag, err := s.db.Exec(ctx, `
INSERT INTO delivered_notifications (
  session_id, notification_id, type, title, body, emitted_at, delivered_at
) VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (session_id, notification_id) DO NOTHING
`, n.SessionID, n.NotificationID, n.Type, n.Title, n.Body, n.EmittedAt, n.DeliveredAt)
	if err != nil {
		return false, errors.Wrap(err, "insert notification")
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Storage) ListNotifications(ctx context.Context, sessionID string, limit, offset int) ([]*models.DeliveredNotification, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT session_id, notification_id, type, title, body, emitted_at, delivered_at
FROM delivered_notifications
WHERE session_id = $1
ORDER BY delivered_at DESC, notification_id
LIMIT $2 OFFSET $3
`, sessionID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select notifications")
	}
	defer rows.Close()

	var out []*models.DeliveredNotification
	for rows.Next() {
		var n models.DeliveredNotification
		if err := rows.Scan(&n.SessionID, &n.NotificationID, &n.Type, &n.Title, &n.Body, &n.EmittedAt, &n.DeliveredAt); err != nil {
			return nil, errors.Wrap(err, "scan notification")
		}
		out = append(out, &n)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
