package messages

import "time"

// NotificationDelivered is published for each notification surfaced into a transcript.
type NotificationDelivered struct {
	SessionID      string    `json:"session_id,omitempty"`
	NotificationID string    `json:"notification_id"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	EmittedAt      time.Time `json:"emitted_at"`
	DeliveredAt    time.Time `json:"delivered_at"`
}
