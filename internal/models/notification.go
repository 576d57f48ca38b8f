package models

import "time"

// Notification is a server-side notice surfaced into a session transcript once.
type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
}

// DefaultNotificationType labels notifications that arrive without a type.
const DefaultNotificationType = "System notice"
