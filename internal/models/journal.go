package models

import "time"

// PaymentOutcome is the journal row for an order whose payment watch ended.
type PaymentOutcome struct {
	OrderNo        string    `json:"orderNo"`
	SessionID      string    `json:"sessionId,omitempty"`
	Outcome        string    `json:"outcome"`
	PollCount      int       `json:"pollCount"`
	ElapsedSeconds int64     `json:"elapsedSeconds"`
	PaymentType    string    `json:"paymentType,omitempty"`
	HotelName      string    `json:"hotelName,omitempty"`
	RoomType       string    `json:"roomType,omitempty"`
	Amount         float64   `json:"amount"`
	CheckedAt      time.Time `json:"checkedAt"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// DeliveredNotification is the journal row for a notification surfaced in a session.
type DeliveredNotification struct {
	SessionID      string    `json:"sessionId"`
	NotificationID string    `json:"notificationId"`
	Type           string    `json:"type"`
	Title          string    `json:"title"`
	Body           string    `json:"body"`
	EmittedAt      time.Time `json:"emittedAt"`
	DeliveredAt    time.Time `json:"deliveredAt"`
}
