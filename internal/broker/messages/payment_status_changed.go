package messages

import "time"

// Outcomes carried by PaymentStatusChanged.
const (
	PaymentOutcomePaid      = "paid"
	PaymentOutcomeExhausted = "exhausted"
)

// PaymentStatusChanged is published once per order when its polling ends with a result.
type PaymentStatusChanged struct {
	SessionID string    `json:"session_id,omitempty"`
	OrderNo   string    `json:"order_no"`
	Outcome   string    `json:"outcome"`
	CheckedAt time.Time `json:"checked_at"`

	PollCount      int   `json:"poll_count"`
	ElapsedSeconds int64 `json:"elapsed_seconds"`

	PaymentType string  `json:"payment_type,omitempty"`
	HotelName   string  `json:"hotel_name,omitempty"`
	RoomType    string  `json:"room_type,omitempty"`
	Amount      float64 `json:"amount,omitempty"`

	Error *string `json:"error,omitempty"`
}
