package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Order statuses as carried by transcript order entries.
const (
	OrderStatusAwaitingPayment = "awaiting_payment"
	OrderStatusPaid            = "paid"
	OrderStatusUnconfirmed     = "unconfirmed"
)

// Pay statuses reported by the hotel backend.
const (
	PayStatusUnpaid = 0
	PayStatusPaid   = 1
)

// Payment type selectors accepted by create_and_pay.
const (
	PaymentTypeAlipay = 2
	PaymentTypeWeChat = 3
)

func PaymentTypeName(code int) string {
	switch code {
	case PaymentTypeAlipay:
		return "Alipay"
	case PaymentTypeWeChat:
		return "WeChat Pay"
	default:
		return ""
	}
}

// OrderPayload is the structured content of an order transcript entry.
type OrderPayload struct {
	OrderNo      string   `json:"orderNo"`
	QRCodeURL    string   `json:"qrCodeUrl,omitempty"`
	HotelName    string   `json:"hotelName,omitempty"`
	RoomType     string   `json:"roomType,omitempty"`
	CheckInDate  string   `json:"checkInDate,omitempty"`
	CheckOutDate string   `json:"checkOutDate,omitempty"`
	GuestNames   []string `json:"guestNames,omitempty"`
	Amount       float64  `json:"orderAmount"`
	OrderStatus  string   `json:"orderStatus"`
	PayStatus    int      `json:"payStatus"`
	PaymentType  string   `json:"paymentType,omitempty"`
	CreateTime   string   `json:"createTime,omitempty"`
	Summary      string   `json:"summary,omitempty"`
	StatusText   string   `json:"statusText,omitempty"`
}

// OrderDetail is the backend view of an order. Everything but CustomerOrderNo may be absent.
type OrderDetail struct {
	CustomerOrderNo string     `json:"customerOrderNo"`
	OrderAmount     float64    `json:"orderAmount"`
	CreateTime      string     `json:"createTime"`
	PayLimitTime    string     `json:"payLimitTime,omitempty"`
	HotelID         int64      `json:"hotelId"`
	HotelName       string     `json:"hotelName"`
	HotelAddress    string     `json:"hotelAddress"`
	RoomTypeName    string     `json:"roomTypeName"`
	BedTypeName     string     `json:"bedTypeName"`
	RatePlanID      string     `json:"ratePlanId"`
	CheckInDate     string     `json:"checkInDate"`
	CheckOutDate    string     `json:"checkOutDate"`
	NumberOfNights  int        `json:"numberOfNights"`
	NumberOfRooms   int        `json:"numberOfRooms"`
	GuestNames      GuestNames `json:"guestNames"`
	ContactName     string     `json:"contactName"`
	ContactMobile   string     `json:"contactMobile"`
	PayStatus       int        `json:"payStatus"`
	OrderStatus     int        `json:"orderStatus"`
	PaymentType     int        `json:"paymentType"`
	PayTime         string     `json:"payTime,omitempty"`
}

func (d OrderDetail) Paid() bool { return d.PayStatus == PayStatusPaid }

// GuestNames accepts either a JSON array of names or a single delimited string.
type GuestNames []string

func (g *GuestNames) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*g = nil
		return nil
	}
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*g = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	var out []string
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '、' }) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*g = out
	return nil
}

// OrderRequest is what the booking form submits.
type OrderRequest struct {
	HotelID       string   `json:"hotelID"`
	RatePlanID    string   `json:"ratePlanID"`
	RoomNum       int      `json:"roomNum"`
	CheckInDate   string   `json:"checkInDate"`
	CheckOutDate  string   `json:"checkOutDate"`
	GuestNames    []string `json:"guestNames"`
	OrderAmount   float64  `json:"orderAmount"`
	ContactName   string   `json:"contactName"`
	ContactMobile string   `json:"contactMobile"`
	ArriveTime    string   `json:"arriveTime,omitempty"`
	ContactEmail  string   `json:"contactEmail,omitempty"`
	OrderRemark   string   `json:"orderRemark,omitempty"`
	CallBackURL   string   `json:"callBackUrl,omitempty"`
	PaymentType   int      `json:"paymentType"`

	// Display-only fields used to build the order entry.
	HotelName string `json:"hotelName,omitempty"`
	RoomType  string `json:"roomType,omitempty"`
}

// OrderCreated is the result of create_and_pay.
type OrderCreated struct {
	OrderNo     string
	QRCodeURL   string
	PaymentURL  string
	PaymentType int
	CreatedAt   time.Time
}
