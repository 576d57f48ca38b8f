package transcript

import "github.com/BearBump/HotelAssist/internal/models"

func ByID(id string) Predicate {
	return func(e *Entry) bool { return e.ID == id }
}

// ByOrderNo matches the order entry carrying the given order number.
func ByOrderNo(orderNo string) Predicate {
	return func(e *Entry) bool {
		return e.Kind == KindOrder && e.Order != nil && e.Order.OrderNo == orderNo
	}
}

// ByRequestID matches the assistant placeholder created for a chat request.
func ByRequestID(requestID string) Predicate {
	return func(e *Entry) bool {
		return e.RequestID == requestID && e.Role == RoleAssistant
	}
}

func FirstPending() Predicate {
	return func(e *Entry) bool { return e.Status == StatusPending }
}

// AwaitingPayment matches order entries still waiting for payment.
func AwaitingPayment() Predicate {
	return func(e *Entry) bool {
		return e.Kind == KindOrder && e.Order != nil && e.Order.OrderStatus == models.OrderStatusAwaitingPayment
	}
}

func ByNotificationID(id string) Predicate {
	return func(e *Entry) bool {
		return e.Kind == KindNotification && e.Notification != nil && e.Notification.ID == id
	}
}
