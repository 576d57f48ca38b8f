package hotelapi

import (
	"context"
	"fmt"

	"github.com/BearBump/HotelAssist/internal/models"
)

// OrderClient talks to the order endpoints of the Hotel Booking API.
type OrderClient interface {
	GetOrderDetail(ctx context.Context, orderNo string) (models.OrderDetail, error)
	CreateAndPayOrder(ctx context.Context, req models.OrderRequest) (models.OrderCreated, error)
}

// NotificationClient fetches pending notifications for the current session.
type NotificationClient interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
}

// QueryClient runs the conversational hotel search.
type QueryClient interface {
	QueryHotels(ctx context.Context, query string) (models.HotelResults, error)
}

// Client is the full Hotel Booking API surface.
type Client interface {
	OrderClient
	NotificationClient
	QueryClient
}

// BusinessError is an explicit failure flag returned by the backend (success=false).
type BusinessError struct {
	Op  string
	Msg string
}

func (e *BusinessError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: request failed", e.Op)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Msg)
}
