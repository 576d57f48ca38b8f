package fake

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi"
	"github.com/BearBump/HotelAssist/internal/models"
)

// Client is a deterministic stand-in for the Hotel Booking API.
// An order becomes paid after a number of detail checks derived from its number,
// so demos see both quick payments and a few that wait longer.
type Client struct {
	mu      sync.Mutex
	seq     int
	orders  map[string]*order
	pending []models.Notification
}

type order struct {
	req       models.OrderRequest
	checks    int
	paidAfter int
	createdAt time.Time
}

var _ hotelapi.Client = (*Client)(nil)

func New() *Client {
	return &Client{orders: make(map[string]*order)}
}

func (c *Client) CreateAndPayOrder(ctx context.Context, req models.OrderRequest) (models.OrderCreated, error) {
	if req.RoomNum <= 0 || len(req.GuestNames) == 0 {
		return models.OrderCreated{}, &hotelapi.BusinessError{Op: "create order", Msg: "roomNum and guestNames are required"}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	now := time.Now().UTC()
	no := fmt.Sprintf("FAKE%s%04d", now.Format("20060102"), c.seq)
	c.orders[no] = &order{req: req, paidAfter: paidAfter(no), createdAt: now}

	return models.OrderCreated{
		OrderNo:     no,
		QRCodeURL:   "https://api.qrserver.com/v1/create-qr-code/?size=200x200&data=" + no,
		PaymentType: req.PaymentType,
		CreatedAt:   now,
	}, nil
}

func (c *Client) GetOrderDetail(ctx context.Context, orderNo string) (models.OrderDetail, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	o, ok := c.orders[orderNo]
	if !ok {
		return models.OrderDetail{}, &hotelapi.BusinessError{Op: "get order detail", Msg: "order not found"}
	}
	o.checks++

	d := models.OrderDetail{
		CustomerOrderNo: orderNo,
		OrderAmount:     o.req.OrderAmount,
		CreateTime:      o.createdAt.Format("2006-01-02 15:04:05"),
		HotelName:       o.req.HotelName,
		RoomTypeName:    o.req.RoomType,
		CheckInDate:     o.req.CheckInDate,
		CheckOutDate:    o.req.CheckOutDate,
		NumberOfRooms:   o.req.RoomNum,
		GuestNames:      o.req.GuestNames,
		ContactName:     o.req.ContactName,
		ContactMobile:   o.req.ContactMobile,
		PaymentType:     o.req.PaymentType,
		PayStatus:       models.PayStatusUnpaid,
	}
	if o.checks >= o.paidAfter {
		d.PayStatus = models.PayStatusPaid
		d.PayTime = time.Now().UTC().Format("2006-01-02 15:04:05")
		if o.checks == o.paidAfter {
			c.pending = append(c.pending, models.Notification{
				ID:        "paid-" + orderNo,
				Type:      "Order",
				Title:     "Payment received",
				Body:      fmt.Sprintf("Order %s at %s is paid.", orderNo, o.req.HotelName),
				Timestamp: time.Now().UTC(),
			})
		}
	}
	return d, nil
}

// ListNotifications returns everything emitted so far; callers deduplicate by id.
func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]models.Notification, len(c.pending))
	copy(out, c.pending)
	return out, nil
}

// Push queues a notification, used by demos and tests.
func (c *Client) Push(n models.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = append(c.pending, n)
}

func (c *Client) QueryHotels(ctx context.Context, query string) (models.HotelResults, error) {
	select {
	case <-ctx.Done():
		return models.HotelResults{}, ctx.Err()
	default:
	}

	if strings.TrimSpace(query) == "" {
		return models.HotelResults{Summary: "Please tell me the city, dates and room preference."}, nil
	}

	hotel := models.Hotel{
		HotelID:   "10000753",
		HotelName: "Ji Hotel (Beijing Wangjing)",
		Address:   "8 Wangjing Huguang Middle St",
		Price:     "¥488-¥595",
		Rating:    5.0,
	}
	return models.HotelResults{
		Summary:      "Here are three king-bed rooms at Ji Hotel (Beijing Wangjing), prepaid and instantly confirmed.",
		CheckInDate:  time.Now().UTC().Format("2006-01-02"),
		CheckOutDate: time.Now().UTC().Add(24 * time.Hour).Format("2006-01-02"),
		GuestNames:   []string{"Guest"},
		RoomNum:      1,
		Offers: []models.RoomOffer{
			{RoomTypeID: "395312", RoomType: "King Room", BedType: "1 x 1.5m bed", PricePerNight: 488, OrderAmount: 488, RatePlanID: "RP-395312", Available: true, Hotel: hotel},
			{RoomTypeID: "395308", RoomType: "Superior King", BedType: "1 x 1.8m bed", PricePerNight: 524, OrderAmount: 524, RatePlanID: "RP-395308", Available: true, Hotel: hotel},
			{RoomTypeID: "9570709", RoomType: "Quiet Superior King", BedType: "1 x 1.8m bed", PricePerNight: 595, OrderAmount: 595, RatePlanID: "RP-9570709", Available: true, Hotel: hotel},
		},
	}, nil
}

// paidAfter maps an order number to 1..5 detail checks.
func paidAfter(orderNo string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(orderNo))
	return int(h.Sum32()%5) + 1
}
