package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi"
	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/pkg/errors"
)

const (
	pathOrderDetail   = "/api/travel/hotel/order/get_detail"
	pathCreateAndPay  = "/api/travel/hotel/order/create_and_pay"
	pathHotelQuery    = "/api/travel/hotel/query"
	pathNotifications = "/api/travel/notifications"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Msg     string          `json:"msg"`
	Data    json.RawMessage `json:"data"`
}

type orderDetailReq struct {
	CustomerOrderNo string `json:"customerOrderNo"`
}

func (c *Client) GetOrderDetail(ctx context.Context, orderNo string) (models.OrderDetail, error) {
	var env envelope
	if err := c.post(ctx, pathOrderDetail, orderDetailReq{CustomerOrderNo: orderNo}, &env); err != nil {
		return models.OrderDetail{}, err
	}
	if !env.Success {
		return models.OrderDetail{}, &hotelapi.BusinessError{Op: "get order detail", Msg: env.Msg}
	}

	var d models.OrderDetail
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return models.OrderDetail{}, errors.Wrap(err, "decode order detail")
		}
	}
	if d.CustomerOrderNo == "" {
		d.CustomerOrderNo = orderNo
	}
	return d, nil
}

type createAndPayReq struct {
	HotelID       int64    `json:"hotelID"`
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
}

type createAndPayData struct {
	OrderNo     string `json:"orderNo"`
	PaymentInfo struct {
		PaymentURL      string `json:"paymentUrl"`
		QRCodeURL       string `json:"qrCodeUrl"`
		QRCodeImageURL  string `json:"qrCodeImageUrl"`
		CustomerOrderNo string `json:"customerOrderNo"`
		PaymentType     int    `json:"paymentType"`
	} `json:"paymentInfo"`
}

func (c *Client) CreateAndPayOrder(ctx context.Context, req models.OrderRequest) (models.OrderCreated, error) {
	hotelID, err := strconv.ParseInt(req.HotelID, 10, 64)
	if err != nil {
		return models.OrderCreated{}, errors.Wrap(err, "parse hotel id")
	}
	body := createAndPayReq{
		HotelID:       hotelID,
		RatePlanID:    req.RatePlanID,
		RoomNum:       req.RoomNum,
		CheckInDate:   req.CheckInDate,
		CheckOutDate:  req.CheckOutDate,
		GuestNames:    req.GuestNames,
		OrderAmount:   req.OrderAmount,
		ContactName:   req.ContactName,
		ContactMobile: req.ContactMobile,
		ArriveTime:    req.ArriveTime,
		ContactEmail:  req.ContactEmail,
		OrderRemark:   req.OrderRemark,
		CallBackURL:   req.CallBackURL,
		PaymentType:   req.PaymentType,
	}

	var env envelope
	if err := c.post(ctx, pathCreateAndPay, body, &env); err != nil {
		return models.OrderCreated{}, err
	}
	if !env.Success {
		return models.OrderCreated{}, &hotelapi.BusinessError{Op: "create order", Msg: env.Msg}
	}

	var d createAndPayData
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return models.OrderCreated{}, errors.Wrap(err, "decode create order")
	}
	if d.OrderNo == "" {
		return models.OrderCreated{}, &hotelapi.BusinessError{Op: "create order", Msg: "order number missing in response"}
	}

	qr := d.PaymentInfo.QRCodeURL
	if qr == "" {
		qr = d.PaymentInfo.QRCodeImageURL
	}
	pt := d.PaymentInfo.PaymentType
	if pt == 0 {
		pt = req.PaymentType
	}
	return models.OrderCreated{
		OrderNo:     d.OrderNo,
		QRCodeURL:   qr,
		PaymentURL:  d.PaymentInfo.PaymentURL,
		PaymentType: pt,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

type queryReq struct {
	Query string `json:"query"`
}

type queryResp struct {
	Summary       string          `json:"summary"`
	Content       json.RawMessage `json:"content"`
	CheckInDate   string          `json:"checkInDate"`
	CheckOutDate  string          `json:"checkOutDate"`
	ContactName   string          `json:"contactName"`
	ContactMobile string          `json:"contactMobile"`
	GuestNames    []string        `json:"guestNames"`
	RoomNum       int             `json:"roomNum"`
}

func (c *Client) QueryHotels(ctx context.Context, query string) (models.HotelResults, error) {
	var r queryResp
	if err := c.post(ctx, pathHotelQuery, queryReq{Query: query}, &r); err != nil {
		return models.HotelResults{}, err
	}

	res := models.HotelResults{
		Summary:       r.Summary,
		CheckInDate:   r.CheckInDate,
		CheckOutDate:  r.CheckOutDate,
		ContactName:   r.ContactName,
		ContactMobile: r.ContactMobile,
		GuestNames:    r.GuestNames,
		RoomNum:       r.RoomNum,
	}

	// content is either a list of room offers or an explanatory string.
	if len(r.Content) > 0 && r.Content[0] == '[' {
		if err := json.Unmarshal(r.Content, &res.Offers); err != nil {
			return models.HotelResults{}, errors.Wrap(err, "decode room offers")
		}
	} else if len(r.Content) > 0 && res.Summary == "" {
		var s string
		if json.Unmarshal(r.Content, &s) == nil {
			res.Summary = s
		}
	}
	return res, nil
}

type notificationsResp struct {
	HasNotification bool                  `json:"hasNotification"`
	Notifications   []models.Notification `json:"notifications"`
}

func (c *Client) ListNotifications(ctx context.Context) ([]models.Notification, error) {
	u, err := c.endpoint(pathNotifications)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}

	var r notificationsResp
	if err := c.do(req, &r); err != nil {
		return nil, err
	}
	if !r.HasNotification {
		return nil, nil
	}
	return r.Notifications, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	u, err := c.endpoint(path)
	if err != nil {
		return err
	}
	b, err := json.Marshal(in)
	if err != nil {
		return errors.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) endpoint(path string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", errors.Wrap(err, "parse base url")
	}
	return u.JoinPath(path).String(), nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("hotel api http %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
