package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi"
	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/BearBump/HotelAssist/internal/services/chat"
	"github.com/BearBump/HotelAssist/internal/services/notifications"
	"github.com/BearBump/HotelAssist/internal/services/payments"
	"github.com/BearBump/HotelAssist/internal/transcript"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func queryCmd(client func() (hotelapi.Client, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "query [text]",
		Short: "Run a conversational hotel search",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			svc := chat.New(c, transcript.New(), nil)
			defer svc.Close()

			e, err := svc.Send(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			printEntry(cmd.OutOrStdout(), e)
			return nil
		},
	}
}

type orderFlags struct {
	hotelID       string
	ratePlanID    string
	rooms         int
	checkIn       string
	checkOut      string
	guests        []string
	amount        float64
	contactName   string
	contactMobile string
	payment       string
	hotelName     string
	roomType      string

	watch    bool
	interval time.Duration
	window   time.Duration
}

func (f orderFlags) request() (models.OrderRequest, error) {
	req := models.OrderRequest{
		HotelID:       f.hotelID,
		RatePlanID:    f.ratePlanID,
		RoomNum:       f.rooms,
		CheckInDate:   f.checkIn,
		CheckOutDate:  f.checkOut,
		GuestNames:    f.guests,
		OrderAmount:   f.amount,
		ContactName:   f.contactName,
		ContactMobile: f.contactMobile,
		HotelName:     f.hotelName,
		RoomType:      f.roomType,
	}
	switch strings.ToLower(f.payment) {
	case "", "alipay":
		req.PaymentType = models.PaymentTypeAlipay
	case "wechat":
		req.PaymentType = models.PaymentTypeWeChat
	default:
		return req, errors.Errorf("unknown payment type %q (alipay|wechat)", f.payment)
	}
	return req, nil
}

func orderCmd(client func() (hotelapi.Client, error)) *cobra.Command {
	f := orderFlags{}
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Create an order and optionally wait for its payment",
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request()
			if err != nil {
				return err
			}
			c, err := client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			store := transcript.New()
			svc := chat.New(c, store, nil)
			defer svc.Close()

			e, err := svc.CreateOrder(cmd.Context(), req)
			if err != nil {
				if e.Text != "" {
					fmt.Fprintln(out, e.Text)
				}
				return err
			}
			printEntry(out, e)
			if !f.watch {
				return nil
			}
			return watchOrder(cmd.Context(), out, c, store, e.Order.OrderNo, f.interval, f.window)
		},
	}

	cmd.Flags().StringVar(&f.hotelID, "hotel-id", "", "Hotel id")
	cmd.Flags().StringVar(&f.ratePlanID, "rate-plan", "", "Rate plan id")
	cmd.Flags().IntVar(&f.rooms, "rooms", 1, "Number of rooms")
	cmd.Flags().StringVar(&f.checkIn, "check-in", "", "Check-in date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.checkOut, "check-out", "", "Check-out date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVarP(&f.guests, "guest", "g", nil, "Guest name (repeatable)")
	cmd.Flags().Float64Var(&f.amount, "amount", 0, "Order amount")
	cmd.Flags().StringVar(&f.contactName, "contact-name", "", "Contact name")
	cmd.Flags().StringVar(&f.contactMobile, "contact-mobile", "", "Contact mobile")
	cmd.Flags().StringVar(&f.payment, "payment", "alipay", "Payment type (alipay|wechat)")
	cmd.Flags().StringVar(&f.hotelName, "hotel-name", "", "Hotel name shown on the order")
	cmd.Flags().StringVar(&f.roomType, "room-type", "", "Room type shown on the order")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Wait for payment like the QR dialog does")
	cmd.Flags().DurationVar(&f.interval, "interval", payments.DefaultModalPolicy().Interval, "Payment check interval")
	cmd.Flags().DurationVar(&f.window, "window", payments.DefaultModalPolicy().Window, "How long to wait for payment")

	return cmd
}

func watchOrder(ctx context.Context, out io.Writer, c hotelapi.Client, store *transcript.Store, orderNo string, interval, window time.Duration) error {
	policy := payments.Policy{Interval: interval, Window: window}
	ow := payments.NewOrderWatch(c, store, orderNo,
		payments.WithPolicy(policy),
		payments.WithObserver(func(u payments.Update) {
			fmt.Fprintf(out, "[%d/%d] %s\n", u.PollCount, policy.MaxPolls(), u.StatusText)
		}),
	)
	ow.Start()
	defer ow.Close()

	outcome, err := ow.Wait(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "outcome: %s\n", outcome)
	if e, ok := store.Find(transcript.ByOrderNo(orderNo)); ok {
		printEntry(out, e)
	}
	return nil
}

func notificationsCmd(client func() (hotelapi.Client, error)) *cobra.Command {
	var (
		interval time.Duration
		once     bool
	)
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Print notifications as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			store := transcript.New()
			p := notifications.New(c, store).WithInterval(interval)
			defer func() {
				p.Stop()
				p.Wait()
			}()

			if once {
				if _, err := p.PollOnce(cmd.Context()); err != nil {
					return err
				}
				for _, e := range store.Snapshot() {
					printEntry(out, e)
				}
				return nil
			}

			p.Start()
			printed := 0
			t := time.NewTicker(interval)
			defer t.Stop()
			for {
				snap := store.Snapshot()
				for _, e := range snap[printed:] {
					printEntry(out, e)
				}
				printed = len(snap)
				select {
				case <-cmd.Context().Done():
					return nil
				case <-t.C:
				}
			}
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", notifications.DefaultInterval, "Poll interval")
	cmd.Flags().BoolVar(&once, "once", false, "Poll once and exit")
	return cmd
}

func printEntry(out io.Writer, e transcript.Entry) {
	switch e.Kind {
	case transcript.KindHotels:
		fmt.Fprintln(out, e.Hotels.Summary)
		for _, o := range e.Hotels.Offers {
			fmt.Fprintf(out, "  %-24s %-14s %8.2f  %s\n", o.RoomType, o.BedType, o.PricePerNight, o.RatePlanID)
		}
	case transcript.KindOrder:
		o := e.Order
		fmt.Fprintf(out, "order %s [%s] %s %s %.2f\n", o.OrderNo, o.OrderStatus, o.HotelName, o.RoomType, o.Amount)
		if o.QRCodeURL != "" && o.OrderStatus == models.OrderStatusAwaitingPayment {
			fmt.Fprintf(out, "  pay: %s\n", o.QRCodeURL)
		}
		if o.StatusText != "" {
			fmt.Fprintf(out, "  %s\n", o.StatusText)
		}
	case transcript.KindNotification:
		fmt.Fprintf(out, "[%s] %s\n", e.Notification.Type, strings.ReplaceAll(e.Text, "\n\n", " - "))
	default:
		fmt.Fprintln(out, e.Text)
	}
}
