package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BearBump/HotelAssist/config"
	"github.com/BearBump/HotelAssist/internal/broker/kafka"
	"github.com/BearBump/HotelAssist/internal/cache/rediscache"
	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi"
	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi/fake"
	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi/httpapi"
	"github.com/BearBump/HotelAssist/internal/services/notifications"
	"github.com/BearBump/HotelAssist/internal/services/payments"
	"github.com/BearBump/HotelAssist/internal/services/sessions"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPaymentTopic      = "payment.status_changed"
	defaultNotificationTopic = "notification.delivered"
)

type assistFactories struct {
	newHotelClient func(cfg *config.Config) hotelapi.Client
	// newProducer returns nil when event publishing is off.
	newProducer    func(cfg *config.Config) (p sessions.Producer, closeFn func(), err error)
	newRateLimiter func(cfg *config.Config) payments.RateLimiter
	// newSeenSets returns nil to keep the in-memory seen-set.
	newSeenSets func(cfg *config.Config) (fn func(sessionID string) notifications.SeenSet, closeFn func(), err error)
}

func defaultAssistFactories() assistFactories {
	return assistFactories{
		newHotelClient: func(cfg *config.Config) hotelapi.Client {
			// Without a base URL the in-process fake keeps demos self-contained.
			if cfg.HotelAPI.BaseURL == "" || cfg.HotelAPI.Mode == "fake" {
				return fake.New()
			}
			return httpapi.New(cfg.HotelAPI.BaseURL, time.Duration(cfg.HotelAPI.TimeoutSeconds)*time.Second)
		},
		newProducer: func(cfg *config.Config) (sessions.Producer, func(), error) {
			if !cfg.Assist.PublishEvents {
				return nil, nil, nil
			}
			p := kafka.NewProducer(brokers(cfg))
			return p, func() { _ = p.Close() }, nil
		},
		newRateLimiter: func(cfg *config.Config) payments.RateLimiter {
			if cfg.Assist.RateLimitPerMinute <= 0 {
				return nil
			}
			return rediscache.NewRateLimiter(redisAddr(cfg))
		},
		newSeenSets: func(cfg *config.Config) (func(string) notifications.SeenSet, func(), error) {
			if !cfg.Assist.RedisSeenSet {
				return nil, nil, nil
			}
			st := rediscache.NewSeenStore(redisAddr(cfg), time.Duration(cfg.Assist.SeenTTLSeconds)*time.Second)
			fn := func(sessionID string) notifications.SeenSet { return st.Session(sessionID) }
			return fn, func() { _ = st.Close() }, nil
		},
	}
}

func brokers(cfg *config.Config) []string {
	return []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
}

func redisAddr(cfg *config.Config) string {
	return fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
}

// listPolicy builds the chat-list payment policy; zero fields keep the defaults.
func listPolicy(cfg *config.Config) payments.Policy {
	p := payments.DefaultListPolicy()
	if cfg.Assist.PaymentFirstDelaySeconds > 0 {
		p.FirstDelay = time.Duration(cfg.Assist.PaymentFirstDelaySeconds) * time.Second
	}
	if cfg.Assist.PaymentIntervalSeconds > 0 {
		p.Interval = time.Duration(cfg.Assist.PaymentIntervalSeconds) * time.Second
	}
	if cfg.Assist.PaymentWindowSeconds > 0 {
		p.Window = time.Duration(cfg.Assist.PaymentWindowSeconds) * time.Second
	}
	return p
}

func newManager(cfg *config.Config, f assistFactories) (*sessions.Manager, func(), error) {
	paymentTopic := cfg.Kafka.PaymentStatusTopicName
	if paymentTopic == "" {
		paymentTopic = defaultPaymentTopic
	}
	notificationTopic := cfg.Kafka.NotificationDeliveredTopicName
	if notificationTopic == "" {
		notificationTopic = defaultNotificationTopic
	}
	interval := time.Duration(cfg.Assist.NotificationIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = notifications.DefaultInterval
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	opts := []sessions.Option{
		sessions.WithPaymentPolicy(listPolicy(cfg)),
		sessions.WithNotificationInterval(interval),
	}

	producer, closeProducer, err := f.newProducer(cfg)
	if err != nil {
		return nil, nil, err
	}
	if closeProducer != nil {
		closers = append(closers, closeProducer)
	}
	if producer != nil {
		opts = append(opts, sessions.WithProducer(producer, paymentTopic, notificationTopic))
	}

	if rl := f.newRateLimiter(cfg); rl != nil {
		opts = append(opts, sessions.WithRateLimit(rl, int64(cfg.Assist.RateLimitPerMinute)))
	}

	seen, closeSeen, err := f.newSeenSets(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if closeSeen != nil {
		closers = append(closers, closeSeen)
	}
	if seen != nil {
		opts = append(opts, sessions.WithSeenSets(seen))
	}

	return sessions.NewManager(f.newHotelClient(cfg), opts...), cleanup, nil
}

// RunAssistAPI serves the session API until ctx is cancelled, then tears every session down.
func RunAssistAPI(ctx context.Context, cfg *config.Config, f assistFactories, httpOpts assistHTTPOpts) error {
	mgr, cleanup, err := newManager(cfg, f)
	if err != nil {
		return err
	}
	defer cleanup()

	if httpOpts.httpAddr == "" {
		httpOpts.httpAddr = cfg.Assist.HTTPAddr
	}
	httpOpts.mgr = mgr
	httpOpts.cfg = cfg

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runAssistHTTPServer(gctx, httpOpts)
	})
	g.Go(func() error {
		<-gctx.Done()
		mgr.CloseAll()
		return nil
	})

	err = g.Wait()
	slog.Info("assist-api stopped", "error", err)
	if err == nil {
		err = ctx.Err()
	}
	return err
}
