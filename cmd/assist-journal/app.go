package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/BearBump/HotelAssist/config"
	journalapi "github.com/BearBump/HotelAssist/internal/api/journal_api"
	"github.com/BearBump/HotelAssist/internal/broker/kafka"
	"github.com/BearBump/HotelAssist/internal/cache"
	"github.com/BearBump/HotelAssist/internal/cache/rediscache"
	"github.com/BearBump/HotelAssist/internal/services/journal"
	"github.com/BearBump/HotelAssist/internal/storage/pgjournal"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type kafkaConsumer interface {
	Consume(ctx context.Context, handler kafka.Handler) error
	Close() error
}

type journalFactories struct {
	newStorage  func(cfg *config.Config) (repo journal.Repository, closeFn func(), err error)
	newCache    func(cfg *config.Config) cache.BytesCache
	newConsumer func(cfg *config.Config, topics []string) kafkaConsumer
}

func defaultJournalFactories() journalFactories {
	return journalFactories{
		newStorage: func(cfg *config.Config) (journal.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pgjournal.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newCache: func(cfg *config.Config) cache.BytesCache {
			return rediscache.New(fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port))
		},
		newConsumer: func(cfg *config.Config, topics []string) kafkaConsumer {
			group := cfg.Journal.KafkaConsumerGroup
			if group == "" {
				group = "assist-journal"
			}
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewConsumer(brokers, topics, group)
		},
	}
}

type journalOpts struct {
	httpAddr string
	onListen func(httpAddr string)
}

// RunAssistJournal consumes assist events into the journal and serves it over HTTP.
func RunAssistJournal(ctx context.Context, cfg *config.Config, f journalFactories, opts journalOpts) error {
	paymentTopic := cfg.Kafka.PaymentStatusTopicName
	if paymentTopic == "" {
		paymentTopic = "payment.status_changed"
	}
	notificationTopic := cfg.Kafka.NotificationDeliveredTopicName
	if notificationTopic == "" {
		notificationTopic = "notification.delivered"
	}
	cacheTTL := time.Duration(cfg.Journal.CacheTTLSeconds) * time.Second
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	if opts.httpAddr == "" {
		opts.httpAddr = cfg.Journal.HTTPAddr
	}
	if opts.httpAddr == "" {
		opts.httpAddr = ":8081"
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	svc := journal.New(repo, f.newCache(cfg), cacheTTL)
	consumer := f.newConsumer(cfg, []string{paymentTopic, notificationTopic})
	defer func() { _ = consumer.Close() }()

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return errors.Wrap(err, "listen")
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	journalapi.New(svc).Register(r)
	srv := &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("journal HTTP listening", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		slog.Info("kafka consumer started", "topics", []string{paymentTopic, notificationTopic})
		err := consumer.Consume(gctx, svc.Handler(gctx, paymentTopic, notificationTopic))
		if gctx.Err() != nil {
			return nil
		}
		return errors.Wrap(err, "consume journal events")
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
