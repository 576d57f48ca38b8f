package main

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/BearBump/HotelAssist/config"
	"github.com/BearBump/HotelAssist/internal/broker/kafka"
	"github.com/BearBump/HotelAssist/internal/broker/messages"
	"github.com/BearBump/HotelAssist/internal/cache"
	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/BearBump/HotelAssist/internal/services/journal"
	"github.com/BearBump/HotelAssist/internal/services/journal/mocks"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type scriptedConsumer struct {
	mu     sync.Mutex
	msgs   []kafkaMsg
	closed bool
}

type kafkaMsg struct {
	topic string
	value []byte
}

func (c *scriptedConsumer) Consume(ctx context.Context, handler kafka.Handler) error {
	for _, m := range c.msgs {
		if err := handler(m.topic, nil, m.value); err != nil {
			return err
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (c *scriptedConsumer) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func TestDefaultJournalFactories_NonNil(t *testing.T) {
	f := defaultJournalFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newCache(cfg))
	c := f.newConsumer(cfg, []string{"a", "b"})
	require.NotNil(t, c)
	require.NoError(t, c.Close())
}

func TestRunAssistJournal_ConsumesAndServes(t *testing.T) {
	checkedAt := time.Date(2025, 5, 13, 10, 0, 0, 0, time.UTC)
	paid, err := json.Marshal(messages.PaymentStatusChanged{
		SessionID: "s1", OrderNo: "ORD-1", Outcome: messages.PaymentOutcomePaid, CheckedAt: checkedAt, PollCount: 2,
	})
	require.NoError(t, err)

	repo := &mocks.MockRepository{}
	repo.On("UpsertPaymentOutcome", mock.Anything, mock.MatchedBy(func(o models.PaymentOutcome) bool {
		return o.OrderNo == "ORD-1" && o.Outcome == "paid"
	})).Return(nil).Once()
	repo.On("GetPaymentOutcome", mock.Anything, "ORD-1").
		Return(&models.PaymentOutcome{OrderNo: "ORD-1", Outcome: "paid", PollCount: 2, CheckedAt: checkedAt}, nil)

	closed := false
	consumer := &scriptedConsumer{msgs: []kafkaMsg{
		{topic: "payment.status_changed", value: []byte("{not json")},
		{topic: "payment.status_changed", value: paid},
	}}
	f := journalFactories{
		newStorage: func(*config.Config) (journal.Repository, func(), error) {
			return repo, func() { closed = true }, nil
		},
		newCache:    func(*config.Config) cache.BytesCache { return nil },
		newConsumer: func(*config.Config, []string) kafkaConsumer { return consumer },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- RunAssistJournal(ctx, &config.Config{}, f, journalOpts{
			httpAddr: "127.0.0.1:0",
			onListen: func(addr string) { addrCh <- addr },
		})
	}()
	base := "http://" + <-addrCh

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/v1/orders/ORD-1")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("journal did not stop")
	}
	require.True(t, closed)
	require.True(t, consumer.closed)
	repo.AssertExpectations(t)
}

func TestRunAssistJournal_StorageError(t *testing.T) {
	f := journalFactories{
		newStorage: func(*config.Config) (journal.Repository, func(), error) {
			return nil, nil, errors.New("pg down")
		},
	}
	err := RunAssistJournal(context.Background(), &config.Config{}, f, journalOpts{})
	require.ErrorContains(t, err, "pg down")
}
