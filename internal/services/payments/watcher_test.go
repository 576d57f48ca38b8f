package payments

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/BearBump/HotelAssist/internal/broker/messages"
	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/BearBump/HotelAssist/internal/services/payments/mocks"
	"github.com/BearBump/HotelAssist/internal/transcript"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 5, 13, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type updates struct {
	mu  sync.Mutex
	got []Update
}

func (u *updates) observe(x Update) {
	u.mu.Lock()
	u.got = append(u.got, x)
	u.mu.Unlock()
}

func (u *updates) all() []Update {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]Update(nil), u.got...)
}

func awaitingEntry(orderNo string) transcript.Entry {
	return transcript.Entry{
		Role: transcript.RoleAssistant,
		Kind: transcript.KindOrder,
		Order: &models.OrderPayload{
			OrderNo:     orderNo,
			HotelName:   "Ji Hotel",
			Amount:      488,
			OrderStatus: models.OrderStatusAwaitingPayment,
		},
	}
}

func orderEntry(t *testing.T, s *transcript.Store, orderNo string) *models.OrderPayload {
	t.Helper()
	e, ok := s.Find(transcript.ByOrderNo(orderNo))
	require.True(t, ok)
	return e.Order
}

// scripted answers GetOrderDetail from a per-order list of pay flags; past the end it repeats the last.
type scripted struct {
	mu    sync.Mutex
	paid  map[string][]bool
	calls map[string]int
	err   error
}

func (s *scripted) GetOrderDetail(ctx context.Context, orderNo string) (models.OrderDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = make(map[string]int)
	}
	i := s.calls[orderNo]
	s.calls[orderNo]++
	if s.err != nil {
		return models.OrderDetail{}, s.err
	}
	flags := s.paid[orderNo]
	d := models.OrderDetail{CustomerOrderNo: orderNo}
	if len(flags) > 0 {
		if i >= len(flags) {
			i = len(flags) - 1
		}
		if flags[i] {
			d.PayStatus = models.PayStatusPaid
		}
	}
	return d, nil
}

func (s *scripted) count(orderNo string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[orderNo]
}

func TestWatcher_PaidOnThirdTick(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-1"))

	client := mocks.NewOrderClient(t)
	client.On("GetOrderDetail", mock.Anything, "ORD-1").Return(models.OrderDetail{CustomerOrderNo: "ORD-1"}, nil).Twice()
	client.On("GetOrderDetail", mock.Anything, "ORD-1").Return(models.OrderDetail{
		CustomerOrderNo: "ORD-1",
		PayStatus:       models.PayStatusPaid,
		PaymentType:     models.PaymentTypeAlipay,
		RoomTypeName:    "King",
	}, nil).Once()

	clk := newFakeClock()
	var obs updates
	w := NewWatcher(client, store, WithObserver(obs.observe), withClock(clk.Now))
	t.Cleanup(w.Stop)
	require.True(t, w.Register("ORD-1"))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		clk.Advance(10 * time.Second)
		next, again := w.tick(ctx)
		require.True(t, again)
		require.Equal(t, 10*time.Second, next)
	}
	clk.Advance(10 * time.Second)
	_, again := w.tick(ctx)
	require.False(t, again)

	got := obs.all()
	require.Len(t, got, 3)
	require.Equal(t, OutcomePending, got[0].Outcome)
	require.Equal(t, "Checking payment status... (waited 10s)", got[0].StatusText)
	require.Equal(t, "Checking payment status... (waited 20s)", got[1].StatusText)
	require.Equal(t, OutcomePaid, got[2].Outcome)
	require.Equal(t, 3, got[2].PollCount)

	o := orderEntry(t, store, "ORD-1")
	require.Equal(t, models.OrderStatusPaid, o.OrderStatus)
	require.Equal(t, models.PayStatusPaid, o.PayStatus)
	require.Equal(t, "Alipay", o.PaymentType)
	require.Equal(t, SummaryPaid, o.Summary)
	require.Equal(t, StatusTextPaid, o.StatusText)
	require.Equal(t, "Ji Hotel", o.HotelName)
	require.Equal(t, "King", o.RoomType)

	require.False(t, w.Has("ORD-1"))
	require.Empty(t, w.Records())
	st := w.Stats()
	require.Equal(t, int64(3), st.TotalPolls)
	require.Equal(t, int64(1), st.TotalPaid)
}

func TestWatcher_ExhaustsAfterBudget(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-2"))

	client := &scripted{}
	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: time.Hour, Interval: time.Second, Window: 3 * time.Second}))
	t.Cleanup(w.Stop)
	require.Equal(t, 3, w.Policy().MaxPolls())
	require.True(t, w.Register("ORD-2"))

	ctx := context.Background()
	w.tick(ctx)
	w.tick(ctx)
	require.True(t, w.Has("ORD-2"))
	_, again := w.tick(ctx)
	require.False(t, again)

	o := orderEntry(t, store, "ORD-2")
	require.Equal(t, models.OrderStatusUnconfirmed, o.OrderStatus)
	require.Equal(t, StatusTextTimeout, o.StatusText)
	require.Empty(t, w.Records())

	// No further fetch for an exhausted order.
	w.tick(ctx)
	require.Equal(t, 3, client.count("ORD-2"))
	require.Equal(t, int64(1), w.Stats().TotalExhausted)
}

func TestWatcher_FetchErrorCountsAsMiss(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-3"))

	client := &scripted{err: errors.New("connection refused")}
	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: time.Hour, Interval: time.Second, Window: 2 * time.Second}))
	t.Cleanup(w.Stop)
	w.Register("ORD-3")

	ctx := context.Background()
	_, again := w.tick(ctx)
	require.True(t, again)
	require.Equal(t, 1, w.Records()[0].PollCount)
	_, again = w.tick(ctx)
	require.False(t, again)

	require.Equal(t, models.OrderStatusUnconfirmed, orderEntry(t, store, "ORD-3").OrderStatus)
	st := w.Stats()
	require.Equal(t, int64(2), st.TotalErrors)
	require.Contains(t, st.LastError, "connection refused")
}

func TestWatcher_RegisterIsIdempotent(t *testing.T) {
	w := NewWatcher(&scripted{}, transcript.New(), WithPolicy(Policy{FirstDelay: time.Hour}))
	t.Cleanup(w.Stop)

	require.True(t, w.Register("ORD-1"))
	require.False(t, w.Register("ORD-1"))
	require.False(t, w.Register(""))
	require.Len(t, w.Records(), 1)
	require.Equal(t, int64(1), w.Stats().TotalRegistered)

	require.True(t, w.Unregister("ORD-1"))
	require.False(t, w.Unregister("ORD-1"))
}

func TestWatcher_SequentialInsertionOrder(t *testing.T) {
	store := transcript.New()
	var seen []string
	var mu sync.Mutex
	client := mocks.NewOrderClient(t)
	client.On("GetOrderDetail", mock.Anything, mock.Anything).Return(func(ctx context.Context, no string) (models.OrderDetail, error) {
		mu.Lock()
		seen = append(seen, no)
		mu.Unlock()
		return models.OrderDetail{CustomerOrderNo: no}, nil
	})

	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: time.Hour}))
	t.Cleanup(w.Stop)
	for _, no := range []string{"B", "A", "C"} {
		store.Append(awaitingEntry(no))
		w.Register(no)
	}
	w.tick(context.Background())
	require.Equal(t, []string{"B", "A", "C"}, seen)
}

func TestWatcher_DropsOrderNoLongerAwaiting(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-4"))
	client := &scripted{}
	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: time.Hour}))
	t.Cleanup(w.Stop)
	w.Register("ORD-4")

	store.Mutate(transcript.ByOrderNo("ORD-4"), func(e *transcript.Entry) {
		e.Order.OrderStatus = models.OrderStatusPaid
	})
	_, again := w.tick(context.Background())
	require.False(t, again)
	require.False(t, w.Has("ORD-4"))
	require.Equal(t, models.OrderStatusPaid, orderEntry(t, store, "ORD-4").OrderStatus)
}

func TestWatcher_Reconcile(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("A"))
	store.Append(awaitingEntry("B"))
	paid := awaitingEntry("C")
	paid.Order.OrderStatus = models.OrderStatusPaid
	store.Append(paid)

	w := NewWatcher(&scripted{}, store, WithPolicy(Policy{FirstDelay: time.Hour}))
	t.Cleanup(w.Stop)

	added, dropped := w.Reconcile()
	require.Equal(t, 2, added)
	require.Equal(t, 0, dropped)

	store.Mutate(transcript.ByOrderNo("A"), func(e *transcript.Entry) {
		e.Order.OrderStatus = models.OrderStatusUnconfirmed
	})
	added, dropped = w.Reconcile()
	require.Equal(t, 0, added)
	require.Equal(t, 1, dropped)
	require.Equal(t, []PollRecord{{OrderNo: "B", StartTime: w.Records()[0].StartTime}}, w.Records())
}

func TestWatcher_PublishesTerminalOutcome(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-5"))

	var published []byte
	producer := mocks.NewProducer(t)
	producer.On("Publish", mock.Anything, "payment.status", []byte("ORD-5"), mock.Anything).
		Run(func(args mock.Arguments) { published = args.Get(3).([]byte) }).
		Return(nil).Once()

	client := &scripted{paid: map[string][]bool{"ORD-5": {true}}}
	w := NewWatcher(client, store,
		WithPolicy(Policy{FirstDelay: time.Hour}),
		WithProducer(producer, "payment.status", "sess-1"),
	)
	t.Cleanup(w.Stop)
	w.Register("ORD-5")
	w.tick(context.Background())

	var msg messages.PaymentStatusChanged
	require.NoError(t, json.Unmarshal(published, &msg))
	require.Equal(t, messages.PaymentOutcomePaid, msg.Outcome)
	require.Equal(t, "sess-1", msg.SessionID)
	require.Equal(t, 1, msg.PollCount)
}

type fakeRL struct {
	allowed bool
	keys    []string
}

func (r *fakeRL) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	r.keys = append(r.keys, key)
	return r.allowed, limit + 1, nil
}

func TestWatcher_RateLimitedFetchStillHappens(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-6"))
	rl := &fakeRL{allowed: false}
	client := &scripted{}

	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: time.Hour}), WithRateLimit(rl, 1))
	t.Cleanup(w.Stop)
	w.Register("ORD-6")

	start := time.Now()
	w.tick(context.Background())
	require.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
	require.Equal(t, 1, client.count("ORD-6"))
	require.Len(t, rl.keys, 1)
	require.Contains(t, rl.keys[0], "rl:hotelapi:order_detail:")
}

func TestWatcher_StopDuringRateLimitWaitSkipsFetch(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-20"))
	rl := &fakeRL{allowed: false}
	client := &scripted{}

	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: 0, Interval: time.Second, Window: time.Minute}), WithRateLimit(rl, 1))
	w.Register("ORD-20")

	// the tick is now waiting out the rate limit
	time.Sleep(100 * time.Millisecond)
	w.Stop()
	w.Wait()

	require.Len(t, rl.keys, 1)
	require.Equal(t, 0, client.count("ORD-20"))
	require.Equal(t, int64(0), w.Stats().TotalPolls)
	require.Equal(t, models.OrderStatusAwaitingPayment, orderEntry(t, store, "ORD-20").OrderStatus)
}

// blockingClient holds each fetch until its context ends.
type blockingClient struct {
	calls   atomic.Int32
	started chan struct{}
}

func (b *blockingClient) GetOrderDetail(ctx context.Context, orderNo string) (models.OrderDetail, error) {
	if b.calls.Add(1) == 1 {
		close(b.started)
	}
	<-ctx.Done()
	return models.OrderDetail{}, ctx.Err()
}

func TestWatcher_StopDuringFetchLeavesTranscript(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-7"))
	store.Append(awaitingEntry("ORD-8"))

	client := &blockingClient{started: make(chan struct{})}
	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: 0, Interval: 5 * time.Millisecond, Window: time.Minute}))
	w.Register("ORD-7")
	w.Register("ORD-8")

	select {
	case <-client.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first tick never fetched")
	}
	w.Stop()
	w.Wait()
	time.Sleep(30 * time.Millisecond)

	require.Equal(t, int32(1), client.calls.Load())
	require.Empty(t, orderEntry(t, store, "ORD-7").StatusText)
	require.Equal(t, models.OrderStatusAwaitingPayment, orderEntry(t, store, "ORD-8").OrderStatus)
	require.False(t, w.Register("ORD-9"))
}

func TestWatcher_StopCancelsArmedTick(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-1"))
	client := &scripted{}
	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: 20 * time.Millisecond, Interval: 5 * time.Millisecond, Window: time.Minute}))
	w.Register("ORD-1")
	w.Stop()

	time.Sleep(60 * time.Millisecond)
	require.Equal(t, 0, client.count("ORD-1"))
}

func TestWatcher_RunsOnItsOwnTimer(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-1"))
	client := &scripted{paid: map[string][]bool{"ORD-1": {false, false, true}}}
	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: 0, Interval: 5 * time.Millisecond, Window: time.Minute}))
	t.Cleanup(w.Stop)
	w.Register("ORD-1")

	require.Eventually(t, func() bool { return !w.Has("ORD-1") }, 2*time.Second, 5*time.Millisecond)
	require.Equal(t, models.OrderStatusPaid, orderEntry(t, store, "ORD-1").OrderStatus)
	require.Equal(t, 3, client.count("ORD-1"))

	// The set is empty: the timer stays idle until the next registration.
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 3, client.count("ORD-1"))

	store.Append(awaitingEntry("ORD-2"))
	client.mu.Lock()
	client.paid["ORD-2"] = []bool{true}
	client.mu.Unlock()
	w.Register("ORD-2")
	require.Eventually(t, func() bool { return !w.Has("ORD-2") }, 2*time.Second, 5*time.Millisecond)
}

func TestWatcher_Trigger(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-1"))
	client := &scripted{paid: map[string][]bool{"ORD-1": {true}}}
	w := NewWatcher(client, store, WithPolicy(Policy{FirstDelay: time.Hour}))
	t.Cleanup(w.Stop)
	w.Register("ORD-1")

	w.Trigger()
	require.Eventually(t, func() bool { return !w.Has("ORD-1") }, 2*time.Second, 5*time.Millisecond)
	require.NotNil(t, w.Stats().LastTriggerAt)
}
