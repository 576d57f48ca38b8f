package payments

import (
	"context"
	"testing"
	"time"

	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/BearBump/HotelAssist/internal/transcript"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestPolicy_MaxPolls(t *testing.T) {
	require.Equal(t, 30, DefaultListPolicy().MaxPolls())
	require.Equal(t, 90, DefaultModalPolicy().MaxPolls())
	require.Equal(t, 4, Policy{Interval: 3 * time.Second, Window: 10 * time.Second}.MaxPolls())
	require.Equal(t, 1, Policy{Interval: time.Minute, Window: time.Second}.MaxPolls())
	require.Equal(t, 1, Policy{}.MaxPolls())

	p := Policy{FirstDelay: -1}.normalize(DefaultModalPolicy())
	require.Equal(t, DefaultModalPolicy(), p)
}

func TestOrderWatch_PaysOnOwnTimer(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-1"))
	client := &scripted{paid: map[string][]bool{"ORD-1": {false, false, true}}}

	ow := NewOrderWatch(client, store, "ORD-1", WithPolicy(Policy{Interval: 5 * time.Millisecond, Window: time.Minute}))
	t.Cleanup(ow.Close)
	ow.Start()
	ow.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := ow.Wait(ctx)
	require.NoError(t, err)
	require.Equal(t, OutcomePaid, out)
	require.Equal(t, 3, ow.Record().PollCount)
	require.Equal(t, 3, client.count("ORD-1"))
	require.Equal(t, models.OrderStatusPaid, orderEntry(t, store, "ORD-1").OrderStatus)
}

func TestOrderWatch_Exhausts(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-2"))
	client := &scripted{}

	ow := NewOrderWatch(client, store, "ORD-2", WithPolicy(Policy{Interval: 2 * time.Millisecond, Window: 10 * time.Millisecond}))
	t.Cleanup(ow.Close)
	ow.Start()

	select {
	case <-ow.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("order watch did not finish")
	}
	require.Equal(t, OutcomeExhausted, ow.Outcome())
	require.Equal(t, 5, client.count("ORD-2"))
	require.Equal(t, StatusTextTimeout, orderEntry(t, store, "ORD-2").StatusText)
}

func TestOrderWatch_CloseBeforeFirstCheck(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-3"))
	client := &scripted{}

	ow := NewOrderWatch(client, store, "ORD-3", WithPolicy(Policy{FirstDelay: 20 * time.Millisecond, Interval: time.Millisecond, Window: time.Minute}))
	ow.Start()
	ow.Close()

	<-ow.Done()
	time.Sleep(50 * time.Millisecond)
	require.Equal(t, OutcomeCancelled, ow.Outcome())
	require.Equal(t, 0, client.count("ORD-3"))
	require.Equal(t, models.OrderStatusAwaitingPayment, orderEntry(t, store, "ORD-3").OrderStatus)

	// A closed watch cannot be restarted.
	ow.Start()
	time.Sleep(30 * time.Millisecond)
	require.Equal(t, 0, client.count("ORD-3"))
}

func TestOrderWatch_CloseRacingPaidKeepsPaid(t *testing.T) {
	store := transcript.New()
	store.Append(awaitingEntry("ORD-4"))
	client := &scripted{paid: map[string][]bool{"ORD-4": {true}}}

	closed := make(chan struct{})
	var ow *OrderWatch
	ow = NewOrderWatch(client, store, "ORD-4",
		WithPolicy(Policy{Interval: time.Millisecond, Window: time.Minute}),
		WithObserver(func(u Update) {
			if u.Outcome != OutcomePaid {
				return
			}
			// transcript already says paid; Close lands before the watch finishes
			go func() {
				ow.Close()
				close(closed)
			}()
			time.Sleep(30 * time.Millisecond)
		}),
	)
	ow.Start()

	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not return")
	}
	require.Equal(t, OutcomePaid, ow.Outcome())
	require.Equal(t, models.OrderStatusPaid, orderEntry(t, store, "ORD-4").OrderStatus)
}

func TestWatcher_PollCountProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("poll count grows by one per check and stops at paid or budget", prop.ForAll(
		func(flags []bool, maxPolls int) bool {
			store := transcript.New()
			store.Append(awaitingEntry("P"))
			client := &scripted{paid: map[string][]bool{"P": append(flags, false)}}

			var obs updates
			w := NewWatcher(client, store,
				WithPolicy(Policy{FirstDelay: time.Hour, Interval: time.Second, Window: time.Duration(maxPolls) * time.Second}),
				WithObserver(obs.observe),
			)
			defer w.Stop()
			w.Register("P")

			for i := 0; i < maxPolls+3; i++ {
				w.tick(context.Background())
			}

			want := maxPolls
			for i, paid := range flags {
				if paid && i < maxPolls {
					want = i + 1
					break
				}
			}
			got := obs.all()
			if len(got) != want || client.count("P") != want || w.Has("P") {
				return false
			}
			for i, u := range got {
				if u.PollCount != i+1 {
					return false
				}
				if (i < want-1) != (u.Outcome == OutcomePending) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Bool()),
		gen.IntRange(1, 8),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
