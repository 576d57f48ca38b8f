package payments

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/HotelAssist/internal/schedule"
	"github.com/BearBump/HotelAssist/internal/transcript"
)

// OrderWatch polls a single order on its own timer, the way a payment QR dialog does.
type OrderWatch struct {
	checker

	mu      sync.Mutex
	rec     PollRecord
	outcome Outcome
	started bool

	task     *schedule.Task
	done     chan struct{}
	doneOnce sync.Once
}

func NewOrderWatch(client OrderClient, store *transcript.Store, orderNo string, opts ...Option) *OrderWatch {
	ow := &OrderWatch{
		checker: newChecker(client, store, DefaultModalPolicy(), opts),
		rec:     PollRecord{OrderNo: orderNo},
		outcome: OutcomePending,
		done:    make(chan struct{}),
	}
	ow.task = schedule.New(ow.tick)
	return ow
}

// Start arms the first check. Calling it again is a no-op.
func (ow *OrderWatch) Start() {
	ow.mu.Lock()
	if ow.started || ow.outcome.Terminal() {
		ow.mu.Unlock()
		return
	}
	ow.started = true
	ow.rec.StartTime = ow.now()
	ow.mu.Unlock()
	ow.task.Arm(ow.policy.FirstDelay)
}

// Close cancels the watch and waits for a running check to return. A check that
// already applied paid or exhausted keeps that outcome; otherwise the transcript entry
// is left as it is. Must not be called from an Observer.
func (ow *OrderWatch) Close() {
	ow.task.Stop()
	ow.task.Wait()
	ow.finish(OutcomeCancelled)
}

// Done is closed once the watch reaches an outcome or is closed.
func (ow *OrderWatch) Done() <-chan struct{} { return ow.done }

func (ow *OrderWatch) Outcome() Outcome {
	ow.mu.Lock()
	defer ow.mu.Unlock()
	return ow.outcome
}

func (ow *OrderWatch) Record() PollRecord {
	ow.mu.Lock()
	defer ow.mu.Unlock()
	return ow.rec
}

// Wait blocks until the watch is done or ctx ends.
func (ow *OrderWatch) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-ow.done:
		return ow.Outcome(), nil
	case <-ctx.Done():
		return ow.Outcome(), ctx.Err()
	}
}

func (ow *OrderWatch) finish(o Outcome) {
	ow.doneOnce.Do(func() {
		ow.mu.Lock()
		ow.outcome = o
		ow.mu.Unlock()
		close(ow.done)
	})
}

func (ow *OrderWatch) tick(ctx context.Context) (time.Duration, bool) {
	ow.mu.Lock()
	rec := ow.rec
	ow.mu.Unlock()

	u := ow.check(ctx, &rec)
	if u.Outcome == OutcomeCancelled {
		return 0, false
	}

	ow.mu.Lock()
	ow.rec.PollCount = rec.PollCount
	ow.mu.Unlock()

	if u.Outcome.Terminal() {
		ow.finish(u.Outcome)
		return 0, false
	}
	return ow.policy.Interval, true
}
