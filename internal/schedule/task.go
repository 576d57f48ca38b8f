// Package schedule runs a function on a self re-arming timer.
//
// A Task fires at most one tick at a time: the next tick is armed only after the
// current one has returned, using the delay the tick itself asks for. Stop cancels
// the pending timer and the context handed to a running tick.
package schedule

import (
	"context"
	"sync"
	"time"
)

// Func is one tick. It returns the delay before the next tick and whether to re-arm.
type Func func(ctx context.Context) (next time.Duration, again bool)

type Task struct {
	fn Func

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	timer   *time.Timer
	armed   bool
	running bool
	pending *time.Duration
	stopped bool
	ticks   int64
	wg      sync.WaitGroup
}

func New(fn Func) *Task {
	ctx, cancel := context.WithCancel(context.Background())
	return &Task{fn: fn, ctx: ctx, cancel: cancel}
}

// Arm schedules a tick after delay unless one is already armed. A request made while
// a tick runs is remembered and honoured when that tick completes.
func (t *Task) Arm(delay time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armLocked(delay, false)
}

// Kick moves the next tick to now.
func (t *Task) Kick() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.armLocked(0, true)
}

func (t *Task) armLocked(delay time.Duration, reset bool) {
	if t.stopped {
		return
	}
	if t.running {
		if t.pending == nil || delay < *t.pending {
			d := delay
			t.pending = &d
		}
		return
	}
	if t.armed {
		if !reset {
			return
		}
		if !t.timer.Stop() {
			// already firing
			return
		}
	}
	t.armed = true
	t.timer = time.AfterFunc(delay, t.run)
}

func (t *Task) run() {
	t.mu.Lock()
	if t.stopped || !t.armed {
		t.mu.Unlock()
		return
	}
	t.armed = false
	t.running = true
	t.ticks++
	t.wg.Add(1)
	t.mu.Unlock()
	defer t.wg.Done()

	next, again := t.fn(t.ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.running = false
	pending := t.pending
	t.pending = nil
	if t.stopped {
		return
	}
	if pending != nil && (!again || *pending < next) {
		next, again = *pending, true
	}
	if again {
		t.armLocked(next, false)
	}
}

// Stop cancels the pending timer and the running tick's context. It does not wait.
func (t *Task) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	t.armed = false
	t.pending = nil
	if t.timer != nil {
		t.timer.Stop()
	}
	t.mu.Unlock()
	t.cancel()
}

// Wait blocks until a running tick returns. Call it after Stop.
func (t *Task) Wait() { t.wg.Wait() }

func (t *Task) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

// Scheduled reports whether a tick is armed or running.
func (t *Task) Scheduled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed || t.running
}

func (t *Task) Ticks() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ticks
}
