// Package payments watches orders awaiting payment and writes the outcome into the
// chat transcript.
//
// Watcher drives every order of a chat session from one shared timer; OrderWatch binds
// one timer to exactly one order. Both check orders sequentially, arm the next tick
// only after the current one completes, and stop touching the transcript once closed.
package payments

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/HotelAssist/internal/schedule"
	"github.com/BearBump/HotelAssist/internal/transcript"
)

type Watcher struct {
	checker

	mu      sync.Mutex
	active  map[string]*PollRecord
	order   []string
	stopped bool

	task *schedule.Task

	startedAtUnixNano   int64
	lastTickUnixNano    atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRegistered     atomic.Int64
}

func NewWatcher(client OrderClient, store *transcript.Store, opts ...Option) *Watcher {
	w := &Watcher{
		checker:           newChecker(client, store, DefaultListPolicy(), opts),
		active:            make(map[string]*PollRecord),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
	w.task = schedule.New(w.tick)
	return w
}

func (w *Watcher) Policy() Policy { return w.policy }

// Register starts watching orderNo. It reports false if the order is already watched
// or the watcher is stopped.
func (w *Watcher) Register(orderNo string) bool {
	if orderNo == "" {
		return false
	}
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return false
	}
	if _, ok := w.active[orderNo]; ok {
		w.mu.Unlock()
		return false
	}
	w.active[orderNo] = &PollRecord{OrderNo: orderNo, StartTime: w.now()}
	w.order = append(w.order, orderNo)
	w.mu.Unlock()

	w.totalRegistered.Add(1)
	slog.Info("watching order payment", "order_no", orderNo, "max_polls", w.policy.MaxPolls())
	w.task.Arm(w.policy.FirstDelay)
	return true
}

// Unregister stops watching orderNo without touching its transcript entry.
func (w *Watcher) Unregister(orderNo string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.removeLocked(orderNo)
}

func (w *Watcher) removeLocked(orderNo string) bool {
	if _, ok := w.active[orderNo]; !ok {
		return false
	}
	delete(w.active, orderNo)
	for i, no := range w.order {
		if no == orderNo {
			w.order = append(w.order[:i:i], w.order[i+1:]...)
			break
		}
	}
	return true
}

// Reconcile makes the active set match the transcript: every order entry awaiting
// payment is watched and nothing else is. It returns how many orders were added and dropped.
func (w *Watcher) Reconcile() (added, dropped int) {
	want := make(map[string]struct{})
	for _, e := range w.store.Filter(transcript.AwaitingPayment()) {
		want[e.Order.OrderNo] = struct{}{}
		if w.Register(e.Order.OrderNo) {
			added++
		}
	}

	w.mu.Lock()
	for _, no := range append([]string(nil), w.order...) {
		if _, ok := want[no]; !ok && w.removeLocked(no) {
			dropped++
		}
	}
	w.mu.Unlock()
	return added, dropped
}

func (w *Watcher) Has(orderNo string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.active[orderNo]
	return ok
}

// Records returns a copy of the active set in registration order.
func (w *Watcher) Records() []PollRecord {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]PollRecord, 0, len(w.order))
	for _, no := range w.order {
		out = append(out, *w.active[no])
	}
	return out
}

// Trigger forces an immediate tick (best-effort).
func (w *Watcher) Trigger() {
	w.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	w.task.Kick()
}

// Stop tears the watcher down: the pending tick is cancelled, a running one stops
// before its next fetch and no transcript entry is touched afterwards.
func (w *Watcher) Stop() {
	w.mu.Lock()
	w.stopped = true
	w.active = make(map[string]*PollRecord)
	w.order = nil
	w.mu.Unlock()
	w.task.Stop()
}

// Wait blocks until a tick in flight has returned. Call after Stop.
func (w *Watcher) Wait() { w.task.Wait() }

func (w *Watcher) tick(ctx context.Context) (time.Duration, bool) {
	w.lastTickUnixNano.Store(time.Now().UTC().UnixNano())

	w.mu.Lock()
	batch := append([]string(nil), w.order...)
	w.mu.Unlock()

	for _, orderNo := range batch {
		if ctx.Err() != nil {
			return 0, false
		}
		w.mu.Lock()
		live, ok := w.active[orderNo]
		if !ok {
			w.mu.Unlock()
			continue
		}
		rec := *live
		w.mu.Unlock()

		u := w.check(ctx, &rec)
		if u.Outcome == OutcomeCancelled {
			return 0, false
		}

		w.mu.Lock()
		if cur, ok := w.active[orderNo]; ok && cur == live {
			if u.Outcome.Terminal() {
				w.removeLocked(orderNo)
			} else {
				cur.PollCount = rec.PollCount
			}
		}
		w.mu.Unlock()
	}

	w.mu.Lock()
	n := len(w.active)
	w.mu.Unlock()
	// Nothing left to watch: stay idle until the next Register.
	return w.policy.Interval, n > 0
}

type Stats struct {
	StartedAt       time.Time  `json:"startedAt"`
	LastTickAt      *time.Time `json:"lastTickAt,omitempty"`
	LastTriggerAt   *time.Time `json:"lastTriggerAt,omitempty"`
	Active          int        `json:"active"`
	MaxPolls        int        `json:"maxPolls"`
	TotalRegistered int64      `json:"totalRegistered"`
	TotalPolls      int64      `json:"totalPolls"`
	TotalPaid       int64      `json:"totalPaid"`
	TotalExhausted  int64      `json:"totalExhausted"`
	TotalErrors     int64      `json:"totalErrors"`
	LastError       string     `json:"lastError,omitempty"`
}

func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	active := len(w.active)
	w.mu.Unlock()

	st := Stats{
		StartedAt:       time.Unix(0, w.startedAtUnixNano).UTC(),
		Active:          active,
		MaxPolls:        w.policy.MaxPolls(),
		TotalRegistered: w.totalRegistered.Load(),
		TotalPolls:      w.stats.totalPolls.Load(),
		TotalPaid:       w.stats.totalPaid.Load(),
		TotalExhausted:  w.stats.totalExhausted.Load(),
		TotalErrors:     w.stats.totalErrors.Load(),
		LastError:       w.stats.getLastError(),
	}
	if n := w.lastTickUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTickAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	return st
}
