// Package notifications polls the notification endpoint on a fixed heartbeat and
// appends every notification it has not seen yet to the session transcript.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/HotelAssist/internal/broker/messages"
	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/BearBump/HotelAssist/internal/schedule"
	"github.com/BearBump/HotelAssist/internal/transcript"
	"github.com/pkg/errors"
)

const DefaultInterval = 5 * time.Second

type Client interface {
	ListNotifications(ctx context.Context) ([]models.Notification, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Poller struct {
	client Client
	store  *transcript.Store
	seen   SeenSet

	producer  Producer
	topic     string
	sessionID string

	interval time.Duration
	now      func() time.Time

	task      *schedule.Task
	startOnce sync.Once

	unread atomic.Int64

	startedAtUnixNano int64
	lastTickUnixNano  atomic.Int64
	totalTicks        atomic.Int64
	totalDelivered    atomic.Int64
	totalErrors       atomic.Int64
	lastErrorMu       sync.Mutex
	lastError         string
}

func New(client Client, store *transcript.Store) *Poller {
	p := &Poller{
		client:            client,
		store:             store,
		seen:              NewMemorySeenSet(),
		interval:          DefaultInterval,
		now:               func() time.Time { return time.Now().UTC() },
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
	p.task = schedule.New(p.tick)
	return p
}

func (p *Poller) WithInterval(d time.Duration) *Poller {
	if d > 0 {
		p.interval = d
	}
	return p
}

// WithSeenSet replaces the in-memory seen-set, e.g. with a Redis-backed one shared by replicas.
func (p *Poller) WithSeenSet(s SeenSet) *Poller {
	if s != nil {
		p.seen = s
	}
	return p
}

func (p *Poller) WithProducer(pr Producer, topic, sessionID string) *Poller {
	p.producer, p.topic, p.sessionID = pr, topic, sessionID
	return p
}

// Start begins the heartbeat. The first check runs right away; later calls are no-ops.
func (p *Poller) Start() {
	p.startOnce.Do(func() { p.task.Arm(0) })
}

// Stop ends the heartbeat for good. It is meant for session teardown only.
func (p *Poller) Stop() { p.task.Stop() }

func (p *Poller) Wait() { p.task.Wait() }

// Unread is the number of notifications surfaced since the last ResetUnread.
func (p *Poller) Unread() int64 { return p.unread.Load() }

// ResetUnread zeroes the counter and returns its previous value.
func (p *Poller) ResetUnread() int64 { return p.unread.Swap(0) }

// Trigger checks for notifications now instead of waiting for the heartbeat.
func (p *Poller) Trigger() { p.task.Kick() }

func (p *Poller) tick(ctx context.Context) (time.Duration, bool) {
	p.lastTickUnixNano.Store(time.Now().UTC().UnixNano())
	p.totalTicks.Add(1)

	if _, err := p.PollOnce(ctx); err != nil && ctx.Err() == nil {
		p.totalErrors.Add(1)
		p.setLastError(err)
		slog.Error("poll notifications", "session_id", p.sessionID, "error", err.Error())
	}
	// The heartbeat keeps going whatever happened.
	return p.interval, true
}

// PollOnce fetches the list and surfaces unseen notifications in the order received.
// It returns how many were surfaced.
func (p *Poller) PollOnce(ctx context.Context) (int, error) {
	list, err := p.client.ListNotifications(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list notifications")
	}
	if ctx.Err() != nil || len(list) == 0 {
		return 0, nil
	}

	ids := make([]string, 0, len(list))
	for _, n := range list {
		if n.ID != "" {
			ids = append(ids, n.ID)
		}
	}
	fresh, err := p.seen.AddNew(ctx, ids)
	if err != nil {
		return 0, errors.Wrap(err, "mark notifications seen")
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	isFresh := make(map[string]bool, len(fresh))
	for _, id := range fresh {
		isFresh[id] = true
	}
	surfaced := 0
	for _, n := range list {
		if !isFresh[n.ID] {
			continue
		}
		// A duplicate id inside one response is surfaced once.
		isFresh[n.ID] = false
		p.surface(ctx, n)
		surfaced++
	}
	p.unread.Add(int64(surfaced))
	p.totalDelivered.Add(int64(surfaced))
	return surfaced, nil
}

func (p *Poller) surface(ctx context.Context, n models.Notification) {
	typ := n.Type
	if typ == "" {
		typ = models.DefaultNotificationType
	}
	ts := n.Timestamp
	if ts.IsZero() {
		ts = p.now()
	}
	p.store.Append(transcript.Entry{
		Role: transcript.RoleAssistant,
		Kind: transcript.KindNotification,
		Text: formatText(n),
		Notification: &transcript.NotificationInfo{
			ID:        n.ID,
			Type:      typ,
			Timestamp: ts,
		},
	})
	slog.Info("notification delivered", "session_id", p.sessionID, "notification_id", n.ID, "type", typ)

	if p.producer == nil || p.topic == "" {
		return
	}
	msg := messages.NotificationDelivered{
		SessionID:      p.sessionID,
		NotificationID: n.ID,
		Type:           typ,
		Title:          n.Title,
		Body:           n.Body,
		EmittedAt:      ts,
		DeliveredAt:    p.now(),
	}
	b, err := json.Marshal(msg)
	if err != nil {
		slog.Error("marshal notification event", "error", err.Error())
		return
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.producer.Publish(pctx, p.topic, []byte(n.ID), b); err != nil {
		p.totalErrors.Add(1)
		p.setLastError(err)
		slog.Error("publish notification event", "notification_id", n.ID, "error", err.Error())
	}
}

func formatText(n models.Notification) string {
	switch {
	case n.Title == "":
		return n.Body
	case n.Body == "":
		return fmt.Sprintf("**%s**", n.Title)
	default:
		return fmt.Sprintf("**%s**\n\n%s", n.Title, n.Body)
	}
}

func (p *Poller) setLastError(err error) {
	p.lastErrorMu.Lock()
	p.lastError = err.Error()
	p.lastErrorMu.Unlock()
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastTickAt     *time.Time `json:"lastTickAt,omitempty"`
	Interval       string     `json:"interval"`
	Unread         int64      `json:"unread"`
	TotalTicks     int64      `json:"totalTicks"`
	TotalDelivered int64      `json:"totalDelivered"`
	TotalErrors    int64      `json:"totalErrors"`
	LastError      string     `json:"lastError,omitempty"`
}

func (p *Poller) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, p.startedAtUnixNano).UTC(),
		Interval:       p.interval.String(),
		Unread:         p.unread.Load(),
		TotalTicks:     p.totalTicks.Load(),
		TotalDelivered: p.totalDelivered.Load(),
		TotalErrors:    p.totalErrors.Load(),
	}
	if n := p.lastTickUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTickAt = &t
	}
	p.lastErrorMu.Lock()
	st.LastError = p.lastError
	p.lastErrorMu.Unlock()
	return st
}
