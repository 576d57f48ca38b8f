// Package sessions owns the per-conversation runtime: one transcript, one conversation
// service, one payment watcher and one notification poller per chat session.
//
// Closing or switching away from a session is the teardown that cancels its engines.
package sessions

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/BearBump/HotelAssist/internal/integrations/hotelapi"
	"github.com/BearBump/HotelAssist/internal/services/chat"
	"github.com/BearBump/HotelAssist/internal/services/notifications"
	"github.com/BearBump/HotelAssist/internal/services/payments"
	"github.com/BearBump/HotelAssist/internal/transcript"
	"github.com/pkg/errors"
)

var (
	ErrNotFound = errors.New("session not found")
	ErrBadID    = errors.New("session id is empty")
	ErrClosed   = errors.New("session manager closed")
)

// Producer publishes engine events; kafka.Producer satisfies it.
type Producer interface {
	payments.Producer
	notifications.Producer
}

type Session struct {
	ID       string
	OpenedAt time.Time

	Store         *transcript.Store
	Chat          *chat.Service
	Payments      *payments.Watcher
	Notifications *notifications.Poller
}

// teardown stops every engine of the session and waits for in-flight ticks to return.
func (s *Session) teardown() {
	s.Chat.Close()
	s.Payments.Stop()
	s.Notifications.Stop()
	s.Payments.Wait()
	s.Notifications.Wait()
}

type Manager struct {
	client hotelapi.Client

	policy               payments.Policy
	rl                   payments.RateLimiter
	rateLimitPerMinute   int64
	producer             Producer
	paymentTopic         string
	notificationTopic    string
	notificationInterval time.Duration
	seenSets             func(sessionID string) notifications.SeenSet

	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
}

type Option func(m *Manager)

// WithPaymentPolicy sets the chat-list polling policy used by every session watcher.
func WithPaymentPolicy(p payments.Policy) Option {
	return func(m *Manager) { m.policy = p }
}

func WithRateLimit(rl payments.RateLimiter, perMinute int64) Option {
	return func(m *Manager) { m.rl, m.rateLimitPerMinute = rl, perMinute }
}

// WithProducer publishes payment outcomes and delivered notifications of every session.
func WithProducer(p Producer, paymentTopic, notificationTopic string) Option {
	return func(m *Manager) {
		m.producer, m.paymentTopic, m.notificationTopic = p, paymentTopic, notificationTopic
	}
}

func WithNotificationInterval(d time.Duration) Option {
	return func(m *Manager) { m.notificationInterval = d }
}

// WithSeenSets gives each session its own seen-set, e.g. one backed by Redis.
func WithSeenSets(fn func(sessionID string) notifications.SeenSet) Option {
	return func(m *Manager) { m.seenSets = fn }
}

func NewManager(client hotelapi.Client, opts ...Option) *Manager {
	m := &Manager{
		client:               client,
		policy:               payments.DefaultListPolicy(),
		notificationInterval: notifications.DefaultInterval,
		sessions:             make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Open returns the session with the given id, creating it and starting its notification
// heartbeat if needed. created reports whether a new session was built.
func (m *Manager) Open(id string) (s *Session, created bool, err error) {
	if id == "" {
		return nil, false, ErrBadID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	if s, ok := m.sessions[id]; ok {
		return s, false, nil
	}

	s = m.build(id)
	m.sessions[id] = s
	s.Notifications.Start()
	slog.Info("session opened", "session_id", id)
	return s, true, nil
}

func (m *Manager) build(id string) *Session {
	store := transcript.New()

	popts := []payments.Option{payments.WithPolicy(m.policy)}
	if m.rl != nil {
		popts = append(popts, payments.WithRateLimit(m.rl, m.rateLimitPerMinute))
	}
	if m.producer != nil {
		popts = append(popts, payments.WithProducer(m.producer, m.paymentTopic, id))
	}
	watcher := payments.NewWatcher(m.client, store, popts...)

	poller := notifications.New(m.client, store).WithInterval(m.notificationInterval)
	if m.seenSets != nil {
		poller = poller.WithSeenSet(m.seenSets(id))
	}
	if m.producer != nil {
		poller = poller.WithProducer(m.producer, m.notificationTopic, id)
	}

	return &Session{
		ID:            id,
		OpenedAt:      time.Now().UTC(),
		Store:         store,
		Chat:          chat.New(m.client, store, watcher),
		Payments:      watcher,
		Notifications: poller,
	}
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "session %q", id)
	}
	return s, nil
}

// Close tears the session down. Its transcript is discarded with it.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrNotFound, "session %q", id)
	}

	s.teardown()
	slog.Info("session closed", "session_id", id)
	return nil
}

// Switch leaves conversation from and opens to. Engines of from are cancelled before
// to starts; switching to the same id is a no-op.
func (m *Manager) Switch(from, to string) (*Session, error) {
	if from == to {
		s, err := m.Get(to)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	if err := m.Close(from); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	s, _, err := m.Open(to)
	return s, err
}

// IDs lists open sessions in lexical order.
func (m *Manager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Trigger runs a payment and notification check in every session now.
func (m *Manager) Trigger() int {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.Unlock()

	for _, s := range list {
		s.Payments.Trigger()
		s.Notifications.Trigger()
	}
	return len(list)
}

// CloseAll tears down every session and refuses new ones.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	m.closed = true
	list := make([]*Session, 0, len(m.sessions))
	for id, s := range m.sessions {
		list = append(list, s)
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range list {
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			s.teardown()
		}(s)
	}
	wg.Wait()
	slog.Info("sessions closed", "count", len(list))
}

type SessionStats struct {
	ID            string              `json:"id"`
	OpenedAt      time.Time           `json:"openedAt"`
	Entries       int                 `json:"entries"`
	Busy          bool                `json:"busy"`
	Payments      payments.Stats      `json:"payments"`
	Notifications notifications.Stats `json:"notifications"`
}

type Stats struct {
	Open     int            `json:"open"`
	Sessions []SessionStats `json:"sessions"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	m.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	st := Stats{Open: len(list), Sessions: make([]SessionStats, 0, len(list))}
	for _, s := range list {
		st.Sessions = append(st.Sessions, SessionStats{
			ID:            s.ID,
			OpenedAt:      s.OpenedAt,
			Entries:       s.Store.Len(),
			Busy:          s.Chat.Busy(),
			Payments:      s.Payments.Stats(),
			Notifications: s.Notifications.Stats(),
		})
	}
	return st
}
