// Package transcript holds the ordered chat transcript of one session.
//
// Entries are kept in an ordered map keyed by a stable id. Writers never address
// an entry by position: they pass a predicate (or the id) and the store applies the
// mutation under its lock, so interleaved engines cannot clobber each other's target.
package transcript

import (
	"sync"
	"time"

	"github.com/BearBump/HotelAssist/internal/models"
	"github.com/google/uuid"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

type Kind string

const (
	KindText         Kind = "text"
	KindHotels       Kind = "hotels"
	KindOrder        Kind = "order"
	KindNotification Kind = "notification"
)

// NotificationInfo marks an entry produced from a server notification.
type NotificationInfo struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type Entry struct {
	ID           string               `json:"id"`
	Role         Role                 `json:"role"`
	Kind         Kind                 `json:"kind"`
	Status       Status               `json:"status"`
	Text         string               `json:"text,omitempty"`
	Hotels       *models.HotelResults `json:"hotels,omitempty"`
	Order        *models.OrderPayload `json:"order,omitempty"`
	Notification *NotificationInfo    `json:"notification,omitempty"`
	RequestID    string               `json:"requestId,omitempty"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`
}

func (e Entry) clone() Entry {
	if e.Hotels != nil {
		h := *e.Hotels
		h.Offers = append([]models.RoomOffer(nil), e.Hotels.Offers...)
		h.GuestNames = append([]string(nil), e.Hotels.GuestNames...)
		e.Hotels = &h
	}
	if e.Order != nil {
		o := *e.Order
		o.GuestNames = append([]string(nil), e.Order.GuestNames...)
		e.Order = &o
	}
	if e.Notification != nil {
		n := *e.Notification
		e.Notification = &n
	}
	return e
}

// Predicate selects entries; mutators act on the first match in transcript order.
type Predicate func(e *Entry) bool

type Store struct {
	mu      sync.RWMutex
	order   []string
	entries map[string]*Entry
	version uint64
	now     func() time.Time
}

func New() *Store {
	return &Store{
		entries: make(map[string]*Entry),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Append adds e at the end and returns the stored copy with id and timestamps set.
func (s *Store) Append(e Entry) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Kind == "" {
		e.Kind = KindText
	}
	if e.Status == "" {
		e.Status = StatusDone
	}
	now := s.now()
	e.CreatedAt, e.UpdatedAt = now, now

	stored := e.clone()
	s.entries[e.ID] = &stored
	s.order = append(s.order, e.ID)
	s.version++
	return stored.clone()
}

// Mutate applies fn to the first entry matching pred. It reports whether one matched.
// fn runs under the store lock and must not call back into the store.
func (s *Store) Mutate(pred Predicate, fn func(e *Entry)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		e := s.entries[id]
		if pred(e) {
			fn(e)
			e.ID = id
			e.UpdatedAt = s.now()
			s.version++
			return true
		}
	}
	return false
}

// Update applies fn to the entry with the given id.
func (s *Store) Update(id string, fn func(e *Entry)) bool {
	return s.Mutate(ByID(id), fn)
}

// Remove deletes the first entry matching pred.
func (s *Store) Remove(pred Predicate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, id := range s.order {
		if pred(s.entries[id]) {
			delete(s.entries, id)
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			s.version++
			return true
		}
	}
	return false
}

func (s *Store) Find(pred Predicate) (Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, id := range s.order {
		if e := s.entries[id]; pred(e) {
			return e.clone(), true
		}
	}
	return Entry{}, false
}

// Filter returns copies of all matching entries in transcript order.
func (s *Store) Filter(pred Predicate) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Entry
	for _, id := range s.order {
		if e := s.entries[id]; pred(e) {
			out = append(out, e.clone())
		}
	}
	return out
}

// Snapshot returns a copy of the whole transcript.
func (s *Store) Snapshot() []Entry {
	return s.Filter(func(*Entry) bool { return true })
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Version increases on every append, mutation and removal.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}
