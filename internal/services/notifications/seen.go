package notifications

import (
	"context"
	"sync"
)

// SeenSet remembers which notification ids were already surfaced in a session.
type SeenSet interface {
	// AddNew marks ids as seen and returns the ones that were not seen before, in input order.
	AddNew(ctx context.Context, ids []string) ([]string, error)
	Len(ctx context.Context) (int64, error)
}

// MemorySeenSet grows for the lifetime of the session and never evicts.
type MemorySeenSet struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

func NewMemorySeenSet() *MemorySeenSet {
	return &MemorySeenSet{ids: make(map[string]struct{})}
}

func (s *MemorySeenSet) AddNew(_ context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var fresh []string
	for _, id := range ids {
		if _, ok := s.ids[id]; ok {
			continue
		}
		s.ids[id] = struct{}{}
		fresh = append(fresh, id)
	}
	return fresh, nil
}

func (s *MemorySeenSet) Len(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.ids)), nil
}
