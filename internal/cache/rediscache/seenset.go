package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// SeenStore keeps one Redis set of notification ids per chat session.
type SeenStore struct {
	c      *redis.Client
	prefix string
	ttl    time.Duration
}

func NewSeenStore(addr string, ttl time.Duration) *SeenStore {
	return &SeenStore{
		c:      redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "notif:seen:",
		ttl:    ttl,
	}
}

// Session returns the seen-set of one session.
func (s *SeenStore) Session(sessionID string) *SeenSet {
	return &SeenSet{c: s.c, key: s.prefix + sessionID, ttl: s.ttl}
}

func (s *SeenStore) Ping(ctx context.Context) error {
	if err := s.c.Ping(ctx).Err(); err != nil {
		return errors.Wrap(err, "redis ping")
	}
	return nil
}

func (s *SeenStore) Close() error { return s.c.Close() }

type SeenSet struct {
	c   *redis.Client
	key string
	ttl time.Duration
}

// AddNew does SADD per id in one pipeline; an id is new when SADD added it.
// The TTL is refreshed on every call so an active session keeps its set.
func (s *SeenSet) AddNew(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := s.c.TxPipeline()
	cmds := make([]*redis.IntCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.SAdd(ctx, s.key, id)
	}
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrap(err, "redis seen-set add")
	}

	var fresh []string
	for i, cmd := range cmds {
		if cmd.Val() == 1 {
			fresh = append(fresh, ids[i])
		}
	}
	return fresh, nil
}

func (s *SeenSet) Len(ctx context.Context) (int64, error) {
	n, err := s.c.SCard(ctx, s.key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "redis seen-set len")
	}
	return n, nil
}
