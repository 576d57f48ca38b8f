package payments

import (
	"time"

	"github.com/BearBump/HotelAssist/internal/transcript"
)

type Option func(c *checker)

func WithPolicy(p Policy) Option {
	return func(c *checker) { c.policy = p }
}

// WithProducer publishes terminal outcomes to topic, tagged with sessionID.
func WithProducer(p Producer, topic, sessionID string) Option {
	return func(c *checker) {
		c.producer, c.topic, c.sessionID = p, topic, sessionID
	}
}

// WithRateLimit caps order detail fetches per minute across all watchers sharing rl.
func WithRateLimit(rl RateLimiter, perMinute int64) Option {
	return func(c *checker) {
		c.rl, c.rateLimitPerMinute = rl, perMinute
	}
}

// WithObserver is called after every completed check.
func WithObserver(o Observer) Option {
	return func(c *checker) { c.observer = o }
}

func withClock(now func() time.Time) Option {
	return func(c *checker) { c.now = now }
}

func newChecker(client OrderClient, store *transcript.Store, def Policy, opts []Option) checker {
	c := checker{
		client: client,
		store:  store,
		policy: def,
		now:    func() time.Time { return time.Now().UTC() },
		stats:  &counters{},
	}
	for _, o := range opts {
		o(&c)
	}
	c.policy = c.policy.normalize(def)
	return c
}
