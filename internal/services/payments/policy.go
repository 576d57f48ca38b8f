package payments

import "time"

// Policy describes when an order is checked and for how long.
//
// The budget is an elapsed-time window; the tick count is derived from it so that
// both watcher variants give up after roughly the same wall-clock wait whatever
// their interval.
type Policy struct {
	FirstDelay time.Duration // delay before the first check after registration
	Interval   time.Duration // delay between checks
	Window     time.Duration // total waiting window
}

// DefaultListPolicy is used by the shared chat watcher: 20s, then every 10s, for 5 minutes.
func DefaultListPolicy() Policy {
	return Policy{
		FirstDelay: 20 * time.Second,
		Interval:   10 * time.Second,
		Window:     5 * time.Minute,
	}
}

// DefaultModalPolicy is used by the single-order watcher: right away, then every 2s, for 3 minutes.
func DefaultModalPolicy() Policy {
	return Policy{
		FirstDelay: 0,
		Interval:   2 * time.Second,
		Window:     3 * time.Minute,
	}
}

// normalize fills zero fields from def.
func (p Policy) normalize(def Policy) Policy {
	if p.FirstDelay < 0 {
		p.FirstDelay = def.FirstDelay
	}
	if p.Interval <= 0 {
		p.Interval = def.Interval
	}
	if p.Window <= 0 {
		p.Window = def.Window
	}
	return p
}

// MaxPolls is ceil(Window / Interval), never less than 1.
func (p Policy) MaxPolls() int {
	if p.Interval <= 0 || p.Window <= 0 {
		return 1
	}
	n := int((p.Window + p.Interval - 1) / p.Interval)
	if n < 1 {
		return 1
	}
	return n
}
