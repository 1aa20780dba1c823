package patient

import (
	"sync"
	"time"
)

// Clock supplies record timestamps.
type Clock interface {
	Now() Timestamp
}

// monotonicClock never hands out the same millisecond twice and never goes
// backwards, so updated_at strictly increases across successive writes.
type monotonicClock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newMonotonicClock(now func() time.Time) *monotonicClock {
	if now == nil {
		now = time.Now
	}
	return &monotonicClock{now: now}
}

func (c *monotonicClock) Now() Timestamp {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Millisecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Millisecond)
	}
	c.last = t
	return Timestamp{Time: t}
}
