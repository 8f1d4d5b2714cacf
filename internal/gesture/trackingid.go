package gesture

import (
	"sync"
	"time"

	"mtevent/internal/event"
)

// TrackingIDs hands out tracking ids for new contacts. Implementations never return
// event.TrackingIDRelease.
type TrackingIDs interface {
	Next() uint32
}

// ClockIDs derives ids from the wall clock: unix seconds modulo 0xFFFF on first use,
// then one step per contact within the same range. The zero value is ready to use.
type ClockIDs struct {
	Now func() time.Time

	mu     sync.Mutex
	seeded bool
	next   uint32
}

// Next returns a fresh id
func (c *ClockIDs) Next() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.seeded {
		now := time.Now
		if c.Now != nil {
			now = c.Now
		}
		c.next = uint32(now().Unix() % 0xFFFF)
		c.seeded = true
	}
	id := c.next
	c.next = (c.next + 1) % 0xFFFF
	return id
}

// CounterIDs returns consecutive ids starting at a fixed value
type CounterIDs struct {
	mu   sync.Mutex
	next uint32
}

// NewCounterIDs creates a counter whose first id is start
func NewCounterIDs(start uint32) *CounterIDs {
	return &CounterIDs{next: start}
}

// Next returns the current id and advances the counter, skipping the release sentinel
func (c *CounterIDs) Next() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.next == event.TrackingIDRelease {
		c.next = 0
	}
	id := c.next
	c.next++
	return id
}
