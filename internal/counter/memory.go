package counter

import (
	"context"
	"sync"
	"time"
)

// MemCounter is a mutex-guarded in-process counter for single-instance
// deployments and tests. Running more than one scheduler instance against
// MemCounter defeats the cap; use RedisCounter for that topology.
type MemCounter struct {
	mu     sync.Mutex
	cap    int
	counts map[string]int
}

// NewMemCounter creates an in-memory daily counter.
func NewMemCounter(cap int) *MemCounter {
	return &MemCounter{cap: cap, counts: make(map[string]int)}
}

func (c *MemCounter) Reserve(_ context.Context, day time.Time) (Reservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := dayKey(day)
	if c.counts[k]+1 > c.cap {
		return Reservation{Granted: false, Count: c.counts[k]}, nil
	}
	c.counts[k]++
	return Reservation{Granted: true, Count: c.counts[k]}, nil
}

func (c *MemCounter) Release(_ context.Context, day time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := dayKey(day)
	if c.counts[k] > 0 {
		c.counts[k]--
	}
	return nil
}

func (c *MemCounter) Current(_ context.Context, day time.Time) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[dayKey(day)], nil
}
