package ratelimit

import (
	"sync"
	"time"
)

// LoginTimeouts is the delay table used for per-account login attempts.
var LoginTimeouts = []time.Duration{
	0,
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
	8 * time.Second,
	16 * time.Second,
	30 * time.Second,
	60 * time.Second,
	180 * time.Second,
	300 * time.Second,
}

type throttlingCounter struct {
	index     int
	updatedAt time.Time
}

// Throttler enforces a growing delay between successive attempts for the
// same key. Each successful attempt moves the key one step further along
// the timeout table, stopping at the last entry.
type Throttler[K comparable] struct {
	mu       sync.Mutex
	timeouts []time.Duration
	now      func() time.Time
	counters map[K]*throttlingCounter
}

func NewThrottler[K comparable](timeouts []time.Duration, opts ...Option) *Throttler[K] {
	if len(timeouts) == 0 {
		timeouts = []time.Duration{0}
	}
	o := buildOptions(opts)
	return &Throttler[K]{
		timeouts: append([]time.Duration(nil), timeouts...),
		now:      o.now,
		counters: make(map[K]*throttlingCounter),
	}
}

func (t *Throttler[K]) Consume(key K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	counter, ok := t.counters[key]
	if !ok {
		t.counters[key] = &throttlingCounter{index: 0, updatedAt: now}
		return true
	}

	if now.Sub(counter.updatedAt) < t.timeouts[counter.index] {
		return false
	}
	counter.updatedAt = now
	counter.index = min(counter.index+1, len(t.timeouts)-1)
	return true
}

func (t *Throttler[K]) Reset(key K) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.counters, key)
}
