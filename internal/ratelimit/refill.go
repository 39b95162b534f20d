package ratelimit

import (
	"sync"
	"time"
)

type refillBucket struct {
	count      int
	refilledAt time.Time
}

// RefillingTokenBucket grants one token back per elapsed interval, up to max.
type RefillingTokenBucket[K comparable] struct {
	mu       sync.Mutex
	max      int
	interval time.Duration
	now      func() time.Time
	buckets  map[K]*refillBucket
}

func NewRefillingTokenBucket[K comparable](max int, refillInterval time.Duration, opts ...Option) *RefillingTokenBucket[K] {
	o := buildOptions(opts)
	return &RefillingTokenBucket[K]{
		max:      max,
		interval: refillInterval,
		now:      o.now,
		buckets:  make(map[K]*refillBucket),
	}
}

func (b *RefillingTokenBucket[K]) refill(bucket *refillBucket, now time.Time) int {
	if b.interval <= 0 {
		return b.max
	}
	return int(now.Sub(bucket.refilledAt) / b.interval)
}

// Check reports whether cost tokens would be available, without committing
// the refill. Unseen keys are assumed full.
func (b *RefillingTokenBucket[K]) Check(key K, cost int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	bucket, ok := b.buckets[key]
	if !ok {
		return true
	}
	if refill := b.refill(bucket, b.now()); refill > 0 {
		return min(bucket.count+refill, b.max) >= cost
	}
	return bucket.count >= cost
}

// Consume takes cost tokens. The first call for a key always succeeds.
// refilledAt moves to now on every call for an existing key, including
// calls that fail.
func (b *RefillingTokenBucket[K]) Consume(key K, cost int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	bucket, ok := b.buckets[key]
	if !ok {
		b.buckets[key] = &refillBucket{count: b.max - cost, refilledAt: now}
		return true
	}

	bucket.count = min(bucket.count+b.refill(bucket, now), b.max)
	bucket.refilledAt = now
	if bucket.count < cost {
		return false
	}
	bucket.count -= cost
	return true
}
