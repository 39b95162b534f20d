package ratelimit

import (
	"sync"
	"time"
)

type expiringBucket struct {
	count     int
	createdAt time.Time
}

// ExpiringTokenBucket refills completely once expiresIn has passed since the
// bucket was created.
type ExpiringTokenBucket[K comparable] struct {
	mu        sync.Mutex
	max       int
	expiresIn time.Duration
	now       func() time.Time
	buckets   map[K]*expiringBucket
}

func NewExpiringTokenBucket[K comparable](max int, expiresIn time.Duration, opts ...Option) *ExpiringTokenBucket[K] {
	o := buildOptions(opts)
	return &ExpiringTokenBucket[K]{
		max:       max,
		expiresIn: expiresIn,
		now:       o.now,
		buckets:   make(map[K]*expiringBucket),
	}
}

func (b *ExpiringTokenBucket[K]) expired(bucket *expiringBucket, now time.Time) bool {
	return now.Sub(bucket.createdAt) >= b.expiresIn
}

func (b *ExpiringTokenBucket[K]) Check(key K, cost int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	bucket, ok := b.buckets[key]
	if !ok || b.expired(bucket, b.now()) {
		return true
	}
	return bucket.count >= cost
}

// Consume takes cost tokens. An expired bucket is topped back up to max
// before the deduction; its createdAt is left alone, so once expired it
// stays expired and every later call starts from a full bucket.
func (b *ExpiringTokenBucket[K]) Consume(key K, cost int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	bucket, ok := b.buckets[key]
	if !ok {
		b.buckets[key] = &expiringBucket{count: b.max - cost, createdAt: now}
		return true
	}

	if b.expired(bucket, now) {
		bucket.count = b.max
	}
	if bucket.count < cost {
		return false
	}
	bucket.count -= cost
	return true
}

// Reset forgets the key entirely.
func (b *ExpiringTokenBucket[K]) Reset(key K) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buckets, key)
}
