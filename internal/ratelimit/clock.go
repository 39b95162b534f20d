// Package ratelimit holds the in-memory limiters that gate sensitive
// requests: a refilling token bucket, an expiring token bucket and an
// exponential throttler. Every limiter is keyed by a caller-supplied
// comparable key (IP, user id, session id) and is safe for concurrent use.
//
// State is never persisted and keys are never evicted. Key spaces in
// practice are bounded by the number of distinct IPs and accounts.
package ratelimit

import "time"

type options struct {
	now func() time.Time
}

// Option configures a limiter.
type Option func(*options)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
