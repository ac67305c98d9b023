package main

import (
	"sync"
	"time"
)

// RateBuckets is a per-identity sliding-window rate limiter: each identity
// keeps the timestamps of its requests inside the window. Old entries are
// purged on every access, so bucket length stays bounded by the maximum.
// Prune, count check, and append happen under one lock acquisition so
// interleaved callers cannot undercount.
type RateBuckets struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	window  time.Duration
	max     int
	now     func() time.Time
}

func NewRateBuckets(max int, window time.Duration) *RateBuckets {
	return &RateBuckets{
		buckets: make(map[string][]time.Time),
		window:  window,
		max:     max,
		now:     time.Now,
	}
}

// Allow records one request for the identity if it is within budget and
// reports whether it was admitted.
func (rb *RateBuckets) Allow(identity string) bool {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	now := rb.now()
	cutoff := now.Add(-rb.window)

	bucket := rb.buckets[identity]
	kept := bucket[:0]
	for _, ts := range bucket {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= rb.max {
		rb.buckets[identity] = kept
		return false
	}

	rb.buckets[identity] = append(kept, now)
	return true
}
