package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRateBucketsLimitAndRecovery(t *testing.T) {
	rb := NewRateBuckets(3, time.Minute)

	now := time.Now()
	rb.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		require.True(t, rb.Allow("user-1"), "call %d within budget", i+1)
	}
	require.False(t, rb.Allow("user-1"), "call over budget must be rejected")

	// other identities are unaffected
	require.True(t, rb.Allow("user-2"))

	// after the window elapses the identity recovers
	rb.now = func() time.Time { return now.Add(time.Minute + time.Second) }
	require.True(t, rb.Allow("user-1"))
}

func TestRateBucketsPurgeBoundsLength(t *testing.T) {
	rb := NewRateBuckets(2, time.Minute)

	now := time.Now()
	rb.now = func() time.Time { return now }
	rb.Allow("u")
	rb.Allow("u")

	rb.now = func() time.Time { return now.Add(2 * time.Minute) }
	rb.Allow("u")

	rb.mu.Lock()
	length := len(rb.buckets["u"])
	rb.mu.Unlock()
	require.LessOrEqual(t, length, 2)
}

func TestRateBucketsConcurrentNoUndercount(t *testing.T) {
	const max = 10
	rb := NewRateBuckets(max, time.Minute)

	var admitted int64
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if rb.Allow("u") {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, max, admitted)
}
