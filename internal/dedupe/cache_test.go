// ABOUTME: Tests for the request cache behind channel retry deduplication.
// ABOUTME: Covers the retry path, TTL expiry, capacity eviction, and races.

package dedupe

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// Keys are shaped the way the channel builds them: "<user id>:<envelope id>".

func TestCache_RetryIsDuplicate(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	// First dispatch of an envelope goes through
	assert.False(t, cache.CheckAndMark("alice:req-1"))

	// The client retries the same envelope after a network hiccup
	assert.True(t, cache.CheckAndMark("alice:req-1"))
	assert.True(t, cache.CheckAndMark("alice:req-1"))
}

func TestCache_KeysAreScopedPerUser(t *testing.T) {
	cache := New(5*time.Minute, 100)
	defer cache.Close()

	// Two users reusing the same client-side envelope id never collide
	assert.False(t, cache.CheckAndMark("alice:req-1"))
	assert.False(t, cache.CheckAndMark("bob:req-1"))
	assert.True(t, cache.CheckAndMark("alice:req-1"))
}

func TestCache_ExpiredKeyDispatchesAgain(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("alice:req-1"))

	time.Sleep(20 * time.Millisecond)

	// Past the TTL the envelope id is forgotten and dispatches again
	assert.False(t, cache.CheckAndMark("alice:req-1"))
}

func TestCache_DuplicateHitRefreshesTTL(t *testing.T) {
	cache := New(50*time.Millisecond, 100)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("alice:req-1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, cache.CheckAndMark("alice:req-1"))

	// 30ms later the original mark would have expired; the duplicate hit
	// above kept the key alive
	time.Sleep(30 * time.Millisecond)
	assert.True(t, cache.CheckAndMark("alice:req-1"))
}

func TestCache_CapacityEvictsLongestIdle(t *testing.T) {
	cache := New(5*time.Minute, 3)
	defer cache.Close()

	assert.False(t, cache.CheckAndMark("alice:req-1"))
	assert.False(t, cache.CheckAndMark("alice:req-2"))
	assert.False(t, cache.CheckAndMark("alice:req-3"))

	// req-1 is touched, making req-2 the longest-idle key
	assert.True(t, cache.CheckAndMark("alice:req-1"))

	// Admitting a fourth key evicts req-2, not req-1
	assert.False(t, cache.CheckAndMark("alice:req-4"))
	assert.True(t, cache.CheckAndMark("alice:req-1"))
	assert.False(t, cache.CheckAndMark("alice:req-2"), "evicted key dispatches again")
	assert.Equal(t, 3, cache.Len())
}

func TestCache_SweepRemovesExpiredKeys(t *testing.T) {
	cache := New(10*time.Millisecond, 100)
	defer cache.Close()

	for i := 0; i < 5; i++ {
		cache.CheckAndMark(fmt.Sprintf("alice:req-%d", i))
	}
	assert.Equal(t, 5, cache.Len())

	time.Sleep(20 * time.Millisecond)
	cache.sweep()

	assert.Equal(t, 0, cache.Len())
}

func TestCache_ConcurrentRetriesOneWinner(t *testing.T) {
	cache := New(5*time.Minute, 1000)
	defer cache.Close()

	const retries = 100

	var wins int32
	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(retries)

	// The same envelope arrives on many goroutines at once; exactly one
	// dispatch may proceed
	for i := 0; i < retries; i++ {
		go func() {
			defer wg.Done()
			if !cache.CheckAndMark("alice:contested") {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

func TestCache_ConcurrentDistinctKeys(t *testing.T) {
	cache := New(5*time.Minute, 10_000)
	defer cache.Close()

	const workers = 50

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := fmt.Sprintf("user-%d:req-%d", worker, j)
				assert.False(t, cache.CheckAndMark(key))
				assert.True(t, cache.CheckAndMark(key))
			}
		}(i)
	}
	wg.Wait()
}

func TestCache_CloseIsIdempotent(t *testing.T) {
	cache := New(5*time.Minute, 100)

	assert.False(t, cache.CheckAndMark("alice:req-1"))

	cache.Close()
	cache.Close()

	// The cache still answers after Close; only the janitor stops
	assert.True(t, cache.CheckAndMark("alice:req-1"))
}
