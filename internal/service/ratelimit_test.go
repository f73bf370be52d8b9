package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_AllowsUpToLimit(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		ok, _ := limiter.Allow(1)
		assert.True(t, ok, "submission %d should pass", i+1)
	}

	ok, retryAfter := limiter.Allow(1)
	assert.False(t, ok)
	assert.Greater(t, retryAfter, time.Duration(0))
}

func TestRateLimiter_TeamsAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	ok, _ := limiter.Allow(1)
	assert.True(t, ok)
	ok, _ = limiter.Allow(1)
	assert.False(t, ok)

	// A different team still has a fresh window
	ok, _ = limiter.Allow(2)
	assert.True(t, ok)
}

func TestRateLimiter_WindowSlides(t *testing.T) {
	limiter := NewRateLimiter(2, time.Minute)
	current := time.Now()
	limiter.now = func() time.Time { return current }

	ok, _ := limiter.Allow(1)
	assert.True(t, ok)
	ok, _ = limiter.Allow(1)
	assert.True(t, ok)
	ok, _ = limiter.Allow(1)
	assert.False(t, ok)

	// Past the window the team may submit again
	current = current.Add(61 * time.Second)
	ok, _ = limiter.Allow(1)
	assert.True(t, ok)
}

func TestRateLimiter_RetryAfterShrinks(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)
	current := time.Now()
	limiter.now = func() time.Time { return current }

	ok, _ := limiter.Allow(1)
	assert.True(t, ok)

	_, first := limiter.Allow(1)
	current = current.Add(30 * time.Second)
	_, second := limiter.Allow(1)
	assert.Less(t, second, first)
}

func TestRateLimiter_Prune(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute)
	current := time.Now()
	limiter.now = func() time.Time { return current }

	limiter.Allow(1)
	limiter.Allow(2)
	assert.Len(t, limiter.buckets, 2)

	current = current.Add(2 * time.Minute)
	limiter.Prune()
	assert.Len(t, limiter.buckets, 0)
}

func TestRateLimiter_Defaults(t *testing.T) {
	limiter := NewRateLimiter(0, 0)
	assert.Equal(t, 10, limiter.limit)
	assert.Equal(t, 60*time.Second, limiter.window)
}
