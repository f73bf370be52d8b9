package service

import (
	"sync"
	"time"
)

// RateLimiter caps accepted submissions per team over a sliding window.
// Explicitly constructed and injected; holds only in-memory timestamps, so a
// restart resets the window (acceptable for a soft limit).
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[uint][]time.Time

	now func() time.Time
}

// NewRateLimiter creates a limiter allowing limit submissions per window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 10
	}
	if window <= 0 {
		window = 60 * time.Second
	}
	return &RateLimiter{
		limit:   limit,
		window:  window,
		buckets: make(map[uint][]time.Time),
		now:     time.Now,
	}
}

// Allow records one submission attempt for the team. Returns false plus the
// wait until the oldest counted submission leaves the window.
func (l *RateLimiter) Allow(teamID uint) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	kept := l.buckets[teamID][:0]
	for _, ts := range l.buckets[teamID] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) >= l.limit {
		l.buckets[teamID] = kept
		retryAfter := kept[0].Add(l.window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter
	}

	l.buckets[teamID] = append(kept, now)
	return true, 0
}

// Prune drops teams whose entire window has expired. Called periodically so
// finished sessions do not pin memory.
func (l *RateLimiter) Prune() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for teamID, stamps := range l.buckets {
		live := false
		for _, ts := range stamps {
			if ts.After(cutoff) {
				live = true
				break
			}
		}
		if !live {
			delete(l.buckets, teamID)
		}
	}
}

// StartPruning prunes on the given interval until stop is closed
func (l *RateLimiter) StartPruning(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Prune()
			case <-stop:
				return
			}
		}
	}()
}
