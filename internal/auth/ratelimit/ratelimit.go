// Package ratelimit caps mutation rates per viewer with an in-memory token
// bucket. Buckets refill continuously at limit/window and idle buckets are
// evicted in the background.
package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// Limiter grants each key `limit` tokens per window.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   float64
	window  time.Duration
}

// New creates a limiter allowing limit calls per key per window.
func New(limit int, window time.Duration) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*bucket),
		limit:   float64(limit),
		window:  window,
	}
	go l.evictIdle()
	return l
}

// Allow consumes one token for key, reporting false when the bucket is
// empty.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		l.buckets[key] = &bucket{tokens: l.limit - 1, lastSeen: now}
		return true
	}

	refill := now.Sub(b.lastSeen).Seconds() * (l.limit / l.window.Seconds())
	b.tokens += refill
	if b.tokens > l.limit {
		b.tokens = l.limit
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Reset forgets the bucket for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// evictIdle drops buckets that have been full-and-idle long enough that a
// fresh bucket is indistinguishable.
func (l *Limiter) evictIdle() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		l.mu.Lock()
		cutoff := time.Now().Add(-2 * l.window)
		for key, b := range l.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(l.buckets, key)
			}
		}
		l.mu.Unlock()
	}
}
