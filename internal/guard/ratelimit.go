// Package guard implements the protective layers wrapped around LLM
// invocation. This file provides a per-chat token-bucket rate limiter.
//
// Buckets are created on demand and stored in an internal map guarded by a
// mutex. Idle buckets are evicted after a TTL via opportunistic cleanup
// during lookups to keep memory usage bounded. The limiter is process-local,
// which matches a single webhook consumer per bot token.
package guard

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// chatBucket holds a single rate limiter and the last time it was seen.
// Used to opportunistically evict idle buckets.
type chatBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ChatLimiter enforces a per-chat token bucket over LLM invocations. It is
// safe for concurrent use.
type ChatLimiter struct {
	rps   rate.Limit
	burst int

	mu       sync.Mutex
	buckets  map[int64]*chatBucket
	ttl      time.Duration
	cleanupN uint64
}

// NewChatLimiter constructs a ChatLimiter with the given tokens-per-second
// and burst size. Burst values <= 0 are coerced to 1.
func NewChatLimiter(rps float64, burst int) *ChatLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ChatLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		buckets: make(map[int64]*chatBucket),
		ttl:     10 * time.Minute, // evict idle entries after TTL
	}
}

// getBucket returns (and updates) the limiter for chatID, creating it if
// absent. It also performs opportunistic GC of idle entries after ~5000
// lookups.
//
// IMPORTANT: Run GC *before* touching the requested bucket so an "old"
// bucket can be evicted even when it's the one being fetched.
func (cl *ChatLimiter) getBucket(chatID int64) *rate.Limiter {
	now := time.Now()

	cl.mu.Lock()
	cl.cleanupN++
	if cl.cleanupN >= 5000 {
		for k, b := range cl.buckets {
			if now.Sub(b.lastSeen) >= cl.ttl {
				delete(cl.buckets, k)
			}
		}
		cl.cleanupN = 0
	}

	if b, ok := cl.buckets[chatID]; ok {
		b.lastSeen = now
		lim := b.limiter
		cl.mu.Unlock()
		return lim
	}

	lim := rate.NewLimiter(cl.rps, cl.burst)
	cl.buckets[chatID] = &chatBucket{limiter: lim, lastSeen: now}
	cl.mu.Unlock()
	return lim
}

// Allow consumes one token from the chat's bucket. It returns
// ErrRateLimited when the bucket is empty; the message is dropped with a
// polite reply, never queued.
func (cl *ChatLimiter) Allow(chatID int64) error {
	if cl.getBucket(chatID).Allow() {
		return nil
	}
	return ErrRateLimited
}
