// Package ratelimit guards user-initiated sends against accidental floods.
// It is a usability measure, not a security boundary: the backend enforces
// its own limits.
package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket allows a burst of actions, then refills at a fixed rate.
type TokenBucket struct {
	tokens     int
	maxTokens  int
	refillRate int
	refillTime time.Duration
	lastRefill time.Time
	mutex      sync.Mutex
}

func NewTokenBucket(maxTokens, refillRate int, refillTime time.Duration) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		refillTime: refillTime,
		lastRefill: time.Now(),
	}
}

// Allow consumes a token if one is available. When it is not, the returned
// duration is the remaining cooldown before the next token.
func (tb *TokenBucket) Allow() (bool, time.Duration) {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill)
	tokensToAdd := int(elapsed/tb.refillTime) * tb.refillRate

	if tokensToAdd > 0 {
		tb.tokens += tokensToAdd
		if tb.tokens > tb.maxTokens {
			tb.tokens = tb.maxTokens
		}
		tb.lastRefill = now
	}

	if tb.tokens > 0 {
		tb.tokens--
		return true, 0
	}

	nextRefill := tb.lastRefill.Add(tb.refillTime)
	return false, nextRefill.Sub(now)
}

// Refund returns a consumed token, for actions that were allowed but never
// carried out.
func (tb *TokenBucket) Refund() {
	tb.mutex.Lock()
	defer tb.mutex.Unlock()
	if tb.tokens < tb.maxTokens {
		tb.tokens++
	}
}

// Limiter keys buckets by action name ("send_message", "upload", ...) with a
// single configured burst/refill policy per limiter.
type Limiter struct {
	buckets    map[string]*TokenBucket
	maxTokens  int
	refillTime time.Duration
	mutex      sync.Mutex
}

func NewLimiter(burst int, refill time.Duration) *Limiter {
	if burst <= 0 {
		burst = 10
	}
	if refill <= 0 {
		refill = 6 * time.Second
	}
	return &Limiter{
		buckets:    make(map[string]*TokenBucket),
		maxTokens:  burst,
		refillTime: refill,
	}
}

func (l *Limiter) Allow(action string) (bool, time.Duration) {
	l.mutex.Lock()
	bucket, exists := l.buckets[action]
	if !exists {
		bucket = NewTokenBucket(l.maxTokens, 1, l.refillTime)
		l.buckets[action] = bucket
	}
	l.mutex.Unlock()

	return bucket.Allow()
}

func (l *Limiter) Refund(action string) {
	l.mutex.Lock()
	bucket, exists := l.buckets[action]
	l.mutex.Unlock()
	if exists {
		bucket.Refund()
	}
}
