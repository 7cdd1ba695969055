package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketAllowsBurstThenBlocks(t *testing.T) {
	bucket := NewTokenBucket(3, 1, time.Minute)

	for i := 0; i < 3; i++ {
		allowed, wait := bucket.Allow()
		assert.True(t, allowed, "send %d should be allowed", i+1)
		assert.Zero(t, wait)
	}

	allowed, wait := bucket.Allow()
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))
	assert.LessOrEqual(t, wait, time.Minute)
}

func TestTokenBucketRefills(t *testing.T) {
	bucket := NewTokenBucket(1, 1, 20*time.Millisecond)

	allowed, _ := bucket.Allow()
	assert.True(t, allowed)
	allowed, _ = bucket.Allow()
	assert.False(t, allowed)

	assert.Eventually(t, func() bool {
		ok, _ := bucket.Allow()
		return ok
	}, time.Second, 5*time.Millisecond)
}

func TestRefundReturnsToken(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)

	allowed, _ := limiter.Allow("send_message")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("send_message")
	assert.False(t, allowed)

	limiter.Refund("send_message")
	allowed, _ = limiter.Allow("send_message")
	assert.True(t, allowed)

	// Refunds never grow the bucket beyond its burst.
	limiter.Refund("send_message")
	limiter.Refund("send_message")
	allowed, _ = limiter.Allow("send_message")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("send_message")
	assert.False(t, allowed)

	// Refunding an action that never ran is a no-op.
	limiter.Refund("upload")
}

func TestLimiterPerActionBuckets(t *testing.T) {
	limiter := NewLimiter(1, time.Minute)

	allowed, _ := limiter.Allow("send_message")
	assert.True(t, allowed)
	allowed, _ = limiter.Allow("send_message")
	assert.False(t, allowed)

	// A different action has its own bucket.
	allowed, _ = limiter.Allow("upload")
	assert.True(t, allowed)
}

func TestLimiterDefaults(t *testing.T) {
	limiter := NewLimiter(0, 0)

	for i := 0; i < 10; i++ {
		allowed, _ := limiter.Allow("send_message")
		assert.True(t, allowed)
	}
	allowed, wait := limiter.Allow("send_message")
	assert.False(t, allowed)
	assert.Greater(t, wait, time.Duration(0))
}
