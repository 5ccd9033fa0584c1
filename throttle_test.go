package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSignInLimiterPerKey(t *testing.T) {
	limiter := NewSignInLimiter(60, 2)

	assert.True(t, limiter.Allow("alice"))
	assert.True(t, limiter.Allow("Alice"))
	assert.False(t, limiter.Allow(" ALICE "))

	assert.True(t, limiter.Allow("bob"))
}

func TestSignInLimiterRefills(t *testing.T) {
	now := time.Now()
	limiter := NewSignInLimiter(60, 1)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("alice"))
	assert.False(t, limiter.Allow("alice"))

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("alice"))
}

func TestSignInLimiterSweepsIdleBuckets(t *testing.T) {
	now := time.Now()
	limiter := NewSignInLimiter(60, 1)
	limiter.now = func() time.Time { return now }

	limiter.Allow("alice")
	now = now.Add(time.Hour)
	limiter.Allow("bob")

	assert.Len(t, limiter.buckets, 1)
	assert.Contains(t, limiter.buckets, "bob")
}

func TestNilSignInLimiterAllows(t *testing.T) {
	var limiter *SignInLimiter
	assert.True(t, limiter.Allow("alice"))
}
