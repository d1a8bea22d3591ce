package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
)

func unreachableCache() *cachesubstrate.Cache {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 0})
	return cachesubstrate.NewFromClient(rdb)
}

func TestObserveFailsOpenOnCacheOutage(t *testing.T) {
	l := New(unreachableCache(), Config{AntifloodWaitCount: 5, AntifloodWaitTime: time.Second, IgnoreChatTime: time.Minute})
	ignore, err := l.Observe(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ignore)
}

func TestShouldIgnoreFailsOpenOnCacheOutage(t *testing.T) {
	l := New(unreachableCache(), Config{AntifloodWaitCount: 5})
	ignore, err := l.ShouldIgnore(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ignore)
}

func TestTokenBucketSuppressesBurstAboveGlobalRate(t *testing.T) {
	l := New(unreachableCache(), Config{AntifloodWaitCount: 1000, PerSecond: 1})
	// the per-chat bucket starts with burst capacity == perSecond (1), so the
	// first Observe consumes it and the immediate second one is suppressed.
	first, err := l.Observe(context.Background(), 42)
	require.NoError(t, err)
	assert.False(t, first)

	second, err := l.Observe(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, second)
}

func TestBucketsAreIndependentPerChat(t *testing.T) {
	l := New(unreachableCache(), Config{AntifloodWaitCount: 1000, PerSecond: 1})
	_, _ = l.Observe(context.Background(), 1)
	ignore, err := l.Observe(context.Background(), 2)
	require.NoError(t, err)
	assert.False(t, ignore, "a fresh chat's bucket must not be affected by another chat's burst")
}

func TestNewDefaultsPerSecondTo30(t *testing.T) {
	l := New(unreachableCache(), Config{})
	assert.InDelta(t, 30, float64(l.perSecond), 0.001)
}
