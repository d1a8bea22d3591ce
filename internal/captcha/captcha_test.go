package captcha

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
)

// liveCache runs an in-memory Redis stand-in, since captcha state has no
// SQL fallback to exercise the logic through on a pass-through cache.
func liveCache(t *testing.T) *cachesubstrate.Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cachesubstrate.NewFromClient(rdb)
}

func TestEnableDisableEnabled(t *testing.T) {
	s := New(liveCache(t), time.Minute)
	ctx := context.Background()

	enabled, err := s.Enabled(ctx, 1)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, s.Enable(ctx, 1))
	enabled, err = s.Enabled(ctx, 1)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, s.Disable(ctx, 1))
	enabled, err = s.Enabled(ctx, 1)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestChallengeThenVerifyCorrectCode(t *testing.T) {
	s := New(liveCache(t), time.Minute)
	ctx := context.Background()

	code, err := s.Challenge(ctx, 1, 42)
	require.NoError(t, err)
	require.Len(t, code, codeLength)

	ok, exhausted, err := s.Verify(ctx, 1, 42, code)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.False(t, exhausted)

	// the challenge is cleared on a correct solve; re-verifying finds nothing pending.
	ok, exhausted, err = s.Verify(ctx, 1, 42, code)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, exhausted)
}

func TestPendingReflectsChallengeLifecycle(t *testing.T) {
	s := New(liveCache(t), time.Minute)
	ctx := context.Background()

	pending, err := s.Pending(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, pending)

	code, err := s.Challenge(ctx, 1, 42)
	require.NoError(t, err)
	pending, err = s.Pending(ctx, 1, 42)
	require.NoError(t, err)
	assert.True(t, pending)

	_, _, err = s.Verify(ctx, 1, 42, code)
	require.NoError(t, err)
	pending, err = s.Pending(ctx, 1, 42)
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestVerifyWithNoPendingChallenge(t *testing.T) {
	s := New(liveCache(t), time.Minute)
	ok, exhausted, err := s.Verify(context.Background(), 1, 42, "ANYCODE")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, exhausted)
}

func TestVerifyExhaustsAttemptsAfterWrongGuesses(t *testing.T) {
	s := New(liveCache(t), time.Minute)
	ctx := context.Background()
	_, err := s.Challenge(ctx, 1, 42)
	require.NoError(t, err)

	var exhausted bool
	for i := 0; i < maxAttempts; i++ {
		var ok bool
		ok, exhausted, err = s.Verify(ctx, 1, 42, "wrong")
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.True(t, exhausted)

	// attempt state is cleared once exhausted.
	ok, exhausted, err := s.Verify(ctx, 1, 42, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, exhausted)
}

func TestRandomCodeUsesOnlyAllowedAlphabet(t *testing.T) {
	code, err := randomCode()
	require.NoError(t, err)
	require.Len(t, code, codeLength)
	for _, r := range code {
		assert.Contains(t, codeAlphabet, string(r))
	}
}
