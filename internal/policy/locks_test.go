package policy

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
	"github.com/hrygo/sentrybot/store"
)

func TestTriggeredLockTypesDetectsEachPredicate(t *testing.T) {
	types := TriggeredLockTypes(MessageFeatures{HasURL: true, HasSticker: true})
	assert.ElementsMatch(t, []store.LockType{store.LockURL, store.LockSticker}, types)
}

func TestTriggeredLockTypesNoneSet(t *testing.T) {
	assert.Empty(t, TriggeredLockTypes(MessageFeatures{}))
}

type fakeLockDriver struct {
	store.Driver
	locks map[store.LockType]*store.Lock
}

func (f *fakeLockDriver) GetLock(_ context.Context, chatID int64, lt store.LockType) (*store.Lock, error) {
	return f.locks[lt], nil
}

func unreachableCache() *cachesubstrate.Cache {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 0})
	return cachesubstrate.NewFromClient(rdb)
}

func TestEvaluateLocksPicksHighestSeverityAction(t *testing.T) {
	muteAction := store.ActionMute
	banAction := store.ActionBan
	driver := &fakeLockDriver{locks: map[store.LockType]*store.Lock{
		store.LockURL:     {ChatID: 1, LockType: store.LockURL, LockAction: &muteAction},
		store.LockSticker: {ChatID: 1, LockType: store.LockSticker, LockAction: &banAction},
	}}
	s := store.New(driver, unreachableCache(), time.Hour)

	action, types, err := EvaluateLocks(context.Background(), s, 1, store.ActionDelete,
		MessageFeatures{HasURL: true, HasSticker: true})
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, store.ActionBan, *action)
	assert.Equal(t, []store.LockType{store.LockSticker}, types)
}

func TestEvaluateLocksFallsBackToChatDefault(t *testing.T) {
	driver := &fakeLockDriver{locks: map[store.LockType]*store.Lock{
		store.LockURL: {ChatID: 1, LockType: store.LockURL}, // no LockAction
	}}
	s := store.New(driver, unreachableCache(), time.Hour)

	action, _, err := EvaluateLocks(context.Background(), s, 1, store.ActionWarn, MessageFeatures{HasURL: true})
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, store.ActionWarn, *action)
}

func TestEvaluateLocksReturnsNilWhenNothingConfigured(t *testing.T) {
	driver := &fakeLockDriver{locks: map[store.LockType]*store.Lock{}}
	s := store.New(driver, unreachableCache(), time.Hour)

	action, types, err := EvaluateLocks(context.Background(), s, 1, store.ActionWarn, MessageFeatures{HasURL: true})
	require.NoError(t, err)
	assert.Nil(t, action)
	assert.Nil(t, types)
}

func TestEvaluateLocksSkipsLockWhenRuleIsFalse(t *testing.T) {
	rule := "sender.is_premium"
	driver := &fakeLockDriver{locks: map[store.LockType]*store.Lock{
		store.LockURL: {ChatID: 1, LockType: store.LockURL, Rule: &rule},
	}}
	s := store.New(driver, unreachableCache(), time.Hour)

	action, _, err := EvaluateLocks(context.Background(), s, 1, store.ActionWarn,
		MessageFeatures{HasURL: true, IsPremiumSender: false})
	require.NoError(t, err)
	assert.Nil(t, action)
}

func TestEvaluateLocksAppliesLockWhenRuleIsTrue(t *testing.T) {
	rule := "sender.is_premium"
	driver := &fakeLockDriver{locks: map[store.LockType]*store.Lock{
		store.LockURL: {ChatID: 1, LockType: store.LockURL, Rule: &rule},
	}}
	s := store.New(driver, unreachableCache(), time.Hour)

	action, _, err := EvaluateLocks(context.Background(), s, 1, store.ActionWarn,
		MessageFeatures{HasURL: true, IsPremiumSender: true})
	require.NoError(t, err)
	require.NotNil(t, action)
	assert.Equal(t, store.ActionWarn, *action)
}

func TestEvaluateLocksReturnsNilWhenNoPredicatesTrigger(t *testing.T) {
	s := store.New(&fakeLockDriver{}, unreachableCache(), time.Hour)
	action, types, err := EvaluateLocks(context.Background(), s, 1, store.ActionWarn, MessageFeatures{})
	require.NoError(t, err)
	assert.Nil(t, action)
	assert.Nil(t, types)
}

func TestListLockStatusReportsConfiguredAndUnconfigured(t *testing.T) {
	banAction := store.ActionBan
	driver := &fakeLockDriver{locks: map[store.LockType]*store.Lock{
		store.LockURL: {ChatID: 1, LockType: store.LockURL, LockAction: &banAction},
	}}
	s := store.New(driver, unreachableCache(), time.Hour)

	statuses, err := ListLockStatus(context.Background(), s, 1)
	require.NoError(t, err)
	require.Len(t, statuses, len(store.AllLockTypes))

	for _, st := range statuses {
		if st.Type == store.LockURL {
			assert.True(t, st.Locked)
			require.NotNil(t, st.Action)
			assert.Equal(t, store.ActionBan, *st.Action)
		} else {
			assert.False(t, st.Locked)
			assert.Nil(t, st.Action)
		}
	}
}
