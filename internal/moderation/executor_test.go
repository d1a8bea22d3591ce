package moderation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
	"github.com/hrygo/sentrybot/store"
)

// deadCache points at a connection that will never answer, so every
// cachesubstrate call takes the pass-through path without a real Redis —
// the same trick internal/conversation's tests use.
func deadCache() *cachesubstrate.Cache {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: time.Millisecond})
	return cachesubstrate.NewFromClient(rdb)
}

type fakeDriver struct {
	store.Driver
	actions  map[string]*store.Action
	warns    map[string][]*store.Warn
	approved map[string]bool
	dialog   *store.Dialog
	nextWarn int64
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		actions:  map[string]*store.Action{},
		warns:    map[string][]*store.Warn{},
		approved: map[string]bool{},
		dialog:   &store.Dialog{WarnLimit: 3, ActionType: store.ActionMute},
	}
}

func akey(u, c int64) string { return fmt.Sprintf("%d:%d", u, c) }

func (f *fakeDriver) GetAction(_ context.Context, u, c int64) (*store.Action, error) {
	return f.actions[akey(u, c)], nil
}
func (f *fakeDriver) UpsertAction(_ context.Context, a *store.Action) error {
	f.actions[akey(a.UserID, a.ChatID)] = a
	return nil
}
func (f *fakeDriver) DeleteAction(_ context.Context, u, c int64) error {
	delete(f.actions, akey(u, c))
	return nil
}
func (f *fakeDriver) ListWarns(_ context.Context, u, c int64) ([]*store.Warn, error) {
	return f.warns[akey(u, c)], nil
}
func (f *fakeDriver) DeleteExpiredWarns(context.Context, int64, int64) error { return nil }
func (f *fakeDriver) InsertWarn(_ context.Context, w *store.Warn) (int64, error) {
	f.nextWarn++
	w.ID = f.nextWarn
	key := akey(w.UserID, w.ChatID)
	f.warns[key] = append(f.warns[key], w)
	return w.ID, nil
}
func (f *fakeDriver) DeleteWarn(_ context.Context, id int64) error {
	for k, ws := range f.warns {
		for i, w := range ws {
			if w.ID == id {
				f.warns[k] = append(ws[:i], ws[i+1:]...)
				return nil
			}
		}
	}
	return nil
}
func (f *fakeDriver) IsApproved(_ context.Context, c, u int64) (bool, error) {
	return f.approved[akey(u, c)], nil
}
func (f *fakeDriver) GetDialog(context.Context, int64) (*store.Dialog, error) { return f.dialog, nil }

type fakeTransport struct {
	restricted []int64
	banned     []int64
	unbanned   []int64
	admins     map[int64]bool
}

func newFakeTransport() *fakeTransport { return &fakeTransport{admins: map[int64]bool{}} }

func (f *fakeTransport) Restrict(_ context.Context, _, userID int64, _ store.Permissions, _ *time.Time) error {
	f.restricted = append(f.restricted, userID)
	return nil
}
func (f *fakeTransport) Ban(_ context.Context, _, userID int64, _ *time.Time) error {
	f.banned = append(f.banned, userID)
	return nil
}
func (f *fakeTransport) Unban(_ context.Context, _, userID int64) error {
	f.unbanned = append(f.unbanned, userID)
	return nil
}
func (f *fakeTransport) IsChatAdmin(_ context.Context, _, userID int64) (bool, error) {
	return f.admins[userID], nil
}

func newTestExecutor() (*Executor, *fakeDriver, *fakeTransport) {
	fd := newFakeDriver()
	ft := newFakeTransport()
	s := store.New(fd, deadCache(), time.Hour)
	return New(s, ft, 999), fd, ft
}

func TestBanOnBotFails(t *testing.T) {
	e, _, _ := newTestExecutor()
	err := e.Ban(context.Background(), 1, 100, 999, nil)
	assert.ErrorIs(t, err, ErrCannotActOnBot)
}

func TestBanOnSelfFails(t *testing.T) {
	e, _, _ := newTestExecutor()
	err := e.Ban(context.Background(), 1, 100, 1, nil)
	assert.ErrorIs(t, err, ErrSelfMute)
}

func TestBanOnAdminFails(t *testing.T) {
	e, _, ft := newTestExecutor()
	ft.admins[42] = true
	err := e.Ban(context.Background(), 1, 100, 42, nil)
	assert.ErrorIs(t, err, ErrTargetIsAdmin)
}

func TestBanOnApprovedIsNoOp(t *testing.T) {
	e, fd, ft := newTestExecutor()
	fd.approved[akey(42, 100)] = true
	err := e.Ban(context.Background(), 1, 100, 42, nil)
	assert.ErrorIs(t, err, ErrApproved)
	assert.Empty(t, ft.banned)
}

func TestBanRecordsPendingAction(t *testing.T) {
	e, fd, ft := newTestExecutor()
	require.NoError(t, e.Ban(context.Background(), 1, 100, 42, nil))
	assert.Equal(t, []int64{42}, ft.banned)
	action := fd.actions[akey(42, 100)]
	require.NotNil(t, action)
	assert.True(t, action.IsBanned)
	assert.True(t, action.Pending)
}

func TestKickBansThenUnbans(t *testing.T) {
	e, fd, ft := newTestExecutor()
	require.NoError(t, e.Kick(context.Background(), 1, 100, 42))
	assert.Equal(t, []int64{42}, ft.banned)
	assert.Equal(t, []int64{42}, ft.unbanned)
	assert.Nil(t, fd.actions[akey(42, 100)])
}

// S2: warn escalation. Dialog{warn_limit=3, action=mute}. warn(42, 100)
// three times with no reason. On the third call, return (3,3) and mute.
func TestWarnEscalatesAtLimit(t *testing.T) {
	e, _, ft := newTestExecutor()
	ctx := context.Background()
	var last *WarnResult
	for i := 0; i < 3; i++ {
		r, err := e.Warn(ctx, 100, 42, "", 3, nil)
		require.NoError(t, err)
		last = r
	}
	assert.Equal(t, 3, last.Count)
	assert.Equal(t, 3, last.Limit)
	assert.True(t, last.Escalated)
	assert.Equal(t, store.ActionMute, last.Action)
	assert.Equal(t, []int64{42}, ft.restricted)
}

func TestWarnStopsIncreasingAtLimit(t *testing.T) {
	e, _, _ := newTestExecutor()
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		_, err := e.Warn(ctx, 100, 42, "", 3, nil)
		require.NoError(t, err)
	}
	r, err := e.Warn(ctx, 100, 42, "", 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, r.Count)
	assert.False(t, r.Escalated)
}

func TestApplyPendingDropsExpiredAction(t *testing.T) {
	e, fd, ft := newTestExecutor()
	past := time.Now().Add(-time.Hour)
	fd.actions[akey(42, 100)] = &store.Action{UserID: 42, ChatID: 100, IsBanned: true, ExpiresAt: &past, Pending: true}

	require.NoError(t, e.ApplyPending(context.Background(), 100, 42))
	assert.Nil(t, fd.actions[akey(42, 100)])
	assert.Empty(t, ft.banned) // dropped, not applied
}

// Property 6: applying the same Action row twice has the same observable
// effect as once, because the row is cleared after the first apply.
func TestApplyPendingIsIdempotent(t *testing.T) {
	e, fd, ft := newTestExecutor()
	fd.actions[akey(42, 100)] = &store.Action{UserID: 42, ChatID: 100, IsBanned: true, Pending: true}

	require.NoError(t, e.ApplyPending(context.Background(), 100, 42))
	require.NoError(t, e.ApplyPending(context.Background(), 100, 42))
	assert.Equal(t, []int64{42}, ft.banned)
}

func TestShameTemplateWithAndWithoutReason(t *testing.T) {
	assert.Equal(t, "⚠️ {mention} has been called out.", ShameTemplate(""))
	assert.Equal(t, "⚠️ {mention} has been called out: spamming", ShameTemplate("spamming"))
}

func TestParseDurationClampsMinimum(t *testing.T) {
	d, err := ParseDuration("5s")
	assert.Error(t, err)
	d, err = ParseDuration("1m")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, d)
	d, err = ParseDuration("0m")
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, d)
}

func TestParseDurationUnits(t *testing.T) {
	h, err := ParseDuration("2h")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, h)

	dd, err := ParseDuration("3d")
	require.NoError(t, err)
	assert.Equal(t, 72*time.Hour, dd)
}

func TestResolveTargetFromReply(t *testing.T) {
	id, rest, err := ResolveTarget(context.Background(), ActionMessage{ReplyToSenderID: 7, Args: []Arg{{Kind: ArgPlain, Text: "spam"}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Len(t, rest, 1)
}

func TestResolveTargetFromDecimalArg(t *testing.T) {
	id, rest, err := ResolveTarget(context.Background(), ActionMessage{Args: []Arg{{Kind: ArgPlain, Text: "55"}, {Kind: ArgPlain, Text: "1h"}}}, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(55), id)
	assert.Equal(t, []Arg{{Kind: ArgPlain, Text: "1h"}}, rest)
}

func TestResolveTargetMissing(t *testing.T) {
	_, _, err := ResolveTarget(context.Background(), ActionMessage{}, nil)
	assert.ErrorIs(t, err, ErrMissingTarget)
}

func TestResolveTargetMention(t *testing.T) {
	resolve := func(_ context.Context, handle string) (int64, error) {
		assert.Equal(t, "alice", handle)
		return 9, nil
	}
	id, _, err := ResolveTarget(context.Background(), ActionMessage{Args: []Arg{{Kind: ArgMention, Text: "alice"}}}, resolve)
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
}
