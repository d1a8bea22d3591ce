package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
	"github.com/hrygo/sentrybot/store"
)

// fakeDriver is a minimal in-memory store.Driver stand-in, enough to
// exercise identity.Cache's fall-through path without a real database.
type fakeDriver struct {
	store.Driver
	users       map[int64]*store.User
	handles     map[string]int64
	chats       map[int64]*store.Chat
	members     map[int64][]int64
	addMemberN  int
	upsertUserN int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		users:   map[int64]*store.User{},
		handles: map[string]int64{},
		chats:   map[int64]*store.Chat{},
		members: map[int64][]int64{},
	}
}

func (f *fakeDriver) UpsertUser(_ context.Context, u *store.User) error {
	f.upsertUserN++
	f.users[u.ID] = u
	if u.Handle != "" {
		f.handles[u.Handle] = u.ID
	}
	return nil
}

func (f *fakeDriver) GetUser(_ context.Context, id int64) (*store.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return u, nil
}

func (f *fakeDriver) GetUserByHandle(_ context.Context, handle string) (*store.User, error) {
	id, ok := f.handles[handle]
	if !ok {
		return nil, errors.New("not found")
	}
	return f.users[id], nil
}

func (f *fakeDriver) UpsertChat(_ context.Context, c *store.Chat) error {
	f.chats[c.ID] = c
	return nil
}

func (f *fakeDriver) GetChat(_ context.Context, id int64) (*store.Chat, error) {
	c, ok := f.chats[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return c, nil
}

func (f *fakeDriver) AddChatMember(_ context.Context, m *store.ChatMember) error {
	f.addMemberN++
	f.members[m.UserID] = append(f.members[m.UserID], m.ChatID)
	return nil
}

func (f *fakeDriver) ListChatsForUser(_ context.Context, userID int64) ([]int64, error) {
	return f.members[userID], nil
}

// unreachableCache returns a cache substrate pointed at a closed port, so
// the identity cache exercises its pass-through-to-driver path.
func unreachableCache() *cachesubstrate.Cache {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 0})
	return cachesubstrate.NewFromClient(rdb)
}

func TestRecordWritesThroughUserAndChat(t *testing.T) {
	driver := newFakeDriver()
	id := New(unreachableCache(), driver, time.Hour)

	err := id.Record(context.Background(), Observation{
		Chat:   &store.Chat{ID: 100, Title: "Test Chat"},
		Sender: &store.User{ID: 42, Handle: "alice"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, driver.upsertUserN)
	assert.Equal(t, 1, driver.addMemberN)
	assert.Contains(t, driver.members[42], int64(100))
}

func TestRecordSkipsNilParticipants(t *testing.T) {
	driver := newFakeDriver()
	id := New(unreachableCache(), driver, time.Hour)

	err := id.Record(context.Background(), Observation{Sender: &store.User{ID: 1}})
	require.NoError(t, err)
	assert.Equal(t, 1, driver.upsertUserN)
	assert.Equal(t, 0, driver.addMemberN) // no chat present, so no membership to record
}

func TestGetUserFallsThroughToDriver(t *testing.T) {
	driver := newFakeDriver()
	driver.users[7] = &store.User{ID: 7, Handle: "bob"}
	id := New(unreachableCache(), driver, time.Hour)

	u, err := id.GetUser(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "bob", u.Handle)
}

func TestGetUserByHandleResolvesThroughDriver(t *testing.T) {
	driver := newFakeDriver()
	driver.users[7] = &store.User{ID: 7, Handle: "bob"}
	driver.handles["bob"] = 7
	id := New(unreachableCache(), driver, time.Hour)

	u, err := id.GetUserByHandle(context.Background(), "@Bob")
	require.NoError(t, err)
	assert.Equal(t, int64(7), u.ID)
}

func TestNewDefaultsTimeoutTo48Hours(t *testing.T) {
	id := New(unreachableCache(), newFakeDriver(), 0)
	assert.Equal(t, 48*time.Hour, id.timeout)
}

func TestListChatsForUser(t *testing.T) {
	driver := newFakeDriver()
	driver.members[42] = []int64{100, 200}
	id := New(unreachableCache(), driver, time.Hour)

	chats, err := id.ListChatsForUser(context.Background(), 42)
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{100, 200}, chats)
}
