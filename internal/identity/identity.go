// Package identity implements a write-through cache of every
// user and chat the bot observes, so "lookup by @handle" and "lookup this
// user's chats" work without re-querying the transport.
package identity

import (
	"context"
	"strings"
	"time"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
	"github.com/hrygo/sentrybot/store"
)

// Cache is the identity cache handle. It wraps the cache substrate and the
// relational store's identity tables.
type Cache struct {
	cache   *cachesubstrate.Cache
	driver  store.Driver
	timeout time.Duration // cache_timeout, default 48h
}

// New builds an identity cache with the given TTL (timing.cache_timeout).
func New(cache *cachesubstrate.Cache, driver store.Driver, timeout time.Duration) *Cache {
	if timeout <= 0 {
		timeout = 48 * time.Hour
	}
	return &Cache{cache: cache, driver: driver, timeout: timeout}
}

// Observation is everything the dispatcher extracts from one inbound update
// about the people and chat involved in it.
type Observation struct {
	Chat            *store.Chat
	Sender          *store.User
	ReplyTargetUser *store.User
	ForwardOrigin   *store.User
}

// Record writes through every user/chat present in an Observation: the
// sender user and, if present, the chat; also records reply-target
// senders and forward-origin senders.
func (c *Cache) Record(ctx context.Context, obs Observation) error {
	if obs.Chat != nil {
		if err := c.upsertChat(ctx, obs.Chat); err != nil {
			return err
		}
	}
	for _, u := range []*store.User{obs.Sender, obs.ReplyTargetUser, obs.ForwardOrigin} {
		if u == nil {
			continue
		}
		if err := c.upsertUser(ctx, u); err != nil {
			return err
		}
		if obs.Chat != nil && u == obs.Sender {
			// the ChatMember index must contain (chat, user) before the next
			// update for that pair is processed.
			if err := c.driver.AddChatMember(ctx, &store.ChatMember{ChatID: obs.Chat.ID, UserID: u.ID}); err != nil {
				return err
			}
			if err := c.cache.SAdd(ctx, cachesubstrate.MemberKey(u.ID), obs.Chat.ID); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Cache) upsertUser(ctx context.Context, u *store.User) error {
	if err := c.driver.UpsertUser(ctx, u); err != nil {
		return err
	}
	if err := c.cache.Invalidate(ctx, cachesubstrate.UserKey(u.ID)); err != nil {
		return err
	}
	if err := c.cache.Set(ctx, cachesubstrate.UserKey(u.ID), u, c.timeout); err != nil {
		return err
	}
	if u.Handle != "" {
		handleKey := cachesubstrate.HandleKey(strings.ToLower(u.Handle))
		return c.cache.Set(ctx, handleKey, u.ID, c.timeout)
	}
	return nil
}

func (c *Cache) upsertChat(ctx context.Context, ch *store.Chat) error {
	if err := c.driver.UpsertChat(ctx, ch); err != nil {
		return err
	}
	if err := c.cache.Invalidate(ctx, cachesubstrate.ChatKey(ch.ID)); err != nil {
		return err
	}
	return c.cache.Set(ctx, cachesubstrate.ChatKey(ch.ID), ch, c.timeout)
}

// GetUser looks up a user by id, reading through the cache to SQL on miss.
func (c *Cache) GetUser(ctx context.Context, id int64) (*store.User, error) {
	return cachesubstrate.GetOrCompute(ctx, c.cache, cachesubstrate.UserKey(id), c.timeout,
		func(ctx context.Context) (*store.User, error) {
			return c.driver.GetUser(ctx, id)
		})
}

// GetChat looks up a chat by id.
func (c *Cache) GetChat(ctx context.Context, id int64) (*store.Chat, error) {
	return cachesubstrate.GetOrCompute(ctx, c.cache, cachesubstrate.ChatKey(id), c.timeout,
		func(ctx context.Context) (*store.Chat, error) {
			return c.driver.GetChat(ctx, id)
		})
}

// GetUserByHandle resolves a @handle (with or without the leading @) to a
// User, reading handle→id from cache and then falling through GetUser.
func (c *Cache) GetUserByHandle(ctx context.Context, handle string) (*store.User, error) {
	handle = strings.ToLower(strings.TrimPrefix(handle, "@"))
	id, err := cachesubstrate.GetOrCompute(ctx, c.cache, cachesubstrate.HandleKey(handle), c.timeout,
		func(ctx context.Context) (int64, error) {
			u, err := c.driver.GetUserByHandle(ctx, handle)
			if err != nil {
				return 0, err
			}
			return u.ID, nil
		})
	if err != nil {
		return nil, err
	}
	return c.GetUser(ctx, id)
}

// ListChatsForUser returns every chat id the user has been observed in.
func (c *Cache) ListChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return c.driver.ListChatsForUser(ctx, userID)
}
