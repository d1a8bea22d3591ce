package markup

import (
	"context"
	"fmt"
	"time"

	"github.com/lithammer/shortuuid/v4"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
)

// DeepLinkPayload is the semantic payload a deep-link token resolves to:
// "reopen a private chat with the bot with a start parameter" carrying
// enough context to continue whatever the group-chat button was for.
type DeepLinkPayload struct {
	ChatID int64  `json:"chat_id"`
	Tail   string `json:"tail"`
}

// DeepLinks mints and resolves deep-link tokens against the cache
// substrate. Tokens are short-uuid encoded (base57, no padding or
// URL-unsafe characters), so they drop straight into a t.me start
// parameter with no further encoding step, and carry the cache's
// standard TTL.
type DeepLinks struct {
	cache       *cachesubstrate.Cache
	ttl         time.Duration
	botUsername string
}

// NewDeepLinks builds a minter. botUsername (without leading @) is used to
// build t.me/<bot>?start=<token> URLs.
func NewDeepLinks(cache *cachesubstrate.Cache, ttl time.Duration, botUsername string) *DeepLinks {
	return &DeepLinks{cache: cache, ttl: ttl, botUsername: botUsername}
}

func newToken() string {
	return shortuuid.New()
}

// Mint stores a (chatID, tail) payload under a fresh token and returns it.
func (d *DeepLinks) Mint(ctx context.Context, chatID int64, tail string) (string, error) {
	token := newToken()
	payload := DeepLinkPayload{ChatID: chatID, Tail: tail}
	if err := d.cache.Set(ctx, cachesubstrate.DeepLinkKey(token), payload, d.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// MintRules stores a "show rules for this chat" payload, used by the
// `{rules}` filling.
func (d *DeepLinks) MintRules(ctx context.Context, chatID int64) (string, error) {
	token := newToken()
	payload := DeepLinkPayload{ChatID: chatID, Tail: "rules"}
	if err := d.cache.Set(ctx, cachesubstrate.RulesDeepLinkKey(token), payload, d.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve looks up a previously minted token's payload.
func (d *DeepLinks) Resolve(ctx context.Context, token string) (*DeepLinkPayload, bool, error) {
	v, found, err := cachesubstrate.Get[DeepLinkPayload](ctx, d.cache, cachesubstrate.DeepLinkKey(token))
	if err != nil || !found {
		return nil, found, err
	}
	return &v, true, nil
}

// ResolveRules looks up a rules-deep-link token's payload.
func (d *DeepLinks) ResolveRules(ctx context.Context, token string) (*DeepLinkPayload, bool, error) {
	v, found, err := cachesubstrate.Get[DeepLinkPayload](ctx, d.cache, cachesubstrate.RulesDeepLinkKey(token))
	if err != nil || !found {
		return nil, found, err
	}
	return &v, true, nil
}

// URL builds the client-facing deep-link URL for a token.
func (d *DeepLinks) URL(token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", d.botUsername, token)
}
