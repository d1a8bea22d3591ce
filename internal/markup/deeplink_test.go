package markup

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

func TestDeepLinkURLFormat(t *testing.T) {
	d := NewDeepLinks(unreachableCache(), time.Hour, "sentrybot")
	assert.Equal(t, "https://t.me/sentrybot?start=tok123", d.URL("tok123"))
}

func TestDeepLinkResolveMissingTokenOnOutage(t *testing.T) {
	d := NewDeepLinks(unreachableCache(), time.Hour, "sentrybot")
	_, found, err := d.Resolve(context.Background(), "anything")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMintReturnsURLSafeToken(t *testing.T) {
	d := NewDeepLinks(unreachableCache(), time.Hour, "sentrybot")
	token, err := d.Mint(context.Background(), 100, "rules")
	require.NoError(t, err)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")
	assert.NotContains(t, token, "=")
}
