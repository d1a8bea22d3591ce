// Package ratelimit implements a per-chat outbound throttle
// with an escalating silence window, plus a token-bucket governor bounding
// the global per-chat send rate. Ratelimiter state is advisory — exceeding
// the threshold suppresses sends but never blocks policy evaluation.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
)

// floodScript implements the two-window counter atomically: it increments
// the fast-window key and, once the count reaches the threshold, switches
// the key's TTL to the long penalty-box duration. Every later call still
// increments the counter and re-arms the penalty-box TTL, so each call
// within that window observes count >= threshold.
//
//	KEYS[1] = fast window counter key
//	ARGV[1] = threshold N
//	ARGV[2] = fast window seconds (T1)
//	ARGV[3] = penalty box seconds (T2)
//
// returns the counter value after this call.
const floodScript = `
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
elseif n >= tonumber(ARGV[1]) then
  redis.call('EXPIRE', KEYS[1], ARGV[3])
end
return n
`

// peekScript reads the current counter without incrementing it, used by
// ShouldIgnore to answer "is this chat already silenced" without counting
// the check itself as a send attempt.
const peekScript = `
local v = redis.call('GET', KEYS[1])
if v == false then return 0 end
return tonumber(v)
`

// Limiter enforces the nested-window + token-bucket policy for one bot
// process. One Limiter instance is shared across all chats; per-chat token
// buckets are created lazily.
type Limiter struct {
	cache     *cachesubstrate.Cache
	script    *cachesubstrate.Script
	peek      *cachesubstrate.Script
	threshold int
	fastWin   time.Duration
	penalty   time.Duration

	perSecond rate.Limit

	mu      sync.Mutex
	buckets map[int64]*rate.Limiter
}

// Config bundles the antiflood and rate-limit thresholds.
type Config struct {
	AntifloodWaitCount int           // N: messages before penalty box
	AntifloodWaitTime  time.Duration // T1: fast window length
	IgnoreChatTime     time.Duration // T2: penalty box duration
	PerSecond          float64       // token-bucket refill rate, default 30/s
}

// New builds a Limiter. A PerSecond of 0 defaults to 30 messages/sec.
func New(cache *cachesubstrate.Cache, cfg Config) *Limiter {
	if cfg.PerSecond <= 0 {
		cfg.PerSecond = 30
	}
	return &Limiter{
		cache:     cache,
		script:    cachesubstrate.NewScript(floodScript),
		peek:      cachesubstrate.NewScript(peekScript),
		threshold: cfg.AntifloodWaitCount,
		fastWin:   cfg.AntifloodWaitTime,
		penalty:   cfg.IgnoreChatTime,
		perSecond: rate.Limit(cfg.PerSecond),
		buckets:   make(map[int64]*rate.Limiter),
	}
}

func (l *Limiter) bucket(chatID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[chatID]
	if !ok {
		b = rate.NewLimiter(l.perSecond, int(l.perSecond))
		l.buckets[chatID] = b
	}
	return b
}

// Observe registers one outbound send attempt for chatID and reports
// whether it should be suppressed. This is the write side of
// should_ignore: every user-visible send path must call Observe before
// writing to the transport.
func (l *Limiter) Observe(ctx context.Context, chatID int64) (ignore bool, err error) {
	if !l.bucket(chatID).Allow() {
		return true, nil
	}

	key := cachesubstrate.IgnoreCountKey(chatID)
	cmd, err := l.script.Run(ctx, l.cache, []string{key},
		l.threshold, int(l.fastWin.Seconds()), int(l.penalty.Seconds()))
	if err != nil {
		// Cache outage: ratelimiter state is advisory, so fail open rather
		// than block the send path.
		return false, nil
	}
	n, err := cmd.Int()
	if err != nil {
		return false, nil
	}
	return n >= l.threshold, nil
}

// ShouldIgnore is a read-only check: true whenever the
// chat's fast-window counter is already at or above the threshold, without
// registering a new send attempt.
func (l *Limiter) ShouldIgnore(ctx context.Context, chatID int64) (bool, error) {
	cmd, err := l.peek.Run(ctx, l.cache, []string{cachesubstrate.IgnoreCountKey(chatID)})
	if err != nil {
		return false, nil // cache outage: fail open, ratelimiter state is advisory
	}
	n, err := cmd.Int()
	if err != nil {
		return false, nil
	}
	return n >= l.threshold, nil
}
