// Package cachesubstrate implements a TTL'd key/value cache
// fronting the relational store, with atomic pipelines and Lua-style
// scripts for counters such as the ratelimit's. It is backed by
// Redis (github.com/redis/go-redis/v9); on Redis outage it degrades to
// pass-through (every read falls back to the supplied miss function)
// rather than ever serving stale or fabricated data.
package cachesubstrate

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Cache is the process-wide cache substrate handle.
type Cache struct {
	rdb *redis.Client
}

// New wires a cache substrate to a Redis-compatible endpoint described by a
// redis:// DSN.
func New(dsn string) (*Cache, error) {
	opt, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis dsn")
	}
	return &Cache{rdb: redis.NewClient(opt)}, nil
}

// NewFromClient wraps an already-configured client, used by tests against a
// miniredis-style stand-in.
func NewFromClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// available reports whether Redis answered a PING within a short budget.
// Every read-through path consults this so the substrate degrades to
// pass-through rather than surfacing a cache outage as a hard error
// (a cache outage degrades to a direct fallback rather than failing).
func (c *Cache) available(ctx context.Context) bool {
	pingCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	return c.rdb.Ping(pingCtx).Err() == nil
}

// MissFunc computes the SQL-backed value on a cache miss.
type MissFunc[T any] func(ctx context.Context) (T, error)

// GetOrCompute implements get_or_compute(key, ttl, miss_fn): read through to
// the caller-supplied computation on miss, storing the serialized result
// with the given TTL. On cache unavailability it calls miss_fn directly
// every time (pass-through), logging but never swallowing SQL data.
func GetOrCompute[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, miss MissFunc[T]) (T, error) {
	var zero T
	if !c.available(ctx) {
		slog.Warn("cachesubstrate: unavailable, passing through", "key", key)
		return miss(ctx)
	}

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var v T
		if uerr := json.Unmarshal(raw, &v); uerr == nil {
			return v, nil
		}
		slog.Warn("cachesubstrate: corrupt cache entry, recomputing", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		slog.Warn("cachesubstrate: read error, passing through", "key", key, "error", err)
		return miss(ctx)
	}

	v, err := miss(ctx)
	if err != nil {
		return zero, err
	}

	if raw, merr := json.Marshal(v); merr == nil {
		if serr := c.rdb.Set(ctx, key, raw, ttl).Err(); serr != nil {
			slog.Warn("cachesubstrate: failed to populate cache", "key", key, "error", serr)
		}
	}
	return v, nil
}

// Get reads a key without any miss-computation fallback, used by callers
// (deep-link resolution, conversation cursors) for whom a missing key is a
// meaningful "not found" rather than something to recompute.
func Get[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T
	if !c.available(ctx) {
		return zero, false, nil
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// Invalidate deletes one or more keys. Every policy-store write calls this
// before (or atomically with) its SQL write, so a reader never observes a
// stale cached value after a write commits.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if !c.available(ctx) {
		return nil // nothing to invalidate if nothing is cached
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// Set stores a raw value with a TTL, used by writers that want to prime the
// cache with a value they already have rather than recomputing it.
func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !c.available(ctx) {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, raw, ttl).Err()
}

// Op is one command in a Pipeline batch.
type Op func(pipe redis.Pipeliner)

// Pipeline executes a batch of commands atomically against the cache
// (batched the way a Redis pipeline batches multiple ops).
func (c *Cache) Pipeline(ctx context.Context, ops ...Op) ([]redis.Cmder, error) {
	pipe := c.rdb.TxPipeline()
	for _, op := range ops {
		op(pipe)
	}
	return pipe.Exec(ctx)
}

// Script wraps a Lua script for atomic server-side mutation, e.g. the
// ratelimit counter-with-conditional-expire.
type Script struct {
	s *redis.Script
}

// NewScript compiles source into a reusable Script.
func NewScript(source string) *Script {
	return &Script{s: redis.NewScript(source)}
}

// Run evaluates the script against the given keys/args.
func (s *Script) Run(ctx context.Context, c *Cache, keys []string, args ...any) (*redis.Cmd, error) {
	cmd := s.s.Run(ctx, c.rdb, keys, args...)
	return cmd, cmd.Err()
}

// HashSet/HashGetAll/SAdd/SIsMember expose the set/hash primitives the
// policy store needs for O(1) trigger and approval membership tests.

func (c *Cache) HashSet(ctx context.Context, key string, values map[string]any) error {
	if !c.available(ctx) {
		return nil
	}
	return c.rdb.HSet(ctx, key, values).Err()
}

func (c *Cache) HashGetAll(ctx context.Context, key string) (map[string]string, bool, error) {
	if !c.available(ctx) {
		return nil, false, nil
	}
	m, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}
	return m, len(m) > 0, nil
}

func (c *Cache) SAdd(ctx context.Context, key string, member any) error {
	if !c.available(ctx) {
		return nil
	}
	return c.rdb.SAdd(ctx, key, member).Err()
}

func (c *Cache) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	if !c.available(ctx) {
		return false, nil
	}
	return c.rdb.SIsMember(ctx, key, member).Result()
}

func (c *Cache) SRem(ctx context.Context, key string, member any) error {
	if !c.available(ctx) {
		return nil
	}
	return c.rdb.SRem(ctx, key, member).Err()
}

func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if !c.available(ctx) {
		return nil
	}
	return c.rdb.Expire(ctx, key, ttl).Err()
}
