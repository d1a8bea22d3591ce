// Package store implements the policy store. Every method here follows
// the same recipe regardless of table: read through the
// cache substrate with a per-table key template, invalidate-then-upsert on
// write, and use cache hashes for list-style membership tests.
package store

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
)

// Store is the single entry point policy code uses; it never talks to SQL
// or the cache directly, only through this recipe layer.
type Store struct {
	driver Driver
	cache  *cachesubstrate.Cache
	ttl    time.Duration
}

// New builds a Store. ttl is the default cache TTL (timing.cache_timeout).
func New(driver Driver, cache *cachesubstrate.Cache, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Store{driver: driver, cache: cache, ttl: ttl}
}

// Driver exposes the underlying persistence boundary for callers (the
// conversation engine, federation service) that need methods this layer
// doesn't wrap with a cache recipe.
func (s *Store) Driver() Driver { return s.driver }

// --- Dialog: singleton per chat, cached as one value. ---

func (s *Store) GetDialog(ctx context.Context, chatID int64) (*Dialog, error) {
	return cachesubstrate.GetOrCompute(ctx, s.cache, cachesubstrate.DialogKey(chatID), s.ttl,
		func(ctx context.Context) (*Dialog, error) { return s.driver.GetDialog(ctx, chatID) })
}

func (s *Store) UpsertDialog(ctx context.Context, d *Dialog) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.DialogKey(d.ChatID)); err != nil {
		return err
	}
	return s.driver.UpsertDialog(ctx, d)
}

// --- Filters: trigger hash + per-filter blob, matched by word-bounded substring. ---

// MatchFilter implements filter trigger matching: the hash of
// trigger→filter_id is loaded once, then each trigger is tested as a
// whitespace-bounded substring of text; the first match's filter is
// fetched and returned.
func (s *Store) MatchFilter(ctx context.Context, chatID int64, text string) (*Filter, error) {
	triggers, err := s.filterTriggers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for trigger, id := range triggers {
		if wordBoundedSubstring(text, trigger) {
			return s.GetFilter(ctx, chatID, id)
		}
	}
	return nil, nil
}

func (s *Store) filterTriggers(ctx context.Context, chatID int64) (map[string]int64, error) {
	raw, found, err := s.cache.HashGetAll(ctx, cachesubstrate.FilterCacheKey(chatID))
	if err != nil {
		return nil, err
	}
	if found {
		out := make(map[string]int64, len(raw))
		for k, v := range raw {
			out[k] = parseInt64(v)
		}
		return out, nil
	}
	triggers, err := s.driver.ListFilterTriggers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(triggers) > 0 {
		values := make(map[string]any, len(triggers))
		for k, v := range triggers {
			values[k] = v
		}
		_ = s.cache.HashSet(ctx, cachesubstrate.FilterCacheKey(chatID), values)
	}
	return triggers, nil
}

func (s *Store) GetFilter(ctx context.Context, chatID, id int64) (*Filter, error) {
	return cachesubstrate.GetOrCompute(ctx, s.cache, cachesubstrate.FilterKey(chatID, id), s.ttl,
		func(ctx context.Context) (*Filter, error) { return s.driver.GetFilter(ctx, chatID, id) })
}

func (s *Store) CreateFilter(ctx context.Context, f *Filter) (int64, error) {
	if err := s.cache.Invalidate(ctx, cachesubstrate.FilterCacheKey(f.ChatID)); err != nil {
		return 0, err
	}
	return s.driver.CreateFilter(ctx, f)
}

func (s *Store) DeleteFilter(ctx context.Context, chatID, id int64) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.FilterCacheKey(chatID), cachesubstrate.FilterKey(chatID, id)); err != nil {
		return err
	}
	return s.driver.DeleteFilter(ctx, chatID, id)
}

func (s *Store) DeleteAllFilters(ctx context.Context, chatID int64) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.FilterCacheKey(chatID)); err != nil {
		return err
	}
	return s.driver.DeleteAllFilters(ctx, chatID)
}

// wordBoundedSubstring reports whether trigger occurs in text as a
// substring bounded by whitespace or a text boundary on both sides — the
// "word semantics without a full lexer" that filter matching needs
// (blocklists match by globMatch instead).
func wordBoundedSubstring(text, trigger string) bool {
	if trigger == "" {
		return false
	}
	lowText, lowTrig := strings.ToLower(text), strings.ToLower(trigger)
	start := 0
	for {
		idx := strings.Index(lowText[start:], lowTrig)
		if idx < 0 {
			return false
		}
		abs := start + idx
		end := abs + len(lowTrig)
		if boundaryRune(lowText, abs-1) && boundaryRune(lowText, end) {
			return true
		}
		start = abs + 1
		if start >= len(lowText) {
			return false
		}
	}
}

func boundaryRune(s string, idx int) bool {
	if idx < 0 || idx >= len(s) {
		return true
	}
	r := rune(s[idx])
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// --- Blocklists: same shape as filters, matched by whole-message glob. ---

func (s *Store) MatchBlocklist(ctx context.Context, chatID int64, text string) (*Blocklist, error) {
	triggers, err := s.blocklistTriggers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	for pattern, id := range triggers {
		if globMatch(pattern, text) {
			return s.GetBlocklist(ctx, chatID, id)
		}
	}
	return nil, nil
}

func (s *Store) blocklistTriggers(ctx context.Context, chatID int64) (map[string]int64, error) {
	raw, found, err := s.cache.HashGetAll(ctx, cachesubstrate.BlocklistCacheKey(chatID))
	if err != nil {
		return nil, err
	}
	if found {
		out := make(map[string]int64, len(raw))
		for k, v := range raw {
			out[k] = parseInt64(v)
		}
		return out, nil
	}
	triggers, err := s.driver.ListBlocklistTriggers(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(triggers) > 0 {
		values := make(map[string]any, len(triggers))
		for k, v := range triggers {
			values[k] = v
		}
		_ = s.cache.HashSet(ctx, cachesubstrate.BlocklistCacheKey(chatID), values)
	}
	return triggers, nil
}

func (s *Store) GetBlocklist(ctx context.Context, chatID, id int64) (*Blocklist, error) {
	return cachesubstrate.GetOrCompute(ctx, s.cache, cachesubstrate.BlocklistKey(chatID, id), s.ttl,
		func(ctx context.Context) (*Blocklist, error) { return s.driver.GetBlocklist(ctx, chatID, id) })
}

func (s *Store) CreateBlocklist(ctx context.Context, b *Blocklist) (int64, error) {
	if err := s.cache.Invalidate(ctx, cachesubstrate.BlocklistCacheKey(b.ChatID)); err != nil {
		return 0, err
	}
	return s.driver.CreateBlocklist(ctx, b)
}

func (s *Store) DeleteBlocklist(ctx context.Context, chatID, id int64) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.BlocklistCacheKey(chatID), cachesubstrate.BlocklistKey(chatID, id)); err != nil {
		return err
	}
	return s.driver.DeleteBlocklist(ctx, chatID, id)
}

// globMatch evaluates a '*'/'?' wildcard pattern against the whole text,
// case-insensitively, the same way blocklist trigger matching does.
func globMatch(pattern, text string) bool {
	ok, err := path.Match(translateGlob(strings.ToLower(pattern)), strings.ToLower(text))
	return err == nil && ok
}

// translateGlob escapes path.Match's '/' and '[' special-casing, which the
// chat-message domain has no use for and which would otherwise make
// ordinary punctuation behave unexpectedly.
func translateGlob(p string) string {
	var b strings.Builder
	for _, r := range p {
		if r == '[' || r == ']' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// --- Locks ---

func (s *Store) GetLock(ctx context.Context, chatID int64, lockType LockType) (*Lock, error) {
	return cachesubstrate.GetOrCompute(ctx, s.cache, cachesubstrate.LockKey(chatID, int(lockType)), s.ttl,
		func(ctx context.Context) (*Lock, error) { return s.driver.GetLock(ctx, chatID, lockType) })
}

func (s *Store) ListLocks(ctx context.Context, chatID int64) ([]*Lock, error) {
	return s.driver.ListLocks(ctx, chatID)
}

func (s *Store) UpsertLock(ctx context.Context, l *Lock) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.LockKey(l.ChatID, int(l.LockType))); err != nil {
		return err
	}
	return s.driver.UpsertLock(ctx, l)
}

func (s *Store) DeleteLock(ctx context.Context, chatID int64, lockType LockType) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.LockKey(chatID, int(lockType))); err != nil {
		return err
	}
	return s.driver.DeleteLock(ctx, chatID, lockType)
}

// --- Welcome ---

func (s *Store) GetWelcome(ctx context.Context, chatID int64) (*Welcome, error) {
	return cachesubstrate.GetOrCompute(ctx, s.cache, cachesubstrate.WelcomeKey(chatID), s.ttl,
		func(ctx context.Context) (*Welcome, error) { return s.driver.GetWelcome(ctx, chatID) })
}

func (s *Store) UpsertWelcome(ctx context.Context, w *Welcome) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.WelcomeKey(w.ChatID)); err != nil {
		return err
	}
	return s.driver.UpsertWelcome(ctx, w)
}

// --- Actions (pending moderation deltas) ---

func (s *Store) GetAction(ctx context.Context, userID, chatID int64) (*Action, error) {
	return cachesubstrate.GetOrCompute(ctx, s.cache, cachesubstrate.ActionKey(userID, chatID), s.ttl,
		func(ctx context.Context) (*Action, error) { return s.driver.GetAction(ctx, userID, chatID) })
}

func (s *Store) UpsertAction(ctx context.Context, a *Action) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.ActionKey(a.UserID, a.ChatID)); err != nil {
		return err
	}
	return s.driver.UpsertAction(ctx, a)
}

func (s *Store) DeleteAction(ctx context.Context, userID, chatID int64) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.ActionKey(userID, chatID)); err != nil {
		return err
	}
	return s.driver.DeleteAction(ctx, userID, chatID)
}

// --- Warns: list-style, cached as one list value per (user, chat). ---

func (s *Store) ListWarns(ctx context.Context, userID, chatID int64) ([]*Warn, error) {
	return cachesubstrate.GetOrCompute(ctx, s.cache, cachesubstrate.WarnsKey(userID, chatID), s.ttl,
		func(ctx context.Context) ([]*Warn, error) {
			if err := s.driver.DeleteExpiredWarns(ctx, userID, chatID); err != nil {
				return nil, err
			}
			return s.driver.ListWarns(ctx, userID, chatID)
		})
}

func (s *Store) InsertWarn(ctx context.Context, w *Warn) (int64, error) {
	if err := s.cache.Invalidate(ctx, cachesubstrate.WarnsKey(w.UserID, w.ChatID)); err != nil {
		return 0, err
	}
	return s.driver.InsertWarn(ctx, w)
}

func (s *Store) DeleteWarn(ctx context.Context, userID, chatID, id int64) error {
	if err := s.cache.Invalidate(ctx, cachesubstrate.WarnsKey(userID, chatID)); err != nil {
		return err
	}
	return s.driver.DeleteWarn(ctx, id)
}

// --- Approvals: O(1) membership via a cache set. ---

func (s *Store) IsApproved(ctx context.Context, chatID, userID int64) (bool, error) {
	key := cachesubstrate.ApprovalKey(chatID, userID)
	member, err := s.cache.SIsMember(ctx, key, userID)
	if err == nil && member {
		return true, nil
	}
	return s.driver.IsApproved(ctx, chatID, userID)
}

func (s *Store) AddApproval(ctx context.Context, a *Approval) error {
	if err := s.driver.AddApproval(ctx, a); err != nil {
		return err
	}
	return s.cache.SAdd(ctx, cachesubstrate.ApprovalKey(a.ChatID, a.UserID), a.UserID)
}

func (s *Store) RemoveApproval(ctx context.Context, chatID, userID int64) error {
	if err := s.driver.RemoveApproval(ctx, chatID, userID); err != nil {
		return err
	}
	return s.cache.SRem(ctx, cachesubstrate.ApprovalKey(chatID, userID), userID)
}

func parseInt64(s string) int64 {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return n
		}
		n = n*10 + int64(r-'0')
	}
	return n
}
