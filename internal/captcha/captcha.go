// Package captcha implements the CAPTCHA-gated join flow: a newly joined
// member is challenged with a short text code; a correct reply within the
// window lifts the join-time mute, a wrong one counts against a fixed
// attempt limit (maxAttempts, the same for every chat). Narrowed from a generated-image challenge to a random
// alphanumeric code: an image-CAPTCHA renderer has no Go counterpart among
// this module's dependencies, and nothing else in the stack renders
// images, so a text code is the idiomatic substitute.
//
// All state here is cache-only, the same "advisory, lost on a cache
// restart" tradeoff internal/ratelimit already accepts for its penalty-box
// counters: a join challenge is transient by nature, so there is nothing
// for a SQL table to durably own.
package captcha

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
)

const (
	// codeAlphabet excludes characters that are easy to confuse in a
	// chat client's font (0/O, 1/I).
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 6
	maxAttempts  = 3
)

// Challenge is the pending verification state for one (user, chat) pair.
type Challenge struct {
	Code string
}

// Service wires the challenge generator to the cache substrate.
type Service struct {
	cache *cachesubstrate.Cache
	ttl   time.Duration
}

// New builds a Service. ttl bounds how long a member has to solve a
// challenge before it expires.
func New(cache *cachesubstrate.Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Service{cache: cache, ttl: ttl}
}

// Enable turns on the join challenge for a chat.
func (s *Service) Enable(ctx context.Context, chatID int64) error {
	return s.cache.Set(ctx, cachesubstrate.CaptchaStateKey(chatID), true, 0)
}

// Disable turns off the join challenge for a chat.
func (s *Service) Disable(ctx context.Context, chatID int64) error {
	return s.cache.Invalidate(ctx, cachesubstrate.CaptchaStateKey(chatID))
}

// Enabled reports whether a chat currently requires the join challenge.
func (s *Service) Enabled(ctx context.Context, chatID int64) (bool, error) {
	v, found, err := cachesubstrate.Get[bool](ctx, s.cache, cachesubstrate.CaptchaStateKey(chatID))
	if err != nil || !found {
		return false, err
	}
	return v, nil
}

// Challenge generates and stores a fresh code for userID in chatID,
// returning the code so the caller can render it into the join message.
func (s *Service) Challenge(ctx context.Context, chatID, userID int64) (string, error) {
	code, err := randomCode()
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, cachesubstrate.CaptchaAuthKey(userID, chatID), Challenge{Code: code}, s.ttl); err != nil {
		return "", err
	}
	return code, nil
}

// Pending reports whether userID has an outstanding challenge in chatID,
// letting a caller distinguish "no challenge, handle normally" from "wrong
// guess, but not yet exhausted" before calling Verify.
func (s *Service) Pending(ctx context.Context, chatID, userID int64) (bool, error) {
	_, found, err := cachesubstrate.Get[Challenge](ctx, s.cache, cachesubstrate.CaptchaAuthKey(userID, chatID))
	return found, err
}

// Verify checks attempt against userID's pending challenge in chatID. ok
// reports a correct solve, which clears the pending state. exhausted
// reports that a wrong guess used up the maxAttempts limit — the caller
// should remove the member rather than issue another challenge. Neither
// flag is set when there was no pending challenge to check.
func (s *Service) Verify(ctx context.Context, chatID, userID int64, attempt string) (ok, exhausted bool, err error) {
	ch, found, err := cachesubstrate.Get[Challenge](ctx, s.cache, cachesubstrate.CaptchaAuthKey(userID, chatID))
	if err != nil {
		return false, false, err
	}
	if !found {
		return false, false, nil
	}
	if attempt == ch.Code {
		if err := s.clear(ctx, chatID, userID); err != nil {
			return false, false, err
		}
		return true, false, nil
	}

	n, err := s.incrementAttempts(ctx, chatID, userID)
	if err != nil {
		return false, false, err
	}
	if n >= maxAttempts {
		if err := s.clear(ctx, chatID, userID); err != nil {
			return false, false, err
		}
		return false, true, nil
	}
	return false, false, nil
}

func (s *Service) clear(ctx context.Context, chatID, userID int64) error {
	return s.cache.Invalidate(ctx,
		cachesubstrate.CaptchaAuthKey(userID, chatID),
		cachesubstrate.CaptchaAttemptKey(userID, chatID))
}

func (s *Service) incrementAttempts(ctx context.Context, chatID, userID int64) (int, error) {
	n, _, err := cachesubstrate.Get[int](ctx, s.cache, cachesubstrate.CaptchaAttemptKey(userID, chatID))
	if err != nil {
		return 0, err
	}
	n++
	if err := s.cache.Set(ctx, cachesubstrate.CaptchaAttemptKey(userID, chatID), n, s.ttl); err != nil {
		return 0, err
	}
	return n, nil
}

func randomCode() (string, error) {
	buf := make([]byte, codeLength)
	for i := range buf {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(codeAlphabet))))
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[idx.Int64()]
	}
	return string(buf), nil
}
