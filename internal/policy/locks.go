// Package policy implements lock evaluation: inspecting an
// inbound message against a fixed list of predicates to determine which
// lock_types it triggers, then picking the highest-severity configured
// action among the chat's currently active locks for those types.
package policy

import (
	"context"

	"github.com/hrygo/sentrybot/internal/rules"
	"github.com/hrygo/sentrybot/store"
)

// MessageFeatures is the subset of an inbound message the lock predicates
// inspect. The dispatcher (component J) populates this from the parsed
// transport update before calling EvaluateLocks.
type MessageFeatures struct {
	IsPremiumSender bool
	HasURL          bool
	HasCode         bool // inline code or a pre-code block
	HasPhoto        bool
	HasVideo        bool
	IsAnonAdmin     bool // sent via the chat's anonymous-admin identity
	IsBotCommand    bool
	IsForwarded     bool
	HasSticker      bool
}

// TriggeredLockTypes implements the predicate list: which lock_types this
// message's features would trip, independent of whether the chat actually
// has each type locked.
func TriggeredLockTypes(mf MessageFeatures) []store.LockType {
	var out []store.LockType
	if mf.IsPremiumSender {
		out = append(out, store.LockPremium)
	}
	if mf.HasURL {
		out = append(out, store.LockURL)
	}
	if mf.HasCode {
		out = append(out, store.LockCode)
	}
	if mf.HasPhoto {
		out = append(out, store.LockPhoto)
	}
	if mf.HasVideo {
		out = append(out, store.LockVideo)
	}
	if mf.IsAnonAdmin {
		out = append(out, store.LockAnonChannel)
	}
	if mf.IsBotCommand {
		out = append(out, store.LockBotCommand)
	}
	if mf.IsForwarded {
		out = append(out, store.LockForward)
	}
	if mf.HasSticker {
		out = append(out, store.LockSticker)
	}
	return out
}

// actionSeverity ranks escalation actions from least to most severe. This
// ordering is a design decision (not stated numerically in the external
// interface table): a public callout is judged milder than removing the
// message, which is milder than a timed mute, which is milder than a ban.
var actionSeverity = map[store.ActionType]int{
	store.ActionShame:  0,
	store.ActionWarn:   1,
	store.ActionDelete: 2,
	store.ActionMute:   3,
	store.ActionBan:    4,
}

// EvaluateLocks determines the effective action for an inbound message:
// among every lock_type the message triggers that the chat has actually
// configured (a Lock row exists), resolve each Lock's action (its own
// LockAction, or the chat's DefaultLockAction when nil) and return the
// single highest-severity one. Returns nil if nothing triggers.
func EvaluateLocks(ctx context.Context, s *store.Store, chatID int64, defaultAction store.ActionType, mf MessageFeatures) (*store.ActionType, []store.LockType, error) {
	triggered := TriggeredLockTypes(mf)
	if len(triggered) == 0 {
		return nil, nil, nil
	}

	var (
		winner       *store.ActionType
		winnerTypes  []store.LockType
		winnerWeight = -1
	)
	for _, lt := range triggered {
		lock, err := s.GetLock(ctx, chatID, lt)
		if err != nil {
			return nil, nil, err
		}
		if lock == nil {
			continue // this lock_type isn't configured for the chat
		}
		if lock.Rule != nil {
			applies, err := evalRule(*lock.Rule, mf)
			if err != nil {
				return nil, nil, err
			}
			if !applies {
				continue // rule narrowed this lock out for this message
			}
		}
		action := defaultAction
		if lock.LockAction != nil {
			action = *lock.LockAction
		}
		weight := actionSeverity[action]
		switch {
		case weight > winnerWeight:
			a := action
			winner = &a
			winnerWeight = weight
			winnerTypes = []store.LockType{lt}
		case weight == winnerWeight:
			winnerTypes = append(winnerTypes, lt)
		}
	}
	return winner, winnerTypes, nil
}

// LockStatus reports one lock_type's current configuration for a chat,
// backing the "available" command: the fixed lock names and descriptions
// paired with the chat's actual per-type state.
type LockStatus struct {
	Type   store.LockType
	Name   string
	Locked bool
	Action *store.ActionType // nil when Locked is false, or the lock defers to the chat default
	Rule   *string
}

// ListLockStatus reports every lock_type's configuration for a chat, in
// AllLockTypes' canonical numeric order.
func ListLockStatus(ctx context.Context, s *store.Store, chatID int64) ([]LockStatus, error) {
	out := make([]LockStatus, 0, len(store.AllLockTypes))
	for _, lt := range store.AllLockTypes {
		lock, err := s.GetLock(ctx, chatID, lt)
		if err != nil {
			return nil, err
		}
		status := LockStatus{Type: lt, Name: lt.String()}
		if lock != nil {
			status.Locked = true
			status.Action = lock.LockAction
			status.Rule = lock.Rule
		}
		out = append(out, status)
	}
	return out, nil
}

// evalRule compiles (or reuses the cached compile of) a lock/blocklist's
// optional CEL override expression and evaluates it against mf.
func evalRule(src string, mf MessageFeatures) (bool, error) {
	r, err := rules.Compile(src)
	if err != nil {
		return false, err
	}
	return r.Eval(rules.Vars{
		IsPremiumSender: mf.IsPremiumSender,
		HasURL:          mf.HasURL,
		HasCode:         mf.HasCode,
		HasPhoto:        mf.HasPhoto,
		HasVideo:        mf.HasVideo,
		IsAnonAdmin:     mf.IsAnonAdmin,
		IsBotCommand:    mf.IsBotCommand,
		IsForwarded:     mf.IsForwarded,
		HasSticker:      mf.HasSticker,
	})
}
