// Package moderation implements the moderation executor.
// Every mute/ban call persists a pending Action row alongside the
// transport call it issues, so a restriction imposed on an absent user is
// re-applied the instant they are next observed (ApplyPending), and the
// same checks — "never the bot", "never an approved or admin user",
// "never the actor themself" — guard every mute, ban and kick. Warn rules
// out only the bot and approved users; Unban checks nothing.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/hrygo/sentrybot/store"
)

// Transport is the subset of the out-of-scope messaging-platform boundary
// the executor needs: restrict/ban/unban calls and an admin check, so a
// target who is immune (the bot itself, an admin, an approved user) can be
// ruled out before any REST call is issued.
type Transport interface {
	Restrict(ctx context.Context, chatID, userID int64, perms store.Permissions, until *time.Time) error
	Ban(ctx context.Context, chatID, userID int64, until *time.Time) error
	Unban(ctx context.Context, chatID, userID int64) error
	IsChatAdmin(ctx context.Context, chatID, userID int64) (bool, error)
}

// Executor is the process-wide moderation handle. One Executor is shared
// across all chats; botUserID is the bot's own platform user id, which is
// never a valid target.
type Executor struct {
	store     *store.Store
	transport Transport
	botUserID int64
}

// New builds an Executor.
func New(s *store.Store, t Transport, botUserID int64) *Executor {
	return &Executor{store: s, transport: t, botUserID: botUserID}
}

// guard enforces the three preconditions every mute, ban and kick
// shares: never the bot, never the approved/admin-immune, never the actor
// themself.
func (e *Executor) guard(ctx context.Context, actorID, chatID, targetID int64) error {
	if targetID == e.botUserID {
		return ErrCannotActOnBot
	}
	if actorID != 0 && targetID == actorID {
		return ErrSelfMute
	}
	approved, err := e.store.IsApproved(ctx, chatID, targetID)
	if err != nil {
		return err
	}
	if approved {
		return ErrApproved
	}
	isAdmin, err := e.transport.IsChatAdmin(ctx, chatID, targetID)
	if err != nil {
		return err
	}
	if isAdmin {
		return ErrTargetIsAdmin
	}
	return nil
}

// ChangePermissions implements change_permissions(user, chat, perms,
// optional_until): a REST restrict call, persisted as a pending Action so
// the change survives the user leaving and rejoining the chat.
func (e *Executor) ChangePermissions(ctx context.Context, actorID, chatID, targetID int64, perms store.Permissions, until *time.Time) error {
	if err := e.guard(ctx, actorID, chatID, targetID); err != nil {
		return err
	}
	if err := e.transport.Restrict(ctx, chatID, targetID, perms, until); err != nil {
		return err
	}
	return e.store.UpsertAction(ctx, &store.Action{
		UserID: targetID, ChatID: chatID,
		Permissions: perms, ExpiresAt: until, Pending: true,
	})
}

// Mute sets every content-send permission bit to false, optionally timed.
func (e *Executor) Mute(ctx context.Context, actorID, chatID, targetID int64, dur *time.Duration) error {
	return e.ChangePermissions(ctx, actorID, chatID, targetID, store.AllDenied(), untilFrom(dur))
}

// Unmute merges the chat's default permissions onto the "everything
// allowed" template and applies it untimed.
func (e *Executor) Unmute(ctx context.Context, actorID, chatID, targetID int64) error {
	dialog, err := e.store.GetDialog(ctx, chatID)
	if err != nil {
		return err
	}
	perms := store.AllAllowed()
	if dialog != nil {
		perms = mergeDefaults(perms, dialog.DefaultPermissions)
	}
	return e.ChangePermissions(ctx, actorID, chatID, targetID, perms, nil)
}

// mergeDefaults narrows the "everything allowed" template by the chat's
// configured defaults: any permission the chat's dialog has turned off by
// default stays off after an unmute.
func mergeDefaults(allowed, defaults store.Permissions) store.Permissions {
	return store.Permissions{
		CanSendMessages:   allowed.CanSendMessages && defaults.CanSendMessages,
		CanSendMedia:      allowed.CanSendMedia && defaults.CanSendMedia,
		CanSendPolls:      allowed.CanSendPolls && defaults.CanSendPolls,
		CanSendOther:      allowed.CanSendOther && defaults.CanSendOther,
		CanAddWebPreviews: allowed.CanAddWebPreviews && defaults.CanAddWebPreviews,
	}
}

// Ban issues a REST ban call and records a pending Action; banning the
// bot's own id or a chat admin fails as an immune target.
func (e *Executor) Ban(ctx context.Context, actorID, chatID, targetID int64, dur *time.Duration) error {
	if err := e.guard(ctx, actorID, chatID, targetID); err != nil {
		return err
	}
	until := untilFrom(dur)
	if err := e.transport.Ban(ctx, chatID, targetID, until); err != nil {
		return err
	}
	return e.store.UpsertAction(ctx, &store.Action{
		UserID: targetID, ChatID: chatID,
		IsBanned: true, ExpiresAt: until, Pending: true,
	})
}

// Unban issues a REST unban call and clears any pending Action row.
func (e *Executor) Unban(ctx context.Context, chatID, targetID int64) error {
	if err := e.transport.Unban(ctx, chatID, targetID); err != nil {
		return err
	}
	return e.store.DeleteAction(ctx, targetID, chatID)
}

// Kick is ban immediately followed by unban.
func (e *Executor) Kick(ctx context.Context, actorID, chatID, targetID int64) error {
	if err := e.Ban(ctx, actorID, chatID, targetID, nil); err != nil {
		return err
	}
	return e.Unban(ctx, chatID, targetID)
}

// ApplyPending implements the pending-action application recipe: on any
// inbound update from a known (user, chat), read the pending Action; if
// expired, drop it; otherwise apply it and clear the pending flag.
// Clearing the row after a successful apply is what makes applying the
// same row twice a no-op:
// the second call finds no row and returns immediately.
func (e *Executor) ApplyPending(ctx context.Context, chatID, userID int64) error {
	action, err := e.store.GetAction(ctx, userID, chatID)
	if err != nil {
		return err
	}
	if action == nil || !action.Pending {
		return nil
	}
	if action.ExpiresAt != nil && action.ExpiresAt.Before(time.Now()) {
		return e.store.DeleteAction(ctx, userID, chatID)
	}
	if action.IsBanned {
		if err := e.transport.Ban(ctx, chatID, userID, action.ExpiresAt); err != nil {
			return err
		}
	} else {
		if err := e.transport.Restrict(ctx, chatID, userID, action.Permissions, action.ExpiresAt); err != nil {
			return err
		}
	}
	return e.store.DeleteAction(ctx, userID, chatID)
}

// WarnResult reports the outcome of a Warn call.
type WarnResult struct {
	Count     int
	Limit     int
	Escalated bool             // true iff this call pushed the count to/over the limit
	Action    store.ActionType // the escalation action taken, valid iff Escalated
}

// Warn implements warn(user, chat, reason?, dur?, limit):
//  1. compute the current non-expired warn count; if already ≥ limit,
//     return without adding (ListWarns already prunes expired rows);
//  2. insert the Warn row;
//  3. if the new count ≥ limit, invoke the chat's configured escalation
//     action.
//
// The caller (dispatch) is responsible for the reply text and the
// "remove warn" button — this method reports the facts those need.
func (e *Executor) Warn(ctx context.Context, chatID, targetID int64, reason string, limit int, warnTTL *time.Duration) (*WarnResult, error) {
	if targetID == e.botUserID {
		return nil, ErrCannotActOnBot
	}
	approved, err := e.store.IsApproved(ctx, chatID, targetID)
	if err != nil {
		return nil, err
	}
	if approved {
		return nil, ErrApproved
	}

	existing, err := e.store.ListWarns(ctx, targetID, chatID)
	if err != nil {
		return nil, err
	}
	if len(existing) >= limit {
		return &WarnResult{Count: len(existing), Limit: limit}, nil
	}

	var expiresAt *time.Time
	if warnTTL != nil {
		t := time.Now().Add(*warnTTL)
		expiresAt = &t
	}
	if _, err := e.store.InsertWarn(ctx, &store.Warn{
		UserID: targetID, ChatID: chatID, Reason: reason,
		CreatedAt: time.Now(), ExpiresAt: expiresAt,
	}); err != nil {
		return nil, err
	}

	count := len(existing) + 1
	result := &WarnResult{Count: count, Limit: limit}
	if count < limit {
		return result, nil
	}

	dialog, err := e.store.GetDialog(ctx, chatID)
	if err != nil {
		return nil, err
	}
	result.Escalated = true
	result.Action = store.ActionWarn
	if dialog != nil {
		result.Action = dialog.ActionType
	}
	switch result.Action {
	case store.ActionMute:
		if err := e.Mute(ctx, 0, chatID, targetID, nil); err != nil {
			return nil, err
		}
	case store.ActionBan:
		if err := e.Ban(ctx, 0, chatID, targetID, nil); err != nil {
			return nil, err
		}
	case store.ActionDelete, store.ActionShame, store.ActionWarn:
		// Delete is the caller's job (it deletes the triggering message,
		// not a pending one); Shame is a reply-only callout (ShameText);
		// Warn at the limit is a no-op escalation by definition.
	}
	return result, nil
}

// RemoveWarn deletes one specific Warn row, backing a "remove warn"
// inline button. Callers (the button registry handler) are
// responsible for checking the clicking user is an admin before calling
// this.
func (e *Executor) RemoveWarn(ctx context.Context, userID, chatID, warnID int64) error {
	return e.store.DeleteWarn(ctx, userID, chatID, warnID)
}

// ShameTemplate renders the murkdown source for a Shame escalation: a
// fixed callout naming the target via the `{mention}` filling, with no
// further side effect (an open design question, resolved in DESIGN.md).
func ShameTemplate(reason string) string {
	if reason == "" {
		return "⚠️ {mention} has been called out."
	}
	return fmt.Sprintf("⚠️ {mention} has been called out: %s", reason)
}

func untilFrom(dur *time.Duration) *time.Time {
	if dur == nil {
		return nil
	}
	t := time.Now().Add(*dur)
	return &t
}
