package moderation

import "github.com/pkg/errors"

// Distinct, user-visible error kinds for moderation failures: callers
// type-switch or errors.Is against these rather than parsing message
// strings.
var (
	ErrSelfMute        = errors.New("moderation: cannot mute or ban yourself")
	ErrCannotActOnBot  = errors.New("moderation: the bot is never a valid moderation target")
	ErrTargetIsAdmin   = errors.New("moderation: cannot mute or ban a chat admin")
	ErrApproved        = errors.New("moderation: target is approved, action is a no-op")
	ErrMissingTarget   = errors.New("moderation: no target user could be resolved from the command")
	ErrUserNotFound    = errors.New("moderation: mentioned user could not be resolved")
	ErrNoPendingAction = errors.New("moderation: no pending action for this user in this chat")
)
