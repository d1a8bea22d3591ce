package moderation

import (
	"context"
	"strconv"
)

// ArgKind discriminates the typed entity-arg shapes the command parser
// produces: plain text, a quoted string, an @handle mention, or a
// platform text-mention entity carrying a resolved user id.
type ArgKind int

const (
	ArgPlain ArgKind = iota
	ArgQuoted
	ArgMention
	ArgTextMention
)

// Arg is one parsed command argument.
type Arg struct {
	Kind   ArgKind
	Text   string // literal text (ArgPlain/ArgQuoted), or bare handle without '@' (ArgMention)
	UserID int64  // populated only for ArgTextMention
}

// ActionMessage is the shared shape every moderation command's target
// resolution consumes when parsing the target out of a command message.
type ActionMessage struct {
	ReplyToSenderID int64 // 0 when the command message is not a reply
	Args            []Arg
}

// ResolveHandle looks up the user id behind an @handle mention (backed by
// the identity cache's GetUserByHandle in production).
type ResolveHandle func(ctx context.Context, handle string) (int64, error)

// ResolveTarget implements the "Action message parsing" recipe shared by
// every moderation command:
//
//  1. if the command replies to another message, the reply's sender is the
//     target;
//  2. else, if the first argument is an @handle or text-mention entity,
//     that user is the target;
//  3. else, if the first argument parses as a decimal integer, that id is
//     the target;
//  4. else, ErrMissingTarget.
//
// The remaining arguments (after the consumed target, if any) are returned
// for the caller to forward as a reason/duration slice.
func ResolveTarget(ctx context.Context, am ActionMessage, resolve ResolveHandle) (targetID int64, rest []Arg, err error) {
	if am.ReplyToSenderID != 0 {
		return am.ReplyToSenderID, am.Args, nil
	}
	if len(am.Args) == 0 {
		return 0, nil, ErrMissingTarget
	}

	first := am.Args[0]
	switch first.Kind {
	case ArgMention:
		id, rerr := resolve(ctx, first.Text)
		if rerr != nil {
			return 0, nil, ErrUserNotFound
		}
		return id, am.Args[1:], nil
	case ArgTextMention:
		return first.UserID, am.Args[1:], nil
	default:
		id, perr := strconv.ParseInt(first.Text, 10, 64)
		if perr != nil {
			return 0, nil, ErrMissingTarget
		}
		return id, am.Args[1:], nil
	}
}
