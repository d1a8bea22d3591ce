// Package store implements the data model and persistence pattern: a
// Store exposes cache-fronted access to the entities below, backed by a
// pluggable SQL Driver (Postgres or SQLite).
package store

import (
	"time"

	"github.com/google/uuid"
)

// ChatKind enumerates the kinds of chat the platform reports.
type ChatKind string

const (
	ChatKindPrivate    ChatKind = "private"
	ChatKindGroup      ChatKind = "group"
	ChatKindSupergroup ChatKind = "supergroup"
	ChatKindChannel    ChatKind = "channel"
)

// ActionType enumerates the moderation escalation actions a Dialog, Lock, or
// Blocklist row can name. Values are stable across storage.
type ActionType string

const (
	ActionMute   ActionType = "mute"
	ActionBan    ActionType = "ban"
	ActionWarn   ActionType = "warn"
	ActionShame  ActionType = "shame"
	ActionDelete ActionType = "delete"
)

// LockType enumerates content classes a chat can forbid. The numeric values
// are bit-exact with the documented table and must never be renumbered, since they are
// persisted as integers.
type LockType int

const (
	LockPremium      LockType = 1
	LockURL          LockType = 2
	LockCode         LockType = 3
	LockPhoto        LockType = 4
	LockVideo        LockType = 5
	LockAnonChannel  LockType = 6
	LockBotCommand   LockType = 7
	LockForward      LockType = 8
	LockSticker      LockType = 9
)

// AllLockTypes lists every lock type in their canonical numeric order, used
// by the "available" / "locks" listing query.
var AllLockTypes = []LockType{
	LockPremium, LockURL, LockCode, LockPhoto, LockVideo,
	LockAnonChannel, LockBotCommand, LockForward, LockSticker,
}

func (l LockType) String() string {
	switch l {
	case LockPremium:
		return "premium-sender"
	case LockURL:
		return "url"
	case LockCode:
		return "pre-code"
	case LockPhoto:
		return "photo"
	case LockVideo:
		return "video"
	case LockAnonChannel:
		return "anon-channel"
	case LockBotCommand:
		return "bot-command"
	case LockForward:
		return "forward"
	case LockSticker:
		return "sticker"
	default:
		return "unknown"
	}
}

// Chat is a root entity: a Telegram-style chat the bot has observed.
type Chat struct {
	ID       int64
	Kind     ChatKind
	Title    string
	Language string
}

// User is a root entity: a platform user the bot has observed.
type User struct {
	ID        int64
	FirstName string
	LastName  string
	Handle    string // empty when the user has no @handle
	IsBot     bool
}

// ChatMember records that a user has been observed in a chat, maintaining
// the reverse index used for "which chats is this user in" lookups.
type ChatMember struct {
	ChatID     int64
	UserID     int64
	BannedByMe bool
}

// Dialog holds per-chat moderation settings (one row per chat).
type Dialog struct {
	ChatID             int64
	Language           string
	WarnLimit          int
	WarnTime           *time.Duration // nil = warns never expire
	ActionType         ActionType
	DefaultPermissions Permissions // mirrors the chat's default (non-admin) member permissions
	FederationID       *uuid.UUID  // weak reference, dangling allowed
}

// EntitySpan is one formatting span in an EntitySet, expressed in UTF-16
// code units (matching the platform's own entity offsets).
type EntitySpan struct {
	Offset   int
	Length   int
	Kind     string // "bold", "italic", "underline", "strikethrough", "spoiler", "code", "pre", "text_link", "text_mention"
	URL      string
	UserID   int64
	Language string
	EmojiID  string
}

// EntitySet is a stored, ordered list of formatting spans, referenced by
// filters/welcomes so formatting survives persistence.
type EntitySet struct {
	ID    int64
	Spans []EntitySpan
}

// Trigger binds a trigger phrase/glob to a Filter or Blocklist row.
type Trigger struct {
	ID         int64
	FilterID   int64
	ChatID     int64
	TriggerText string
}

// Filter is a canned-reply entry matched by substring-with-word-boundary.
type Filter struct {
	ID          int64
	ChatID      int64
	Text        string
	MediaID     string
	MediaType   string
	EntitySetID *int64
	Triggers    []string
}

// Blocklist is shape-identical to Filter with an escalation action attached,
// matched by wildcard glob against the whole message.
type Blocklist struct {
	ID              int64
	ChatID          int64
	Text            string
	MediaID         string
	MediaType       string
	EntitySetID     *int64
	Action          ActionType
	DurationSeconds *int
	Reason          string
	Triggers        []string
	Rule            *string // optional CEL expression (internal/rules); nil => always applies once triggered
}

// Lock is a per-chat, per-content-class restriction.
type Lock struct {
	ChatID     int64
	LockType   LockType
	LockAction *ActionType // nil => chat-default action applies
	Reason     string
	Rule       *string // optional CEL expression (internal/rules); nil => always applies once triggered
}

// Welcome holds the per-chat greeting/goodbye configuration.
type Welcome struct {
	ChatID             int64
	Enabled            bool
	WelcomeText        string
	WelcomeMediaID     string
	WelcomeEntitySetID *int64
	WelcomeButtonSetID *int64
	GoodbyeText        string
	GoodbyeMediaID     string
	GoodbyeEntitySetID *int64
	GoodbyeButtonSetID *int64
}

// Action is a deferred permission delta for a (user, chat) pair, applied the
// next time the user is observed in that chat.
type Action struct {
	UserID      int64
	ChatID      int64
	IsBanned    bool
	Permissions Permissions
	ExpiresAt   *time.Time
	Pending     bool
}

// Permissions mirrors the subset of chat-member permissions the moderation
// executor cares about.
type Permissions struct {
	CanSendMessages bool
	CanSendMedia    bool
	CanSendPolls    bool
	CanSendOther    bool
	CanAddWebPreviews bool
}

// AllAllowed is the "everything allowed" permission template used by unmute.
func AllAllowed() Permissions {
	return Permissions{true, true, true, true, true}
}

// AllDenied is the permission delta applied by mute.
func AllDenied() Permissions {
	return Permissions{}
}

// Warn is one warning issued to a user in a chat.
type Warn struct {
	ID        int64
	UserID    int64
	ChatID    int64
	Reason    string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// Approval grants a user full moderation immunity in a chat.
type Approval struct {
	ChatID int64
	UserID int64
}

// Federation is a named, user-owned cross-chat ban list.
type Federation struct {
	ID          uuid.UUID
	OwnerUserID int64
	Name        string
}

// FederationAdmin grants a user fban privileges in a federation in addition
// to its owner.
type FederationAdmin struct {
	FedID  uuid.UUID
	UserID int64
}

// FederationSub is a directed subscription edge: Child subscribes to
// (inherits bans from) Parent.
type FederationSub struct {
	ParentFedID uuid.UUID
	ChildFedID  uuid.UUID
}

// FBan is a single federation ban record.
type FBan struct {
	FedID     uuid.UUID
	UserID    int64
	FirstName string
	LastName  string
	Reason    string
}

// ConversationState is one node in a per-(chat,user) FSM graph.
type ConversationState struct {
	ID      uuid.UUID
	Content string
	IsStart bool
}

// ConversationTransition is one edge, keyed by (start state, trigger word).
type ConversationTransition struct {
	StartStateID uuid.UUID
	Trigger      string
	EndStateID   uuid.UUID
	Name         string
}

// Conversation is a serializable state graph bound to one (chat, user) pair.
type Conversation struct {
	ID          uuid.UUID
	ChatID      int64
	UserID      int64
	States      map[uuid.UUID]ConversationState
	Transitions []ConversationTransition
}

// ButtonPayloadKind discriminates the three button payload shapes the
// data model allows.
type ButtonPayloadKind string

const (
	ButtonPayloadURL            ButtonPayloadKind = "url"
	ButtonPayloadSwitchInline   ButtonPayloadKind = "switch_inline_query"
	ButtonPayloadCallback       ButtonPayloadKind = "callback"
)

// ButtonPayload is the union of what a stored Button can carry.
type ButtonPayload struct {
	Kind       ButtonPayloadKind
	URL        string
	SwitchText string
	CallbackID string
}

// Button is one cell of an inline keyboard grid attached to a sent message.
type Button struct {
	OwnerMessageID int64
	PosX, PosY     int
	Caption        string
	Payload        ButtonPayload
}
