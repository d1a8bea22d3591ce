package store

import (
	"context"

	"github.com/google/uuid"
)

// Driver is the SQL persistence boundary. Store never issues SQL directly;
// every Store method delegates to a Driver method and wraps it with the
// cache-invalidation recipe every policy entity shares. Postgres and SQLite
// share one implementation (store/db/sqldriver), parameterized by a Dialect.
type Driver interface {
	Close() error
	Migrate(ctx context.Context) error

	// Identity
	UpsertUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByHandle(ctx context.Context, handle string) (*User, error)
	UpsertChat(ctx context.Context, c *Chat) error
	GetChat(ctx context.Context, id int64) (*Chat, error)
	AddChatMember(ctx context.Context, m *ChatMember) error
	ListChatsForUser(ctx context.Context, userID int64) ([]int64, error)

	// Dialog
	GetDialog(ctx context.Context, chatID int64) (*Dialog, error)
	UpsertDialog(ctx context.Context, d *Dialog) error

	// Entity sets
	CreateEntitySet(ctx context.Context, es *EntitySet) (int64, error)
	GetEntitySet(ctx context.Context, id int64) (*EntitySet, error)

	// Filters
	CreateFilter(ctx context.Context, f *Filter) (int64, error)
	GetFilter(ctx context.Context, chatID, id int64) (*Filter, error)
	ListFilterTriggers(ctx context.Context, chatID int64) (map[string]int64, error)
	ListFilters(ctx context.Context, chatID int64) ([]*Filter, error)
	DeleteFilter(ctx context.Context, chatID, id int64) error
	DeleteAllFilters(ctx context.Context, chatID int64) error

	// Blocklists
	CreateBlocklist(ctx context.Context, b *Blocklist) (int64, error)
	GetBlocklist(ctx context.Context, chatID, id int64) (*Blocklist, error)
	ListBlocklistTriggers(ctx context.Context, chatID int64) (map[string]int64, error)
	ListBlocklists(ctx context.Context, chatID int64) ([]*Blocklist, error)
	DeleteBlocklist(ctx context.Context, chatID, id int64) error
	DeleteAllBlocklists(ctx context.Context, chatID int64) error

	// Locks
	GetLock(ctx context.Context, chatID int64, lockType LockType) (*Lock, error)
	ListLocks(ctx context.Context, chatID int64) ([]*Lock, error)
	UpsertLock(ctx context.Context, l *Lock) error
	DeleteLock(ctx context.Context, chatID int64, lockType LockType) error

	// Welcome
	GetWelcome(ctx context.Context, chatID int64) (*Welcome, error)
	UpsertWelcome(ctx context.Context, w *Welcome) error

	// Actions (pending moderation deltas)
	GetAction(ctx context.Context, userID, chatID int64) (*Action, error)
	UpsertAction(ctx context.Context, a *Action) error
	DeleteAction(ctx context.Context, userID, chatID int64) error

	// Warns
	InsertWarn(ctx context.Context, w *Warn) (int64, error)
	ListWarns(ctx context.Context, userID, chatID int64) ([]*Warn, error)
	DeleteWarn(ctx context.Context, id int64) error
	DeleteExpiredWarns(ctx context.Context, userID, chatID int64) error

	// Approvals
	IsApproved(ctx context.Context, chatID, userID int64) (bool, error)
	AddApproval(ctx context.Context, a *Approval) error
	RemoveApproval(ctx context.Context, chatID, userID int64) error

	// Federations
	CreateFederation(ctx context.Context, f *Federation) error
	GetFederation(ctx context.Context, id uuid.UUID) (*Federation, error)
	GetFederationForChat(ctx context.Context, chatID int64) (*Federation, error)
	ListFederationsOwnedBy(ctx context.Context, ownerID int64) ([]*Federation, error)
	AddFederationAdmin(ctx context.Context, a *FederationAdmin) error
	IsFederationAdmin(ctx context.Context, fedID uuid.UUID, userID int64) (bool, error)
	AddFederationSub(ctx context.Context, s *FederationSub) error
	RemoveFederationSub(ctx context.Context, parent, child uuid.UUID) error
	ListFederationAncestors(ctx context.Context, fedID uuid.UUID) ([]uuid.UUID, error)
	AddFBan(ctx context.Context, f *FBan) error
	RemoveFBan(ctx context.Context, fedID uuid.UUID, userID int64) error
	GetFBan(ctx context.Context, fedID uuid.UUID, userID int64) (*FBan, error)
	ListFBans(ctx context.Context, fedID uuid.UUID) ([]*FBan, error)

	// Conversations
	CreateConversation(ctx context.Context, c *Conversation) error
	GetConversation(ctx context.Context, id uuid.UUID) (*Conversation, error)
	GetConversationForChatUser(ctx context.Context, chatID, userID int64) (*Conversation, error)
}
