package sqldriver

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

// Driver is the shared database/sql-backed implementation of store.Driver.
type Driver struct {
	db      *sql.DB
	dialect Dialect
}

var _ store.Driver = (*Driver)(nil)

func (d *Driver) Close() error { return d.db.Close() }

// Migrate creates every table this driver needs if it does not already
// exist. Column types are dialect-neutral (TEXT/INTEGER/BOOLEAN) except the
// autoincrement primary key, which AutoIncrementPK() renders per dialect.
func (d *Driver) Migrate(ctx context.Context) error {
	pk := d.dialect.AutoIncrementPK()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			handle TEXT NOT NULL DEFAULT '',
			is_bot BOOLEAN NOT NULL DEFAULT FALSE
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_handle ON users (handle) WHERE handle <> ''`,
		`CREATE TABLE IF NOT EXISTS chats (
			id BIGINT PRIMARY KEY,
			kind TEXT NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			language TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS chat_members (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			banned_by_me BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (chat_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS dialogs (
			chat_id BIGINT PRIMARY KEY,
			language TEXT NOT NULL DEFAULT '',
			warn_limit INTEGER NOT NULL DEFAULT 0,
			warn_time_seconds BIGINT,
			action_type TEXT NOT NULL DEFAULT 'mute',
			default_permissions TEXT NOT NULL DEFAULT '{}',
			federation_id TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS entity_sets (
			id ` + pk + `,
			spans TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS filters (
			id ` + pk + `,
			chat_id BIGINT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			media_id TEXT NOT NULL DEFAULT '',
			media_type TEXT NOT NULL DEFAULT '',
			entity_set_id BIGINT,
			triggers TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE TABLE IF NOT EXISTS blocklists (
			id ` + pk + `,
			chat_id BIGINT NOT NULL,
			text TEXT NOT NULL DEFAULT '',
			media_id TEXT NOT NULL DEFAULT '',
			media_type TEXT NOT NULL DEFAULT '',
			entity_set_id BIGINT,
			action TEXT NOT NULL DEFAULT 'delete',
			duration_seconds INTEGER,
			reason TEXT NOT NULL DEFAULT '',
			triggers TEXT NOT NULL DEFAULT '[]',
			rule TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS locks (
			chat_id BIGINT NOT NULL,
			lock_type INTEGER NOT NULL,
			lock_action TEXT,
			reason TEXT NOT NULL DEFAULT '',
			rule TEXT,
			PRIMARY KEY (chat_id, lock_type)
		)`,
		`CREATE TABLE IF NOT EXISTS welcomes (
			chat_id BIGINT PRIMARY KEY,
			enabled BOOLEAN NOT NULL DEFAULT FALSE,
			welcome_text TEXT NOT NULL DEFAULT '',
			welcome_media_id TEXT NOT NULL DEFAULT '',
			welcome_entity_set_id BIGINT,
			welcome_button_set_id BIGINT,
			goodbye_text TEXT NOT NULL DEFAULT '',
			goodbye_media_id TEXT NOT NULL DEFAULT '',
			goodbye_entity_set_id BIGINT,
			goodbye_button_set_id BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS actions (
			user_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			is_banned BOOLEAN NOT NULL DEFAULT FALSE,
			permissions TEXT NOT NULL DEFAULT '{}',
			expires_at BIGINT,
			pending BOOLEAN NOT NULL DEFAULT TRUE,
			PRIMARY KEY (user_id, chat_id)
		)`,
		`CREATE TABLE IF NOT EXISTS warns (
			id ` + pk + `,
			user_id BIGINT NOT NULL,
			chat_id BIGINT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			expires_at BIGINT
		)`,
		`CREATE TABLE IF NOT EXISTS approvals (
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			PRIMARY KEY (chat_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS federations (
			id TEXT PRIMARY KEY,
			owner_user_id BIGINT NOT NULL,
			name TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS federation_admins (
			fed_id TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			PRIMARY KEY (fed_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS federation_subs (
			parent_fed_id TEXT NOT NULL,
			child_fed_id TEXT NOT NULL,
			PRIMARY KEY (parent_fed_id, child_fed_id)
		)`,
		`CREATE TABLE IF NOT EXISTS fbans (
			fed_id TEXT NOT NULL,
			user_id BIGINT NOT NULL,
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			reason TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (fed_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			user_id BIGINT NOT NULL,
			states TEXT NOT NULL DEFAULT '{}',
			transitions TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_chat_user ON conversations (chat_id, user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "sqldriver: migrate: %s", stmt)
		}
	}
	return nil
}
