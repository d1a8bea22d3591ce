package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

func (d *Driver) UpsertUser(ctx context.Context, u *store.User) error {
	q := fmt.Sprintf(`INSERT INTO users (id, first_name, last_name, handle, is_bot) VALUES (%s)
		%s`, ph(d.dialect, 5),
		d.dialect.Upsert([]string{"id"}, "first_name = excluded.first_name, last_name = excluded.last_name, handle = excluded.handle, is_bot = excluded.is_bot"))
	_, err := d.db.ExecContext(ctx, q, u.ID, u.FirstName, u.LastName, u.Handle, u.IsBot)
	return errors.Wrap(err, "sqldriver: upsert user")
}

func (d *Driver) GetUser(ctx context.Context, id int64) (*store.User, error) {
	q := fmt.Sprintf(`SELECT id, first_name, last_name, handle, is_bot FROM users WHERE id = %s`, d.dialect.Placeholder(1))
	return d.scanUser(d.db.QueryRowContext(ctx, q, id))
}

func (d *Driver) GetUserByHandle(ctx context.Context, handle string) (*store.User, error) {
	q := fmt.Sprintf(`SELECT id, first_name, last_name, handle, is_bot FROM users WHERE handle = %s`, d.dialect.Placeholder(1))
	return d.scanUser(d.db.QueryRowContext(ctx, q, handle))
}

func (d *Driver) scanUser(row *sql.Row) (*store.User, error) {
	var u store.User
	if err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Handle, &u.IsBot); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: scan user")
	}
	return &u, nil
}

func (d *Driver) UpsertChat(ctx context.Context, c *store.Chat) error {
	q := fmt.Sprintf(`INSERT INTO chats (id, kind, title, language) VALUES (%s)
		%s`, ph(d.dialect, 4),
		d.dialect.Upsert([]string{"id"}, "kind = excluded.kind, title = excluded.title, language = excluded.language"))
	_, err := d.db.ExecContext(ctx, q, c.ID, string(c.Kind), c.Title, c.Language)
	return errors.Wrap(err, "sqldriver: upsert chat")
}

func (d *Driver) GetChat(ctx context.Context, id int64) (*store.Chat, error) {
	q := fmt.Sprintf(`SELECT id, kind, title, language FROM chats WHERE id = %s`, d.dialect.Placeholder(1))
	var c store.Chat
	var kind string
	err := d.db.QueryRowContext(ctx, q, id).Scan(&c.ID, &kind, &c.Title, &c.Language)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: get chat")
	}
	c.Kind = store.ChatKind(kind)
	return &c, nil
}

func (d *Driver) AddChatMember(ctx context.Context, m *store.ChatMember) error {
	q := fmt.Sprintf(`INSERT INTO chat_members (chat_id, user_id, banned_by_me) VALUES (%s)
		%s`, ph(d.dialect, 3),
		d.dialect.Upsert([]string{"chat_id", "user_id"}, "banned_by_me = excluded.banned_by_me"))
	_, err := d.db.ExecContext(ctx, q, m.ChatID, m.UserID, m.BannedByMe)
	return errors.Wrap(err, "sqldriver: add chat member")
}

func (d *Driver) ListChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	q := fmt.Sprintf(`SELECT chat_id FROM chat_members WHERE user_id = %s`, d.dialect.Placeholder(1))
	rows, err := d.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: list chats for user")
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, errors.Wrap(err, "sqldriver: scan chat id")
		}
		out = append(out, chatID)
	}
	return out, errors.Wrap(rows.Err(), "sqldriver: iterate chats for user")
}
