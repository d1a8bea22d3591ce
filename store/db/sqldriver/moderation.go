package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

func (d *Driver) GetAction(ctx context.Context, userID, chatID int64) (*store.Action, error) {
	q := fmt.Sprintf(`SELECT user_id, chat_id, is_banned, permissions, expires_at, pending
		FROM actions WHERE user_id = %s AND chat_id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))

	var a store.Action
	var perms string
	var expiresAt sql.NullInt64
	err := d.db.QueryRowContext(ctx, q, userID, chatID).Scan(&a.UserID, &a.ChatID, &a.IsBanned, &perms, &expiresAt, &a.Pending)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: get action")
	}
	if err := fromJSON(perms, &a.Permissions); err != nil {
		return nil, err
	}
	a.ExpiresAt = unixToTime(expiresAt)
	return &a, nil
}

func (d *Driver) UpsertAction(ctx context.Context, a *store.Action) error {
	perms, err := toJSON(a.Permissions)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO actions (user_id, chat_id, is_banned, permissions, expires_at, pending) VALUES (%s)
		%s`, ph(d.dialect, 6),
		d.dialect.Upsert([]string{"user_id", "chat_id"},
			"is_banned = excluded.is_banned, permissions = excluded.permissions, expires_at = excluded.expires_at, pending = excluded.pending"))
	_, err = d.db.ExecContext(ctx, q, a.UserID, a.ChatID, a.IsBanned, perms, timeToUnix(a.ExpiresAt), a.Pending)
	return errors.Wrap(err, "sqldriver: upsert action")
}

func (d *Driver) DeleteAction(ctx context.Context, userID, chatID int64) error {
	q := fmt.Sprintf(`DELETE FROM actions WHERE user_id = %s AND chat_id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	_, err := d.db.ExecContext(ctx, q, userID, chatID)
	return errors.Wrap(err, "sqldriver: delete action")
}

func (d *Driver) InsertWarn(ctx context.Context, w *store.Warn) (int64, error) {
	return d.insertReturningID(ctx, "warns",
		[]string{"user_id", "chat_id", "reason", "created_at", "expires_at"},
		[]interface{}{w.UserID, w.ChatID, w.Reason, w.CreatedAt.Unix(), timeToUnix(w.ExpiresAt)})
}

func (d *Driver) ListWarns(ctx context.Context, userID, chatID int64) ([]*store.Warn, error) {
	q := fmt.Sprintf(`SELECT id, user_id, chat_id, reason, created_at, expires_at
		FROM warns WHERE user_id = %s AND chat_id = %s ORDER BY created_at`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	rows, err := d.db.QueryContext(ctx, q, userID, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: list warns")
	}
	defer rows.Close()

	var out []*store.Warn
	for rows.Next() {
		var w store.Warn
		var createdAt int64
		var expiresAt sql.NullInt64
		if err := rows.Scan(&w.ID, &w.UserID, &w.ChatID, &w.Reason, &createdAt, &expiresAt); err != nil {
			return nil, errors.Wrap(err, "sqldriver: scan warn")
		}
		w.CreatedAt = unixSeconds(createdAt)
		w.ExpiresAt = unixToTime(expiresAt)
		out = append(out, &w)
	}
	return out, errors.Wrap(rows.Err(), "sqldriver: iterate warns")
}

func (d *Driver) DeleteWarn(ctx context.Context, id int64) error {
	q := fmt.Sprintf(`DELETE FROM warns WHERE id = %s`, d.dialect.Placeholder(1))
	_, err := d.db.ExecContext(ctx, q, id)
	return errors.Wrap(err, "sqldriver: delete warn")
}

func (d *Driver) DeleteExpiredWarns(ctx context.Context, userID, chatID int64) error {
	q := fmt.Sprintf(`DELETE FROM warns WHERE user_id = %s AND chat_id = %s AND expires_at IS NOT NULL AND expires_at < %s`,
		d.dialect.Placeholder(1), d.dialect.Placeholder(2), d.dialect.Placeholder(3))
	_, err := d.db.ExecContext(ctx, q, userID, chatID, nowUnix())
	return errors.Wrap(err, "sqldriver: delete expired warns")
}

func (d *Driver) IsApproved(ctx context.Context, chatID, userID int64) (bool, error) {
	q := fmt.Sprintf(`SELECT 1 FROM approvals WHERE chat_id = %s AND user_id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	var one int
	err := d.db.QueryRowContext(ctx, q, chatID, userID).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "sqldriver: is approved")
	}
	return true, nil
}

func (d *Driver) AddApproval(ctx context.Context, a *store.Approval) error {
	q := fmt.Sprintf(`INSERT INTO approvals (chat_id, user_id) VALUES (%s) %s`, ph(d.dialect, 2),
		d.dialect.Upsert([]string{"chat_id", "user_id"}, "chat_id = excluded.chat_id"))
	_, err := d.db.ExecContext(ctx, q, a.ChatID, a.UserID)
	return errors.Wrap(err, "sqldriver: add approval")
}

func (d *Driver) RemoveApproval(ctx context.Context, chatID, userID int64) error {
	q := fmt.Sprintf(`DELETE FROM approvals WHERE chat_id = %s AND user_id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	_, err := d.db.ExecContext(ctx, q, chatID, userID)
	return errors.Wrap(err, "sqldriver: remove approval")
}
