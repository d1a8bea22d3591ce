package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

func (d *Driver) GetLock(ctx context.Context, chatID int64, lockType store.LockType) (*store.Lock, error) {
	q := fmt.Sprintf(`SELECT chat_id, lock_type, lock_action, reason, rule FROM locks
		WHERE chat_id = %s AND lock_type = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	return d.scanLock(d.db.QueryRowContext(ctx, q, chatID, int(lockType)))
}

func (d *Driver) scanLock(row *sql.Row) (*store.Lock, error) {
	var l store.Lock
	var lockType int
	var action, rule sql.NullString
	if err := row.Scan(&l.ChatID, &lockType, &action, &l.Reason, &rule); err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: scan lock")
	}
	l.LockType = store.LockType(lockType)
	if action.Valid {
		a := store.ActionType(action.String)
		l.LockAction = &a
	}
	if rule.Valid {
		l.Rule = &rule.String
	}
	return &l, nil
}

func (d *Driver) ListLocks(ctx context.Context, chatID int64) ([]*store.Lock, error) {
	q := fmt.Sprintf(`SELECT chat_id, lock_type, lock_action, reason, rule FROM locks
		WHERE chat_id = %s ORDER BY lock_type`, d.dialect.Placeholder(1))
	rows, err := d.db.QueryContext(ctx, q, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: list locks")
	}
	defer rows.Close()

	var out []*store.Lock
	for rows.Next() {
		var l store.Lock
		var lockType int
		var action, rule sql.NullString
		if err := rows.Scan(&l.ChatID, &lockType, &action, &l.Reason, &rule); err != nil {
			return nil, errors.Wrap(err, "sqldriver: scan lock")
		}
		l.LockType = store.LockType(lockType)
		if action.Valid {
			a := store.ActionType(action.String)
			l.LockAction = &a
		}
		if rule.Valid {
			l.Rule = &rule.String
		}
		out = append(out, &l)
	}
	return out, errors.Wrap(rows.Err(), "sqldriver: iterate locks")
}

func (d *Driver) UpsertLock(ctx context.Context, l *store.Lock) error {
	var action *string
	if l.LockAction != nil {
		s := string(*l.LockAction)
		action = &s
	}
	q := fmt.Sprintf(`INSERT INTO locks (chat_id, lock_type, lock_action, reason, rule) VALUES (%s)
		%s`, ph(d.dialect, 5),
		d.dialect.Upsert([]string{"chat_id", "lock_type"}, "lock_action = excluded.lock_action, reason = excluded.reason, rule = excluded.rule"))
	_, err := d.db.ExecContext(ctx, q, l.ChatID, int(l.LockType), action, l.Reason, l.Rule)
	return errors.Wrap(err, "sqldriver: upsert lock")
}

func (d *Driver) DeleteLock(ctx context.Context, chatID int64, lockType store.LockType) error {
	q := fmt.Sprintf(`DELETE FROM locks WHERE chat_id = %s AND lock_type = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	_, err := d.db.ExecContext(ctx, q, chatID, int(lockType))
	return errors.Wrap(err, "sqldriver: delete lock")
}
