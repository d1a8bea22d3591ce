package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

func (d *Driver) CreateEntitySet(ctx context.Context, es *store.EntitySet) (int64, error) {
	spans, err := toJSON(es.Spans)
	if err != nil {
		return 0, err
	}
	return d.insertReturningID(ctx, "entity_sets", []string{"spans"}, []interface{}{spans})
}

func (d *Driver) GetEntitySet(ctx context.Context, id int64) (*store.EntitySet, error) {
	q := fmt.Sprintf(`SELECT id, spans FROM entity_sets WHERE id = %s`, d.dialect.Placeholder(1))
	var es store.EntitySet
	var spans string
	err := d.db.QueryRowContext(ctx, q, id).Scan(&es.ID, &spans)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: get entity set")
	}
	if err := fromJSON(spans, &es.Spans); err != nil {
		return nil, err
	}
	return &es, nil
}

// insertReturningID inserts one row and returns its generated id, using
// RETURNING on Postgres and LastInsertId on SQLite.
func (d *Driver) insertReturningID(ctx context.Context, table string, cols []string, args []interface{}) (int64, error) {
	placeholders := ph(d.dialect, len(cols))
	colList := joinCols(cols)
	if ret := d.dialect.Returning("id"); ret != "" {
		q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) %s`, table, colList, placeholders, ret)
		var id int64
		err := d.db.QueryRowContext(ctx, q, args...).Scan(&id)
		return id, errors.Wrapf(err, "sqldriver: insert %s", table)
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, table, colList, placeholders)
	res, err := d.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrapf(err, "sqldriver: insert %s", table)
	}
	id, err := res.LastInsertId()
	return id, errors.Wrapf(err, "sqldriver: last insert id %s", table)
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

func (d *Driver) CreateFilter(ctx context.Context, f *store.Filter) (int64, error) {
	triggers, err := toJSON(f.Triggers)
	if err != nil {
		return 0, err
	}
	id, err := d.insertReturningID(ctx, "filters",
		[]string{"chat_id", "text", "media_id", "media_type", "entity_set_id", "triggers"},
		[]interface{}{f.ChatID, f.Text, f.MediaID, f.MediaType, f.EntitySetID, triggers})
	if err != nil {
		return 0, err
	}
	f.ID = id
	return id, nil
}

func (d *Driver) GetFilter(ctx context.Context, chatID, id int64) (*store.Filter, error) {
	q := fmt.Sprintf(`SELECT id, chat_id, text, media_id, media_type, entity_set_id, triggers
		FROM filters WHERE chat_id = %s AND id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	return d.scanFilter(d.db.QueryRowContext(ctx, q, chatID, id))
}

func (d *Driver) scanFilter(row *sql.Row) (*store.Filter, error) {
	var f store.Filter
	var triggers string
	var entitySetID sql.NullInt64
	err := row.Scan(&f.ID, &f.ChatID, &f.Text, &f.MediaID, &f.MediaType, &entitySetID, &triggers)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: scan filter")
	}
	if entitySetID.Valid {
		f.EntitySetID = &entitySetID.Int64
	}
	if err := fromJSON(triggers, &f.Triggers); err != nil {
		return nil, err
	}
	return &f, nil
}

func (d *Driver) ListFilterTriggers(ctx context.Context, chatID int64) (map[string]int64, error) {
	q := fmt.Sprintf(`SELECT id, triggers FROM filters WHERE chat_id = %s`, d.dialect.Placeholder(1))
	rows, err := d.db.QueryContext(ctx, q, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: list filter triggers")
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var id int64
		var triggersJSON string
		if err := rows.Scan(&id, &triggersJSON); err != nil {
			return nil, errors.Wrap(err, "sqldriver: scan filter trigger row")
		}
		var triggers []string
		if err := fromJSON(triggersJSON, &triggers); err != nil {
			return nil, err
		}
		for _, t := range triggers {
			out[t] = id
		}
	}
	return out, errors.Wrap(rows.Err(), "sqldriver: iterate filter triggers")
}

func (d *Driver) ListFilters(ctx context.Context, chatID int64) ([]*store.Filter, error) {
	q := fmt.Sprintf(`SELECT id, chat_id, text, media_id, media_type, entity_set_id, triggers
		FROM filters WHERE chat_id = %s ORDER BY id`, d.dialect.Placeholder(1))
	rows, err := d.db.QueryContext(ctx, q, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: list filters")
	}
	defer rows.Close()

	var out []*store.Filter
	for rows.Next() {
		var f store.Filter
		var triggers string
		var entitySetID sql.NullInt64
		if err := rows.Scan(&f.ID, &f.ChatID, &f.Text, &f.MediaID, &f.MediaType, &entitySetID, &triggers); err != nil {
			return nil, errors.Wrap(err, "sqldriver: scan filter")
		}
		if entitySetID.Valid {
			f.EntitySetID = &entitySetID.Int64
		}
		if err := fromJSON(triggers, &f.Triggers); err != nil {
			return nil, err
		}
		out = append(out, &f)
	}
	return out, errors.Wrap(rows.Err(), "sqldriver: iterate filters")
}

func (d *Driver) DeleteFilter(ctx context.Context, chatID, id int64) error {
	q := fmt.Sprintf(`DELETE FROM filters WHERE chat_id = %s AND id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	_, err := d.db.ExecContext(ctx, q, chatID, id)
	return errors.Wrap(err, "sqldriver: delete filter")
}

func (d *Driver) DeleteAllFilters(ctx context.Context, chatID int64) error {
	q := fmt.Sprintf(`DELETE FROM filters WHERE chat_id = %s`, d.dialect.Placeholder(1))
	_, err := d.db.ExecContext(ctx, q, chatID)
	return errors.Wrap(err, "sqldriver: delete all filters")
}

func (d *Driver) CreateBlocklist(ctx context.Context, b *store.Blocklist) (int64, error) {
	triggers, err := toJSON(b.Triggers)
	if err != nil {
		return 0, err
	}
	id, err := d.insertReturningID(ctx, "blocklists",
		[]string{"chat_id", "text", "media_id", "media_type", "entity_set_id", "action", "duration_seconds", "reason", "triggers", "rule"},
		[]interface{}{b.ChatID, b.Text, b.MediaID, b.MediaType, b.EntitySetID, string(b.Action), b.DurationSeconds, b.Reason, triggers, b.Rule})
	if err != nil {
		return 0, err
	}
	b.ID = id
	return id, nil
}

func (d *Driver) GetBlocklist(ctx context.Context, chatID, id int64) (*store.Blocklist, error) {
	q := fmt.Sprintf(`SELECT id, chat_id, text, media_id, media_type, entity_set_id, action, duration_seconds, reason, triggers, rule
		FROM blocklists WHERE chat_id = %s AND id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	return d.scanBlocklist(d.db.QueryRowContext(ctx, q, chatID, id))
}

func (d *Driver) scanBlocklist(row *sql.Row) (*store.Blocklist, error) {
	var b store.Blocklist
	var action, triggers string
	var entitySetID, duration sql.NullInt64
	var rule sql.NullString
	err := row.Scan(&b.ID, &b.ChatID, &b.Text, &b.MediaID, &b.MediaType, &entitySetID, &action, &duration, &b.Reason, &triggers, &rule)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: scan blocklist")
	}
	b.Action = store.ActionType(action)
	if entitySetID.Valid {
		b.EntitySetID = &entitySetID.Int64
	}
	if duration.Valid {
		n := int(duration.Int64)
		b.DurationSeconds = &n
	}
	if rule.Valid {
		b.Rule = &rule.String
	}
	if err := fromJSON(triggers, &b.Triggers); err != nil {
		return nil, err
	}
	return &b, nil
}

func (d *Driver) ListBlocklistTriggers(ctx context.Context, chatID int64) (map[string]int64, error) {
	q := fmt.Sprintf(`SELECT id, triggers FROM blocklists WHERE chat_id = %s`, d.dialect.Placeholder(1))
	rows, err := d.db.QueryContext(ctx, q, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: list blocklist triggers")
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var id int64
		var triggersJSON string
		if err := rows.Scan(&id, &triggersJSON); err != nil {
			return nil, errors.Wrap(err, "sqldriver: scan blocklist trigger row")
		}
		var triggers []string
		if err := fromJSON(triggersJSON, &triggers); err != nil {
			return nil, err
		}
		for _, t := range triggers {
			out[t] = id
		}
	}
	return out, errors.Wrap(rows.Err(), "sqldriver: iterate blocklist triggers")
}

func (d *Driver) ListBlocklists(ctx context.Context, chatID int64) ([]*store.Blocklist, error) {
	q := fmt.Sprintf(`SELECT id, chat_id, text, media_id, media_type, entity_set_id, action, duration_seconds, reason, triggers, rule
		FROM blocklists WHERE chat_id = %s ORDER BY id`, d.dialect.Placeholder(1))
	rows, err := d.db.QueryContext(ctx, q, chatID)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: list blocklists")
	}
	defer rows.Close()

	var out []*store.Blocklist
	for rows.Next() {
		var b store.Blocklist
		var action, triggers string
		var entitySetID, duration sql.NullInt64
		var rule sql.NullString
		if err := rows.Scan(&b.ID, &b.ChatID, &b.Text, &b.MediaID, &b.MediaType, &entitySetID, &action, &duration, &b.Reason, &triggers, &rule); err != nil {
			return nil, errors.Wrap(err, "sqldriver: scan blocklist")
		}
		b.Action = store.ActionType(action)
		if entitySetID.Valid {
			b.EntitySetID = &entitySetID.Int64
		}
		if duration.Valid {
			n := int(duration.Int64)
			b.DurationSeconds = &n
		}
		if rule.Valid {
			b.Rule = &rule.String
		}
		if err := fromJSON(triggers, &b.Triggers); err != nil {
			return nil, err
		}
		out = append(out, &b)
	}
	return out, errors.Wrap(rows.Err(), "sqldriver: iterate blocklists")
}

func (d *Driver) DeleteBlocklist(ctx context.Context, chatID, id int64) error {
	q := fmt.Sprintf(`DELETE FROM blocklists WHERE chat_id = %s AND id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	_, err := d.db.ExecContext(ctx, q, chatID, id)
	return errors.Wrap(err, "sqldriver: delete blocklist")
}

func (d *Driver) DeleteAllBlocklists(ctx context.Context, chatID int64) error {
	q := fmt.Sprintf(`DELETE FROM blocklists WHERE chat_id = %s`, d.dialect.Placeholder(1))
	_, err := d.db.ExecContext(ctx, q, chatID)
	return errors.Wrap(err, "sqldriver: delete all blocklists")
}
