package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

func (d *Driver) GetWelcome(ctx context.Context, chatID int64) (*store.Welcome, error) {
	q := fmt.Sprintf(`SELECT chat_id, enabled, welcome_text, welcome_media_id, welcome_entity_set_id, welcome_button_set_id,
		goodbye_text, goodbye_media_id, goodbye_entity_set_id, goodbye_button_set_id
		FROM welcomes WHERE chat_id = %s`, d.dialect.Placeholder(1))

	var w store.Welcome
	var welcomeEntitySet, welcomeButtonSet, goodbyeEntitySet, goodbyeButtonSet sql.NullInt64
	err := d.db.QueryRowContext(ctx, q, chatID).Scan(
		&w.ChatID, &w.Enabled, &w.WelcomeText, &w.WelcomeMediaID, &welcomeEntitySet, &welcomeButtonSet,
		&w.GoodbyeText, &w.GoodbyeMediaID, &goodbyeEntitySet, &goodbyeButtonSet)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: get welcome")
	}
	w.WelcomeEntitySetID = nullInt64Ptr(welcomeEntitySet)
	w.WelcomeButtonSetID = nullInt64Ptr(welcomeButtonSet)
	w.GoodbyeEntitySetID = nullInt64Ptr(goodbyeEntitySet)
	w.GoodbyeButtonSetID = nullInt64Ptr(goodbyeButtonSet)
	return &w, nil
}

func (d *Driver) UpsertWelcome(ctx context.Context, w *store.Welcome) error {
	q := fmt.Sprintf(`INSERT INTO welcomes (chat_id, enabled, welcome_text, welcome_media_id, welcome_entity_set_id, welcome_button_set_id,
		goodbye_text, goodbye_media_id, goodbye_entity_set_id, goodbye_button_set_id) VALUES (%s)
		%s`, ph(d.dialect, 10),
		d.dialect.Upsert([]string{"chat_id"},
			"enabled = excluded.enabled, welcome_text = excluded.welcome_text, welcome_media_id = excluded.welcome_media_id, "+
				"welcome_entity_set_id = excluded.welcome_entity_set_id, welcome_button_set_id = excluded.welcome_button_set_id, "+
				"goodbye_text = excluded.goodbye_text, goodbye_media_id = excluded.goodbye_media_id, "+
				"goodbye_entity_set_id = excluded.goodbye_entity_set_id, goodbye_button_set_id = excluded.goodbye_button_set_id"))
	_, err := d.db.ExecContext(ctx, q,
		w.ChatID, w.Enabled, w.WelcomeText, w.WelcomeMediaID, w.WelcomeEntitySetID, w.WelcomeButtonSetID,
		w.GoodbyeText, w.GoodbyeMediaID, w.GoodbyeEntitySetID, w.GoodbyeButtonSetID)
	return errors.Wrap(err, "sqldriver: upsert welcome")
}

func nullInt64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
