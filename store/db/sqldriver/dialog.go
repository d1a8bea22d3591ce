package sqldriver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

func (d *Driver) GetDialog(ctx context.Context, chatID int64) (*store.Dialog, error) {
	q := fmt.Sprintf(`SELECT chat_id, language, warn_limit, warn_time_seconds, action_type, default_permissions, federation_id
		FROM dialogs WHERE chat_id = %s`, d.dialect.Placeholder(1))

	var dialog store.Dialog
	var actionType string
	var perms string
	var warnTime sql.NullInt64
	var fedID sql.NullString

	err := d.db.QueryRowContext(ctx, q, chatID).Scan(
		&dialog.ChatID, &dialog.Language, &dialog.WarnLimit, &warnTime, &actionType, &perms, &fedID)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: get dialog")
	}

	dialog.ActionType = store.ActionType(actionType)
	dialog.WarnTime = secondsToDuration(warnTime)
	if err := fromJSON(perms, &dialog.DefaultPermissions); err != nil {
		return nil, err
	}
	fed, err := nullStringToUUID(fedID)
	if err != nil {
		return nil, err
	}
	dialog.FederationID = fed
	return &dialog, nil
}

func (d *Driver) UpsertDialog(ctx context.Context, dl *store.Dialog) error {
	perms, err := toJSON(dl.DefaultPermissions)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO dialogs (chat_id, language, warn_limit, warn_time_seconds, action_type, default_permissions, federation_id)
		VALUES (%s) %s`, ph(d.dialect, 7),
		d.dialect.Upsert([]string{"chat_id"},
			"language = excluded.language, warn_limit = excluded.warn_limit, warn_time_seconds = excluded.warn_time_seconds, "+
				"action_type = excluded.action_type, default_permissions = excluded.default_permissions, federation_id = excluded.federation_id"))
	_, err = d.db.ExecContext(ctx, q,
		dl.ChatID, dl.Language, dl.WarnLimit, durationToSeconds(dl.WarnTime), string(dl.ActionType), perms, uuidToNullString(dl.FederationID))
	return errors.Wrap(err, "sqldriver: upsert dialog")
}
