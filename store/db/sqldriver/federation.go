package sqldriver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

func (d *Driver) CreateFederation(ctx context.Context, f *store.Federation) error {
	q := fmt.Sprintf(`INSERT INTO federations (id, owner_user_id, name) VALUES (%s)`, ph(d.dialect, 3))
	_, err := d.db.ExecContext(ctx, q, f.ID.String(), f.OwnerUserID, f.Name)
	return errors.Wrap(err, "sqldriver: create federation")
}

func (d *Driver) GetFederation(ctx context.Context, id uuid.UUID) (*store.Federation, error) {
	q := fmt.Sprintf(`SELECT id, owner_user_id, name FROM federations WHERE id = %s`, d.dialect.Placeholder(1))
	var f store.Federation
	var idStr string
	err := d.db.QueryRowContext(ctx, q, id.String()).Scan(&idStr, &f.OwnerUserID, &f.Name)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: get federation")
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: parse federation id")
	}
	f.ID = parsed
	return &f, nil
}

func (d *Driver) GetFederationForChat(ctx context.Context, chatID int64) (*store.Federation, error) {
	q := fmt.Sprintf(`SELECT f.id, f.owner_user_id, f.name FROM federations f
		JOIN dialogs dl ON dl.federation_id = f.id WHERE dl.chat_id = %s`, d.dialect.Placeholder(1))
	var f store.Federation
	var idStr string
	err := d.db.QueryRowContext(ctx, q, chatID).Scan(&idStr, &f.OwnerUserID, &f.Name)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: get federation for chat")
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: parse federation id")
	}
	f.ID = parsed
	return &f, nil
}

func (d *Driver) ListFederationsOwnedBy(ctx context.Context, ownerID int64) ([]*store.Federation, error) {
	q := fmt.Sprintf(`SELECT id, owner_user_id, name FROM federations WHERE owner_user_id = %s ORDER BY name`, d.dialect.Placeholder(1))
	rows, err := d.db.QueryContext(ctx, q, ownerID)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: list federations owned by")
	}
	defer rows.Close()

	var out []*store.Federation
	for rows.Next() {
		var f store.Federation
		var idStr string
		if err := rows.Scan(&idStr, &f.OwnerUserID, &f.Name); err != nil {
			return nil, errors.Wrap(err, "sqldriver: scan federation")
		}
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			return nil, errors.Wrap(err, "sqldriver: parse federation id")
		}
		f.ID = parsed
		out = append(out, &f)
	}
	return out, errors.Wrap(rows.Err(), "sqldriver: iterate federations")
}

func (d *Driver) AddFederationAdmin(ctx context.Context, a *store.FederationAdmin) error {
	q := fmt.Sprintf(`INSERT INTO federation_admins (fed_id, user_id) VALUES (%s) %s`, ph(d.dialect, 2),
		d.dialect.Upsert([]string{"fed_id", "user_id"}, "fed_id = excluded.fed_id"))
	_, err := d.db.ExecContext(ctx, q, a.FedID.String(), a.UserID)
	return errors.Wrap(err, "sqldriver: add federation admin")
}

func (d *Driver) IsFederationAdmin(ctx context.Context, fedID uuid.UUID, userID int64) (bool, error) {
	q := fmt.Sprintf(`SELECT 1 FROM federation_admins WHERE fed_id = %s AND user_id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	var one int
	err := d.db.QueryRowContext(ctx, q, fedID.String(), userID).Scan(&one)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, errors.Wrap(err, "sqldriver: is federation admin")
	}
	return true, nil
}

func (d *Driver) AddFederationSub(ctx context.Context, s *store.FederationSub) error {
	q := fmt.Sprintf(`INSERT INTO federation_subs (parent_fed_id, child_fed_id) VALUES (%s) %s`, ph(d.dialect, 2),
		d.dialect.Upsert([]string{"parent_fed_id", "child_fed_id"}, "parent_fed_id = excluded.parent_fed_id"))
	_, err := d.db.ExecContext(ctx, q, s.ParentFedID.String(), s.ChildFedID.String())
	return errors.Wrap(err, "sqldriver: add federation sub")
}

func (d *Driver) RemoveFederationSub(ctx context.Context, parent, child uuid.UUID) error {
	q := fmt.Sprintf(`DELETE FROM federation_subs WHERE parent_fed_id = %s AND child_fed_id = %s`,
		d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	_, err := d.db.ExecContext(ctx, q, parent.String(), child.String())
	return errors.Wrap(err, "sqldriver: remove federation sub")
}

// ListFederationAncestors walks the subscription graph breadth-first from
// fedID through every parent edge, returning the full ancestor closure
// (fban effectiveness checks the whole ancestor chain).
func (d *Driver) ListFederationAncestors(ctx context.Context, fedID uuid.UUID) ([]uuid.UUID, error) {
	q := fmt.Sprintf(`SELECT parent_fed_id FROM federation_subs WHERE child_fed_id = %s`, d.dialect.Placeholder(1))

	seen := map[uuid.UUID]bool{fedID: true}
	queue := []uuid.UUID{fedID}
	var ancestors []uuid.UUID

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		rows, err := d.db.QueryContext(ctx, q, current.String())
		if err != nil {
			return nil, errors.Wrap(err, "sqldriver: list federation ancestors")
		}
		var parents []uuid.UUID
		for rows.Next() {
			var idStr string
			if err := rows.Scan(&idStr); err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "sqldriver: scan federation ancestor")
			}
			parsed, err := uuid.Parse(idStr)
			if err != nil {
				rows.Close()
				return nil, errors.Wrap(err, "sqldriver: parse federation ancestor")
			}
			parents = append(parents, parsed)
		}
		rerr := rows.Err()
		rows.Close()
		if rerr != nil {
			return nil, errors.Wrap(rerr, "sqldriver: iterate federation ancestors")
		}

		for _, p := range parents {
			if seen[p] {
				continue
			}
			seen[p] = true
			ancestors = append(ancestors, p)
			queue = append(queue, p)
		}
	}
	return ancestors, nil
}

func (d *Driver) AddFBan(ctx context.Context, f *store.FBan) error {
	q := fmt.Sprintf(`INSERT INTO fbans (fed_id, user_id, first_name, last_name, reason) VALUES (%s)
		%s`, ph(d.dialect, 5),
		d.dialect.Upsert([]string{"fed_id", "user_id"}, "first_name = excluded.first_name, last_name = excluded.last_name, reason = excluded.reason"))
	_, err := d.db.ExecContext(ctx, q, f.FedID.String(), f.UserID, f.FirstName, f.LastName, f.Reason)
	return errors.Wrap(err, "sqldriver: add fban")
}

func (d *Driver) RemoveFBan(ctx context.Context, fedID uuid.UUID, userID int64) error {
	q := fmt.Sprintf(`DELETE FROM fbans WHERE fed_id = %s AND user_id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	_, err := d.db.ExecContext(ctx, q, fedID.String(), userID)
	return errors.Wrap(err, "sqldriver: remove fban")
}

func (d *Driver) GetFBan(ctx context.Context, fedID uuid.UUID, userID int64) (*store.FBan, error) {
	q := fmt.Sprintf(`SELECT fed_id, user_id, first_name, last_name, reason FROM fbans
		WHERE fed_id = %s AND user_id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	var f store.FBan
	var idStr string
	err := d.db.QueryRowContext(ctx, q, fedID.String(), userID).Scan(&idStr, &f.UserID, &f.FirstName, &f.LastName, &f.Reason)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: get fban")
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: parse fban fed id")
	}
	f.FedID = parsed
	return &f, nil
}

func (d *Driver) ListFBans(ctx context.Context, fedID uuid.UUID) ([]*store.FBan, error) {
	q := fmt.Sprintf(`SELECT fed_id, user_id, first_name, last_name, reason FROM fbans
		WHERE fed_id = %s ORDER BY user_id`, d.dialect.Placeholder(1))
	rows, err := d.db.QueryContext(ctx, q, fedID.String())
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: list fbans")
	}
	defer rows.Close()

	var out []*store.FBan
	for rows.Next() {
		var f store.FBan
		var idStr string
		if err := rows.Scan(&idStr, &f.UserID, &f.FirstName, &f.LastName, &f.Reason); err != nil {
			return nil, errors.Wrap(err, "sqldriver: scan fban")
		}
		parsed, err := uuid.Parse(idStr)
		if err != nil {
			return nil, errors.Wrap(err, "sqldriver: parse fban fed id")
		}
		f.FedID = parsed
		out = append(out, &f)
	}
	return out, errors.Wrap(rows.Err(), "sqldriver: iterate fbans")
}
