package sqldriver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

func (d *Driver) CreateConversation(ctx context.Context, c *store.Conversation) error {
	states, err := toJSON(c.States)
	if err != nil {
		return err
	}
	transitions, err := toJSON(c.Transitions)
	if err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT INTO conversations (id, chat_id, user_id, states, transitions) VALUES (%s)
		%s`, ph(d.dialect, 5),
		d.dialect.Upsert([]string{"id"}, "states = excluded.states, transitions = excluded.transitions"))
	_, err = d.db.ExecContext(ctx, q, c.ID.String(), c.ChatID, c.UserID, states, transitions)
	return errors.Wrap(err, "sqldriver: create conversation")
}

func (d *Driver) GetConversation(ctx context.Context, id uuid.UUID) (*store.Conversation, error) {
	q := fmt.Sprintf(`SELECT id, chat_id, user_id, states, transitions FROM conversations WHERE id = %s`, d.dialect.Placeholder(1))
	return d.scanConversation(ctx, q, id.String())
}

func (d *Driver) GetConversationForChatUser(ctx context.Context, chatID, userID int64) (*store.Conversation, error) {
	q := fmt.Sprintf(`SELECT id, chat_id, user_id, states, transitions FROM conversations
		WHERE chat_id = %s AND user_id = %s`, d.dialect.Placeholder(1), d.dialect.Placeholder(2))
	return d.scanConversation(ctx, q, chatID, userID)
}

func (d *Driver) scanConversation(ctx context.Context, q string, args ...interface{}) (*store.Conversation, error) {
	var c store.Conversation
	var idStr, states, transitions string
	err := d.db.QueryRowContext(ctx, q, args...).Scan(&idStr, &c.ChatID, &c.UserID, &states, &transitions)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "sqldriver: scan conversation")
	}
	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return nil, errors.Wrap(err, "sqldriver: parse conversation id")
	}
	c.ID = parsed
	if err := fromJSON(states, &c.States); err != nil {
		return nil, err
	}
	if err := fromJSON(transitions, &c.Transitions); err != nil {
		return nil, err
	}
	return &c, nil
}
