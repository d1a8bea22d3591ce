// Package conversation implements a per-(chat,user) finite state machine
// whose live cursor is a single cache key, used for
// multi-step flows (e.g. a setup wizard) authored once as a state graph
// and driven by inline-button clicks that edit the originating message in
// place.
package conversation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/internal/cachesubstrate"
	"github.com/hrygo/sentrybot/store"
)

// OnTransition is an optional callback invoked with the new state's id
// whenever transition() moves the cursor.
type OnTransition func(ctx context.Context, chatID, userID int64, newState uuid.UUID)

// Engine drives conversation cursors for a process. One Engine is shared
// across all (chat, user) pairs.
type Engine struct {
	cache   *cachesubstrate.Cache
	driver  store.Driver
	ttl     time.Duration
	onTrans OnTransition
}

// New builds an Engine. onTrans may be nil.
func New(cache *cachesubstrate.Cache, driver store.Driver, ttl time.Duration, onTrans OnTransition) *Engine {
	if ttl <= 0 {
		ttl = 48 * time.Hour
	}
	return &Engine{cache: cache, driver: driver, ttl: ttl, onTrans: onTrans}
}

// Start loads the conversation graph for (chatID, userID) and positions
// the cursor at its start state. It does not create a graph: when none is
// stored for the pair it returns an error.
func (e *Engine) Start(ctx context.Context, chatID, userID int64) (*store.Conversation, error) {
	conv, err := e.driver.GetConversationForChatUser(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errors.New("conversation: no graph stored for this chat and user")
	}
	start, ok := startState(conv)
	if !ok {
		return nil, errors.New("conversation: graph has no start state")
	}
	if err := e.setCursor(ctx, chatID, userID, start); err != nil {
		return nil, err
	}
	return conv, nil
}

func startState(conv *store.Conversation) (uuid.UUID, bool) {
	for id, s := range conv.States {
		if s.IsStart {
			return id, true
		}
	}
	return uuid.UUID{}, false
}

func (e *Engine) setCursor(ctx context.Context, chatID, userID int64, state uuid.UUID) error {
	return e.cache.Set(ctx, cachesubstrate.ConversationKey(chatID, userID), state, e.ttl)
}

// Cursor returns the current state id for (chatID, userID), if a
// conversation is in progress.
func (e *Engine) Cursor(ctx context.Context, chatID, userID int64) (uuid.UUID, bool, error) {
	return cachesubstrate.Get[uuid.UUID](ctx, e.cache, cachesubstrate.ConversationKey(chatID, userID))
}

// Transition implements transition(next_keyword): look up the transition
// from the current cursor state keyed by trigger, write the new cursor,
// and invoke the on-transition callback.
func (e *Engine) Transition(ctx context.Context, chatID, userID int64, trigger string) (*store.ConversationState, error) {
	cursor, found, err := e.Cursor(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.New("conversation: no active conversation for this chat/user")
	}

	conv, err := e.driver.GetConversationForChatUser(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	t := findTransition(conv, cursor, trigger)
	if t == nil {
		return nil, errors.Errorf("conversation: no transition for trigger %q from current state", trigger)
	}
	next, ok := conv.States[t.EndStateID]
	if !ok {
		return nil, errors.Errorf("conversation: dangling transition to unknown state %s", t.EndStateID)
	}
	if err := e.setCursor(ctx, chatID, userID, t.EndStateID); err != nil {
		return nil, err
	}
	if e.onTrans != nil {
		e.onTrans(ctx, chatID, userID, t.EndStateID)
	}
	return &next, nil
}

// findTransition is the pure graph lookup transition() performs: the edge
// out of `from` keyed by trigger, or nil if none matches.
func findTransition(conv *store.Conversation, from uuid.UUID, trigger string) *store.ConversationTransition {
	for i := range conv.Transitions {
		t := &conv.Transitions[i]
		if t.StartStateID == from && t.Trigger == trigger {
			return t
		}
	}
	return nil
}

// OutgoingTransition pairs a transition's trigger/display name with the
// state it leads to, as materialized by CurrentMarkup.
type OutgoingTransition struct {
	Trigger string
	Name    string
	Target  uuid.UUID
}

// CurrentMarkup implements get_current_markup(row_limit): the outgoing
// transitions from the current cursor state, chunked into button rows of
// at most rowLimit entries each. Wiring each entry to an inline button
// that edits the originating message is the caller's responsibility
// (component D/transport), since this package has no transport
// dependency; this returns the data those buttons are built from plus the
// current state's display content.
func (e *Engine) CurrentMarkup(ctx context.Context, chatID, userID int64, rowLimit int) (*store.ConversationState, [][]OutgoingTransition, error) {
	if rowLimit <= 0 {
		rowLimit = 8
	}
	cursor, found, err := e.Cursor(ctx, chatID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !found {
		return nil, nil, errors.New("conversation: no active conversation for this chat/user")
	}

	conv, err := e.driver.GetConversationForChatUser(ctx, chatID, userID)
	if err != nil {
		return nil, nil, err
	}
	state, ok := conv.States[cursor]
	if !ok {
		return nil, nil, errors.Errorf("conversation: cursor references unknown state %s", cursor)
	}

	return &state, chunkTransitions(conv, cursor, rowLimit), nil
}

// chunkTransitions is the pure "materialize outgoing edges into button
// rows" helper get_current_markup uses.
func chunkTransitions(conv *store.Conversation, from uuid.UUID, rowLimit int) [][]OutgoingTransition {
	var row []OutgoingTransition
	var grid [][]OutgoingTransition
	for _, t := range conv.Transitions {
		if t.StartStateID != from {
			continue
		}
		row = append(row, OutgoingTransition{Trigger: t.Trigger, Name: t.Name, Target: t.EndStateID})
		if len(row) >= rowLimit {
			grid = append(grid, row)
			row = nil
		}
	}
	if len(row) > 0 {
		grid = append(grid, row)
	}
	return grid
}

// End clears the conversation cursor, e.g. after the graph reaches a
// terminal state with no outgoing transitions.
func (e *Engine) End(ctx context.Context, chatID, userID int64) error {
	return e.cache.Invalidate(ctx, cachesubstrate.ConversationKey(chatID, userID))
}
