// Package dispatch implements the update dispatcher. It assembles a
// Context from one inbound update and fans it out to feature modules in a
// fixed order — identity record, pending-action apply, greeting, locks,
// blocklists, filters, command dispatch — stopping as soon as one stage
// reports the update as handled.
package dispatch

import (
	"github.com/hrygo/sentrybot/internal/markup"
	"github.com/hrygo/sentrybot/internal/moderation"
	"github.com/hrygo/sentrybot/internal/policy"
	"github.com/hrygo/sentrybot/internal/rules"
	"github.com/hrygo/sentrybot/store"
)

// Update is everything the transport adapter extracts from one inbound
// platform update. Building this from the raw platform payload is the
// transport layer's job; dispatch never talks to the transport directly
// except through the Transport interface in pipeline.go.
type Update struct {
	Chat   *store.Chat
	Sender *store.User

	MessageID int64
	Text      string
	Entities  []store.EntitySpan

	ReplyToSender *store.User // nil if this update is not a reply
	ForwardOrigin *store.User // nil if this update is not a forward

	IsNewChatMember bool // a ChatMember "joined" service update
	NewMemberID     int64

	IsPremiumSender bool
	HasURL          bool
	HasCode         bool
	HasPhoto        bool
	HasVideo        bool
	IsAnonAdmin     bool
	HasSticker      bool
}

// Context carries the raw update, the resolved chat, a parsed command,
// the chat's language, and a read-only reference to the policy store,
// threaded through every stage.
type Context struct {
	Update   Update
	Chat     *store.Chat
	Sender   *store.User
	Command  *Command
	Language string
	Store    *store.Store
}

// replyToSenderID returns the id of the user this update replies to, or 0.
func (c *Context) replyToSenderID() int64 {
	if c.Update.ReplyToSender == nil {
		return 0
	}
	return c.Update.ReplyToSender.ID
}

// actionMessage extracts a moderation.ActionMessage from the parsed
// command, the shape every moderation primitive's target resolution
// consumes.
func (c *Context) actionMessage() moderation.ActionMessage {
	am := moderation.ActionMessage{ReplyToSenderID: c.replyToSenderID()}
	if c.Command != nil {
		am.Args = c.Command.Args
	}
	return am
}

// messageFeatures projects Update onto internal/policy's predicate list.
func (c *Context) messageFeatures() policy.MessageFeatures {
	return policy.MessageFeatures{
		IsPremiumSender: c.Update.IsPremiumSender,
		HasURL:          c.Update.HasURL,
		HasCode:         c.Update.HasCode,
		HasPhoto:        c.Update.HasPhoto,
		HasVideo:        c.Update.HasVideo,
		IsAnonAdmin:     c.Update.IsAnonAdmin,
		IsBotCommand:    c.Command != nil,
		IsForwarded:     c.Update.ForwardOrigin != nil,
		HasSticker:      c.Update.HasSticker,
	}
}

// greetedUser binds a markup.ChatUser to the joining member for
// stageGreeting's render. Update.Sender is the service message's author,
// which Telegram sets to the joiner for a self-triggered join but to the
// inviter for an add-by-someone-else join; only in the former case does it
// carry the name fields a welcome template's fillings need; the latter
// falls back to an ID-only binding so {mention}/{username} degrade to the
// joiner's id rather than naming the wrong person.
func (c *Context) greetedUser() *markup.ChatUser {
	if c.Update.NewMemberID == 0 || c.Chat == nil {
		return nil
	}
	cu := &markup.ChatUser{
		UserID:    c.Update.NewMemberID,
		ChatID:    c.Chat.ID,
		ChatTitle: c.Chat.Title,
	}
	if c.Update.Sender != nil && c.Update.Sender.ID == c.Update.NewMemberID {
		cu.Username = c.Update.Sender.Handle
		cu.FirstName = c.Update.Sender.FirstName
		cu.LastName = c.Update.Sender.LastName
	}
	return cu
}

// ruleVars projects Update onto internal/rules' CEL variable set, used to
// evaluate a Blocklist row's optional override expression (Lock rows are
// gated inside policy.EvaluateLocks itself).
func (c *Context) ruleVars() rules.Vars {
	mf := c.messageFeatures()
	return rules.Vars{
		IsPremiumSender: mf.IsPremiumSender,
		HasURL:          mf.HasURL,
		HasCode:         mf.HasCode,
		HasPhoto:        mf.HasPhoto,
		HasVideo:        mf.HasVideo,
		IsAnonAdmin:     mf.IsAnonAdmin,
		IsBotCommand:    mf.IsBotCommand,
		IsForwarded:     mf.IsForwarded,
		HasSticker:      mf.HasSticker,
	}
}
