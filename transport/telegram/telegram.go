// Package telegram adapts the Telegram Bot API to the transport boundary
// internal/moderation and internal/dispatch need: sending/deleting
// messages, restricting/banning/unbanning chat members, and decoding a raw
// platform update into a dispatch.Update. Grounded on
// `plugin/chat_apps/channels/telegram/telegram.go`'s channel adapter — same
// library, same bot.Send/bot.Request call shape — generalized from a
// webhook payload parser into a long-polling moderation transport, since
// this bot's task model runs one dispatch loop rather than serving a
// chat-app webhook.
package telegram

import (
	"context"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/internal/dispatch"
	"github.com/hrygo/sentrybot/store"
)

// Adapter is the process-wide Telegram handle. It satisfies both
// moderation.Transport and dispatch.Transport.
type Adapter struct {
	bot *tgbotapi.BotAPI
}

// New creates an Adapter authenticated with the given bot token.
func New(token string) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, errors.Wrap(err, "telegram: create bot")
	}
	return &Adapter{bot: bot}, nil
}

// Updates starts long-polling and returns the raw update channel; the
// caller decodes each one with DecodeUpdate before handing it to a
// dispatch.Pipeline.
func (a *Adapter) Updates(ctx context.Context) tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	return a.bot.GetUpdatesChan(u)
}

// BotUserID returns the bot's own Telegram user id, used by
// moderation.New to exempt the bot itself from being targeted.
func (a *Adapter) BotUserID() int64 {
	return a.bot.Self.ID
}

// SendText sends a plain text message (dispatch.Transport).
func (a *Adapter) SendText(_ context.Context, chatID int64, text string) error {
	_, err := a.bot.Send(tgbotapi.NewMessage(chatID, text))
	return errors.Wrap(err, "telegram: send text")
}

// DeleteMessage removes a message from a chat (dispatch.Transport).
func (a *Adapter) DeleteMessage(_ context.Context, chatID, messageID int64) error {
	_, err := a.bot.Request(tgbotapi.NewDeleteMessage(chatID, int(messageID)))
	return errors.Wrap(err, "telegram: delete message")
}

// Restrict applies a permission set to a chat member, optionally until a
// deadline (moderation.Transport — mute and the warn/escalation ladder
// both go through this).
func (a *Adapter) Restrict(_ context.Context, chatID, userID int64, perms store.Permissions, until *time.Time) error {
	cfg := tgbotapi.RestrictChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		Permissions:      toTelegramPermissions(perms),
	}
	if until != nil {
		cfg.UntilDate = until.Unix()
	}
	_, err := a.bot.Request(cfg)
	return errors.Wrap(err, "telegram: restrict")
}

// Ban removes a member from the chat, optionally until a deadline
// (moderation.Transport).
func (a *Adapter) Ban(_ context.Context, chatID, userID int64, until *time.Time) error {
	cfg := tgbotapi.BanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
	}
	if until != nil {
		cfg.UntilDate = until.Unix()
	}
	_, err := a.bot.Request(cfg)
	return errors.Wrap(err, "telegram: ban")
}

// Unban lifts a ban, allowing the user to rejoin (moderation.Transport).
func (a *Adapter) Unban(_ context.Context, chatID, userID int64) error {
	cfg := tgbotapi.UnbanChatMemberConfig{
		ChatMemberConfig: tgbotapi.ChatMemberConfig{ChatID: chatID, UserID: userID},
		OnlyIfBanned:     true,
	}
	_, err := a.bot.Request(cfg)
	return errors.Wrap(err, "telegram: unban")
}

// IsChatAdmin reports whether userID holds creator/administrator status
// in chatID (moderation.Transport — gates every action target against
// admin immunity).
func (a *Adapter) IsChatAdmin(_ context.Context, chatID, userID int64) (bool, error) {
	member, err := a.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{ChatID: chatID, UserID: userID},
	})
	if err != nil {
		return false, errors.Wrap(err, "telegram: get chat member")
	}
	return member.IsCreator() || member.IsAdministrator(), nil
}

func toTelegramPermissions(p store.Permissions) *tgbotapi.ChatPermissions {
	return &tgbotapi.ChatPermissions{
		CanSendMessages:       p.CanSendMessages,
		CanSendAudios:         p.CanSendMedia,
		CanSendDocuments:      p.CanSendMedia,
		CanSendPhotos:         p.CanSendMedia,
		CanSendVideos:         p.CanSendMedia,
		CanSendVideoNotes:     p.CanSendMedia,
		CanSendVoiceNotes:     p.CanSendMedia,
		CanSendPolls:          p.CanSendPolls,
		CanSendOtherMessages:  p.CanSendOther,
		CanAddWebPagePreviews: p.CanAddWebPreviews,
	}
}

// DecodeUpdate projects one raw tgbotapi.Update onto the platform-neutral
// dispatch.Update shape, extracting the lock predicates the policy
// evaluator checks (HasURL, HasCode, HasPhoto, HasVideo, HasSticker,
// IsPremiumSender, IsAnonAdmin) from the Telegram-specific message shape.
func DecodeUpdate(u tgbotapi.Update) (dispatch.Update, bool) {
	msg := u.Message
	if msg == nil {
		msg = u.EditedMessage
	}
	if msg == nil || msg.Chat == nil || msg.From == nil {
		return dispatch.Update{}, false
	}

	out := dispatch.Update{
		Chat:      &store.Chat{ID: msg.Chat.ID, Kind: chatKind(msg.Chat.Type), Title: msg.Chat.Title},
		Sender:    &store.User{ID: msg.From.ID, FirstName: msg.From.FirstName, LastName: msg.From.LastName, Handle: msg.From.UserName, IsBot: msg.From.IsBot},
		MessageID: int64(msg.MessageID),
		Text:      textOf(msg),
		Entities:  decodeEntities(msg),

		IsPremiumSender: msg.From.IsPremium,
		HasCode:         hasCode(msg),
		HasPhoto:        len(msg.Photo) > 0,
		HasVideo:        msg.Video != nil,
		HasSticker:      msg.Sticker != nil,
		IsAnonAdmin:     msg.SenderChat != nil,
	}
	out.HasURL = hasURL(msg, out.Entities)

	if msg.ReplyToMessage != nil && msg.ReplyToMessage.From != nil {
		r := msg.ReplyToMessage.From
		out.ReplyToSender = &store.User{ID: r.ID, FirstName: r.FirstName, LastName: r.LastName, Handle: r.UserName, IsBot: r.IsBot}
	}
	if msg.ForwardFrom != nil {
		f := msg.ForwardFrom
		out.ForwardOrigin = &store.User{ID: f.ID, FirstName: f.FirstName, LastName: f.LastName, Handle: f.UserName, IsBot: f.IsBot}
	}
	if len(msg.NewChatMembers) > 0 {
		out.IsNewChatMember = true
		out.NewMemberID = msg.NewChatMembers[0].ID
	}
	return out, true
}

func textOf(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func chatKind(tgType string) store.ChatKind {
	switch tgType {
	case "private":
		return store.ChatKindPrivate
	case "group":
		return store.ChatKindGroup
	case "supergroup":
		return store.ChatKindSupergroup
	case "channel":
		return store.ChatKindChannel
	default:
		return store.ChatKindGroup
	}
}

func hasCode(msg *tgbotapi.Message) bool {
	for _, e := range msg.Entities {
		if e.Type == "code" || e.Type == "pre" {
			return true
		}
	}
	return false
}

func hasURL(msg *tgbotapi.Message, spans []store.EntitySpan) bool {
	for _, s := range spans {
		if s.Kind == "url" || s.Kind == "text_link" {
			return true
		}
	}
	return false
}

func decodeEntities(msg *tgbotapi.Message) []store.EntitySpan {
	entities := msg.Entities
	if len(entities) == 0 {
		entities = msg.CaptionEntities
	}
	spans := make([]store.EntitySpan, 0, len(entities))
	for _, e := range entities {
		span := store.EntitySpan{Offset: e.Offset, Length: e.Length, Kind: e.Type, URL: e.URL, Language: e.Language}
		if e.User != nil {
			span.UserID = e.User.ID
		}
		spans = append(spans, span)
	}
	return spans
}
