package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/sentrybot/store"
)

func TestDecodeUpdateIgnoresNonMessageUpdates(t *testing.T) {
	_, ok := DecodeUpdate(tgbotapi.Update{})
	assert.False(t, ok)
}

func TestDecodeUpdatePlainText(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 5,
		Chat:      &tgbotapi.Chat{ID: 100, Type: "supergroup", Title: "Test Group"},
		From:      &tgbotapi.User{ID: 42, FirstName: "Ann", UserName: "ann"},
		Text:      "hello there",
	}}
	out, ok := DecodeUpdate(u)
	require.True(t, ok)
	assert.Equal(t, int64(100), out.Chat.ID)
	assert.Equal(t, store.ChatKindSupergroup, out.Chat.Kind)
	assert.Equal(t, int64(42), out.Sender.ID)
	assert.Equal(t, "hello there", out.Text)
	assert.False(t, out.HasURL)
	assert.False(t, out.IsNewChatMember)
}

func TestDecodeUpdateDetectsURLEntity(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 100, Type: "group"},
		From:     &tgbotapi.User{ID: 42},
		Text:     "check example.com",
		Entities: []tgbotapi.MessageEntity{{Type: "url", Offset: 6, Length: 11}},
	}}
	out, ok := DecodeUpdate(u)
	require.True(t, ok)
	assert.True(t, out.HasURL)
	require.Len(t, out.Entities, 1)
	assert.Equal(t, "url", out.Entities[0].Kind)
}

func TestDecodeUpdateDetectsCodeBlock(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: 100, Type: "group"},
		From:     &tgbotapi.User{ID: 42},
		Text:     "`snippet`",
		Entities: []tgbotapi.MessageEntity{{Type: "code", Offset: 0, Length: 9}},
	}}
	out, ok := DecodeUpdate(u)
	require.True(t, ok)
	assert.True(t, out.HasCode)
}

func TestDecodeUpdateNewChatMember(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:           &tgbotapi.Chat{ID: 100, Type: "group"},
		From:           &tgbotapi.User{ID: 1},
		NewChatMembers: []tgbotapi.User{{ID: 77, FirstName: "New"}},
	}}
	out, ok := DecodeUpdate(u)
	require.True(t, ok)
	assert.True(t, out.IsNewChatMember)
	assert.Equal(t, int64(77), out.NewMemberID)
}

func TestDecodeUpdateReplyAndForward(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:           &tgbotapi.Chat{ID: 100, Type: "group"},
		From:           &tgbotapi.User{ID: 1},
		Text:           "reply",
		ReplyToMessage: &tgbotapi.Message{From: &tgbotapi.User{ID: 55, FirstName: "Target"}},
		ForwardFrom:    &tgbotapi.User{ID: 66, FirstName: "Origin"},
	}}
	out, ok := DecodeUpdate(u)
	require.True(t, ok)
	require.NotNil(t, out.ReplyToSender)
	assert.Equal(t, int64(55), out.ReplyToSender.ID)
	require.NotNil(t, out.ForwardOrigin)
	assert.Equal(t, int64(66), out.ForwardOrigin.ID)
}

func TestDecodeUpdateAnonAdminSender(t *testing.T) {
	u := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:       &tgbotapi.Chat{ID: 100, Type: "group"},
		From:       &tgbotapi.User{ID: 1},
		SenderChat: &tgbotapi.Chat{ID: 100, Type: "group"},
		Text:       "hi",
	}}
	out, ok := DecodeUpdate(u)
	require.True(t, ok)
	assert.True(t, out.IsAnonAdmin)
}

func TestToTelegramPermissionsMapsAllowedFlags(t *testing.T) {
	p := store.Permissions{CanSendMessages: true, CanSendMedia: true, CanSendPolls: false, CanSendOther: false, CanAddWebPreviews: true}
	tp := toTelegramPermissions(p)
	assert.True(t, tp.CanSendMessages)
	assert.True(t, tp.CanSendPhotos)
	assert.False(t, tp.CanSendPolls)
	assert.False(t, tp.CanSendOtherMessages)
	assert.True(t, tp.CanAddWebPagePreviews)
}
