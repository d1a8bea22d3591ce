package markup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderRawAndBold(t *testing.T) {
	tmpl, err := Parse("hi [*there]", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "hi there", res.Text)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "bold", res.Entities[0].Kind)
	assert.Equal(t, 3, res.Entities[0].Offset)
	assert.Equal(t, 5, res.Entities[0].Length)
}

func TestRenderNestedSpans(t *testing.T) {
	tmpl, err := Parse("[*[_x]]", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "x", res.Text)
	require.Len(t, res.Entities, 2)
	// inner italic is recorded before the outer bold closes.
	assert.Equal(t, "italic", res.Entities[0].Kind)
	assert.Equal(t, "bold", res.Entities[1].Kind)
}

func TestRenderFillingWithoutContextCollectsRequired(t *testing.T) {
	tmpl, err := Parse("hi {username}", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{})
	require.NoError(t, err)
	assert.Equal(t, "hi {username}", res.Text)
	assert.Contains(t, res.RequiredFillings, "username")
}

func TestRenderFillingWithContext(t *testing.T) {
	tmpl, err := Parse("hi {first}", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{ChatUser: &ChatUser{UserID: 1, FirstName: "Ann"}})
	require.NoError(t, err)
	assert.Equal(t, "hi Ann", res.Text)
}

func TestRenderUnknownFillingPreservedLiterally(t *testing.T) {
	tmpl, err := Parse("{nope}", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{ChatUser: &ChatUser{}})
	require.NoError(t, err)
	assert.Equal(t, "{nope}", res.Text)
	assert.Empty(t, res.RequiredFillings)
}

func TestRenderURLButton(t *testing.T) {
	tmpl, err := Parse("<Go>(https://example.com)", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{})
	require.NoError(t, err)
	require.Len(t, res.Buttons, 1)
	require.Len(t, res.Buttons[0], 1)
	assert.Equal(t, ButtonURL, res.Buttons[0][0].Kind)
	assert.Equal(t, "https://example.com", res.Buttons[0][0].Data)
}

func TestRenderCallbackButtonInDM(t *testing.T) {
	tmpl, err := Parse("<Go>(#menu)", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{
		IsDM: true,
		BindCallback: func(ctx context.Context, target string) (string, error) {
			assert.Equal(t, "menu", target)
			return "cb-123", nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, ButtonCallback, res.Buttons[0][0].Kind)
	assert.Equal(t, "cb-123", res.Buttons[0][0].Data)
}

func TestRenderDeepLinkButtonInGroup(t *testing.T) {
	tmpl, err := Parse("<Go>(#menu)", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{
		IsDM:     false,
		ChatUser: &ChatUser{ChatID: 55},
		MintDeepLink: func(ctx context.Context, chatID int64, tail string) (string, error) {
			assert.Equal(t, int64(55), chatID)
			assert.Equal(t, "menu", tail)
			return "tok", nil
		},
		DeepLinkURL: func(token string) string { return "https://t.me/bot?start=" + token },
	})
	require.NoError(t, err)
	assert.Equal(t, ButtonDeepLink, res.Buttons[0][0].Kind)
	assert.Equal(t, "https://t.me/bot?start=tok", res.Buttons[0][0].Data)
}

func TestRenderNewlineButtonStartsNewRow(t *testing.T) {
	tmpl, err := Parse("<A>(u1)<<B>>(u2)", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{})
	require.NoError(t, err)
	require.Len(t, res.Buttons, 2)
	assert.Equal(t, "A", res.Buttons[0][0].Caption)
	assert.Equal(t, "B", res.Buttons[1][0].Caption)
}

func TestRenderButtonRowWraps(t *testing.T) {
	tmpl, err := Parse("<1>(u)<2>(u)<3>(u)", false)
	require.NoError(t, err)
	res, err := Render(context.Background(), tmpl, Hooks{RowLimit: 2})
	require.NoError(t, err)
	require.Len(t, res.Buttons, 2)
	assert.Len(t, res.Buttons[0], 2)
	assert.Len(t, res.Buttons[1], 1)
}

func TestUTF16LenForAstralCharacters(t *testing.T) {
	// U+1F600 (grinning face) is outside the BMP and requires a surrogate
	// pair in UTF-16, so its code-unit length is 2 even though it is one
	// Go rune.
	assert.Equal(t, 2, utf16Len("😀"))
}
