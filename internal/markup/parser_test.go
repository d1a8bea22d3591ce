package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRaw(t *testing.T) {
	tmpl, err := Parse("hello world", false)
	require.NoError(t, err)
	require.Len(t, tmpl.Body, 3) // Raw("hello") Raw(" ") Raw("world")
	assert.Equal(t, Raw{Text: "hello"}, tmpl.Body[0])
}

func TestParseBold(t *testing.T) {
	tmpl, err := Parse("[*loud]", false)
	require.NoError(t, err)
	require.Len(t, tmpl.Body, 1)
	b, ok := tmpl.Body[0].(Bold)
	require.True(t, ok)
	assert.Equal(t, Raw{Text: "loud"}, b.Children[0])
}

func TestParseLink(t *testing.T) {
	tmpl, err := Parse("[click](https://example.com)", false)
	require.NoError(t, err)
	require.Len(t, tmpl.Body, 1)
	l, ok := tmpl.Body[0].(Link)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", l.URL)
	assert.Equal(t, Raw{Text: "click"}, l.Children[0])
}

func TestParseFilling(t *testing.T) {
	tmpl, err := Parse("hi {username}!", false)
	require.NoError(t, err)
	var found bool
	for _, n := range tmpl.Body {
		if f, ok := n.(Filling); ok {
			assert.Equal(t, "username", f.Name)
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseButton(t *testing.T) {
	tmpl, err := Parse("<Open>(https://example.com)", false)
	require.NoError(t, err)
	require.Len(t, tmpl.Body, 1)
	b, ok := tmpl.Body[0].(Button)
	require.True(t, ok)
	assert.Equal(t, "Open", b.Caption)
	assert.Equal(t, "https://example.com", b.Target)
}

func TestParseNewlineButton(t *testing.T) {
	tmpl, err := Parse("<<Next>>(#page2)", false)
	require.NoError(t, err)
	require.Len(t, tmpl.Body, 1)
	b, ok := tmpl.Body[0].(NewlineButton)
	require.True(t, ok)
	assert.Equal(t, "Next", b.Caption)
	assert.Equal(t, "#page2", b.Target)
}

func TestParseNestedFormatting(t *testing.T) {
	tmpl, err := Parse("[*[_both]]", false)
	require.NoError(t, err)
	b, ok := tmpl.Body[0].(Bold)
	require.True(t, ok)
	_, ok = b.Children[0].(Italic)
	assert.True(t, ok)
}

func TestParseUnterminatedBoldFails(t *testing.T) {
	_, err := Parse("[*loud", false)
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestParseHeaderParenList(t *testing.T) {
	tmpl, err := ParseHeader(`(foo, "bar baz")`)
	require.NoError(t, err)
	require.Len(t, tmpl.Header, 2)
	assert.Equal(t, "foo", tmpl.Header[0].Text)
	assert.False(t, tmpl.Header[0].Quoted)
	assert.Equal(t, "bar baz", tmpl.Header[1].Text)
	assert.True(t, tmpl.Header[1].Quoted)
}

func TestParseHeaderBlockStr(t *testing.T) {
	tmpl, err := ParseHeader("solo")
	require.NoError(t, err)
	require.Len(t, tmpl.Header, 1)
	assert.Equal(t, "solo", tmpl.Header[0].Text)
}

func TestParseHeaderWithBody(t *testing.T) {
	tmpl, err := ParseHeader("(one, two) rest of the message")
	require.NoError(t, err)
	require.Len(t, tmpl.Header, 2)
	require.NotEmpty(t, tmpl.Body)
}
