package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommonMarkBoldAndItalic(t *testing.T) {
	res, err := ParseCommonMark("**bold** and *italic*")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "bold")
	assert.Contains(t, res.Text, "italic")

	var kinds []string
	for _, e := range res.Entities {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, "bold")
	assert.Contains(t, kinds, "italic")
}

func TestParseCommonMarkLink(t *testing.T) {
	res, err := ParseCommonMark("[go](https://golang.org)")
	require.NoError(t, err)
	require.Len(t, res.Entities, 1)
	assert.Equal(t, "text_link", res.Entities[0].Kind)
	assert.Equal(t, "https://golang.org", res.Entities[0].URL)
}

func TestParseCommonMarkCode(t *testing.T) {
	res, err := ParseCommonMark("run `make build` now")
	require.NoError(t, err)
	var found bool
	for _, e := range res.Entities {
		if e.Kind == "code" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestParseCommonMarkFlattensHeadingsAndParagraphs(t *testing.T) {
	res, err := ParseCommonMark("# Title\n\nBody text")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "Title")
	assert.Contains(t, res.Text, "Body text")
}
