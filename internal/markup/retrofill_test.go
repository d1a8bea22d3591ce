package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/sentrybot/store"
)

func TestRetrofillSubstitutesAndPatchesOffsets(t *testing.T) {
	text := "hi {first}, welcome"
	// "welcome" starts at UTF-16 offset 12 in the original text.
	entities := []store.EntitySpan{{Offset: 12, Length: 7, Kind: "bold"}}

	out, patched := Retrofill(text, entities, &ChatUser{FirstName: "Ann"})

	assert.Equal(t, "hi Ann, welcome", out)
	require.Len(t, patched, 1) // original bold span only; {first} adds no text_mention
	delta := utf16Len("Ann") - utf16Len("{first}")
	assert.Equal(t, 12+delta, patched[0].Offset)
}

func TestRetrofillLeavesUnresolvableFillingsAlone(t *testing.T) {
	out, _ := Retrofill("hi {first}", nil, nil)
	assert.Equal(t, "hi {first}", out)
}

func TestRetrofillNoOpWithoutFillings(t *testing.T) {
	entities := []store.EntitySpan{{Offset: 0, Length: 2, Kind: "bold"}}
	out, patched := Retrofill("hi there", entities, &ChatUser{FirstName: "Ann"})
	assert.Equal(t, "hi there", out)
	assert.Equal(t, entities, patched)
}
