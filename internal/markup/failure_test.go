package markup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderNoFailFallsBackToVerbatimOnParseError(t *testing.T) {
	res := RenderNoFail(context.Background(), "[*unterminated", Hooks{})
	assert.Equal(t, "[*unterminated", res.Text)
	assert.Empty(t, res.Entities)
	assert.Empty(t, res.Buttons)
}

func TestRenderNoFailRendersValidTemplate(t *testing.T) {
	res := RenderNoFail(context.Background(), "[*ok]", Hooks{})
	assert.Equal(t, "ok", res.Text)
	require.Len(t, res.Entities, 1)
}

func TestParseHeaderSurfacesSpanError(t *testing.T) {
	_, err := ParseHeader(`("unterminated`)
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}
