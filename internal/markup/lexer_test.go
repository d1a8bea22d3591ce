package markup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func kinds(toks []Token) []Kind {
	ks := make([]Kind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestLexerBasicTokens(t *testing.T) {
	toks := newLexer("[*bold]", false).Tokens()
	assert.Equal(t, []Kind{LSBracket, Star, StrTok, RSBracket, Eof}, kinds(toks))
}

func TestLexerDoubleUnderscoreVsSingle(t *testing.T) {
	toks := newLexer("_a__b_", false).Tokens()
	assert.Equal(t, []Kind{Underscore, StrTok, DoubleUnderscore, StrTok, Underscore, Eof}, kinds(toks))
}

func TestLexerDoubleBar(t *testing.T) {
	toks := newLexer("||hide||", false).Tokens()
	assert.Equal(t, []Kind{DoubleBar, StrTok, DoubleBar, Eof}, kinds(toks))
}

func TestLexerBackslashEscape(t *testing.T) {
	toks := newLexer(`\[literal\]`, false).Tokens()
	assert.Equal(t, []Kind{StrTok, Eof}, kinds(toks))
	assert.Equal(t, "[literal]", toks[0].Text)
}

func TestLexerMonoCodeRun(t *testing.T) {
	toks := newLexer("`x := 1`", false).Tokens()
	assert.Equal(t, []Kind{MonoTok, Eof}, kinds(toks))
	assert.Equal(t, "x := 1", toks[0].Text)
}

func TestLexerLangCodeRun(t *testing.T) {
	toks := newLexer("`go]fmt.Println()`", false).Tokens()
	assert.Equal(t, []Kind{LangCodeTok, Eof}, kinds(toks))
	assert.Equal(t, "go", toks[0].Lang)
	assert.Equal(t, "fmt.Println()", toks[0].Text)
}

func TestLexerWhitespaceRun(t *testing.T) {
	toks := newLexer("a   b", false).Tokens()
	assert.Equal(t, []Kind{StrTok, WhitespaceTok, StrTok, Eof}, kinds(toks))
	assert.Equal(t, "   ", toks[1].Text)
}

func TestLexerHeaderModePrependsStartAndEnablesCommaQuote(t *testing.T) {
	toks := newLexer(`("a", b)`, true).Tokens()
	assert.Equal(t, Start, toks[0].Kind)
	assert.Contains(t, kinds(toks), Quote)
	assert.Contains(t, kinds(toks), Comma)
}

func TestLexerBodyModeCommaAndQuoteAreLiteral(t *testing.T) {
	toks := newLexer(`a, "b"`, false).Tokens()
	assert.NotContains(t, kinds(toks), Comma)
	assert.NotContains(t, kinds(toks), Quote)
}

func TestLexerButtonBrackets(t *testing.T) {
	toks := newLexer("<Caption>(#target)", false).Tokens()
	assert.Equal(t, []Kind{LTBracket, StrTok, RTBracket, LParen, StrTok, RParen, Eof}, kinds(toks))
}
