package dispatch

import (
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/hrygo/sentrybot/internal/moderation"
	"github.com/hrygo/sentrybot/store"
)

// Command is a parsed "/name arg1 arg2 ..." message: the command word with
// its leading slash and any trailing "@botname" stripped, plus its
// argument list split into the typed shapes moderation.ResolveTarget and
// the command handlers consume.
type Command struct {
	Name string
	Args []moderation.Arg
}

// ParseCommand tokenizes on whitespace, respecting double-quoted spans as
// single arguments; upgrades any token whose UTF-16 offset lines up with a
// "text_mention" entity span to ArgTextMention; treats a leading '@' as
// ArgMention. Returns ok=false when text does not start with '/'.
func ParseCommand(text string, entities []store.EntitySpan) (*Command, bool) {
	if !strings.HasPrefix(text, "/") {
		return nil, false
	}
	tokens, offsets := tokenizeUTF16(text)
	if len(tokens) == 0 {
		return nil, false
	}

	name := strings.TrimPrefix(tokens[0], "/")
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}

	var args []moderation.Arg
	for i := 1; i < len(tokens); i++ {
		tok := tokens[i]
		switch {
		case textMentionAt(entities, offsets[i]) != nil:
			span := textMentionAt(entities, offsets[i])
			args = append(args, moderation.Arg{Kind: moderation.ArgTextMention, UserID: span.UserID, Text: tok})
		case strings.HasPrefix(tok, "@") && len(tok) > 1:
			args = append(args, moderation.Arg{Kind: moderation.ArgMention, Text: tok[1:]})
		case strings.HasPrefix(tok, `"`) && strings.HasSuffix(tok, `"`) && len(tok) >= 2:
			args = append(args, moderation.Arg{Kind: moderation.ArgQuoted, Text: strings.Trim(tok, `"`)})
		default:
			args = append(args, moderation.Arg{Kind: moderation.ArgPlain, Text: tok})
		}
	}
	return &Command{Name: name, Args: args}, true
}

func textMentionAt(entities []store.EntitySpan, offset int) *store.EntitySpan {
	for i := range entities {
		if entities[i].Kind == "text_mention" && entities[i].Offset == offset {
			return &entities[i]
		}
	}
	return nil
}

// tokenizeUTF16 splits s on whitespace like strings.Fields, except spaces
// inside a double-quoted span don't split, and it also returns each
// token's starting UTF-16 code-unit offset so tokens can be matched
// against entity spans, which are offset in that unit.
func tokenizeUTF16(s string) (tokens []string, offsets []int) {
	units := utf16.Encode([]rune(s))
	inQuote := false
	start := -1
	for i := 0; i <= len(units); i++ {
		var r rune
		if i < len(units) {
			r = rune(units[i])
		}
		isBoundary := i == len(units) || (unicode.IsSpace(r) && !inQuote)
		if r == '"' {
			inQuote = !inQuote
		}
		if !isBoundary && start < 0 {
			start = i
		}
		if isBoundary && start >= 0 {
			tokens = append(tokens, string(utf16.Decode(units[start:i])))
			offsets = append(offsets, start)
			start = -1
		}
	}
	return tokens, offsets
}
