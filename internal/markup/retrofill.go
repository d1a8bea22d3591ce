package markup

import (
	"regexp"

	"github.com/hrygo/sentrybot/store"
)

var retrofillPattern = regexp.MustCompile(`\{(\w+)\}`)

// Retrofill handles the case where a message was rendered
// before a chat-user context existed (so its fillings were left literal as
// `{name}`), replay substitution over the stored text and patch every
// entity's UTF-16 offset by the cumulative length difference.
func Retrofill(text string, entities []store.EntitySpan, cu *ChatUser) (string, []store.EntitySpan) {
	matches := retrofillPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, entities
	}

	out := make([]store.EntitySpan, len(entities))
	copy(out, entities)

	var (
		result     []byte
		lastByte   int
		cumulative int // running UTF-16 length delta applied so far
	)
	for _, m := range matches {
		start, end := m[0], m[1]
		name := text[m[2]:m[3]]

		replacement, mention, ok := resolveFilling(name, cu)
		if !ok {
			continue // not in the closed set, or still unresolved: leave verbatim
		}

		result = append(result, text[lastByte:start]...)
		utf16Before := utf16Len(text[:start])
		result = append(result, replacement...)
		lastByte = end

		delta := utf16Len(replacement) - utf16Len(text[start:end])
		if delta != 0 {
			for i := range out {
				if out[i].Offset >= utf16Before+cumulative {
					out[i].Offset += delta
				}
			}
		}
		if mention {
			out = append(out, store.EntitySpan{
				Offset: utf16Before + cumulative,
				Length: utf16Len(replacement),
				Kind:   "text_mention",
				UserID: cu.UserID,
			})
		}
		cumulative += delta
	}
	result = append(result, text[lastByte:]...)

	return string(result), out
}
