package markup

import (
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hrygo/sentrybot/store"
)

// ParseCommonMark implements a separate ingress accepting
// a CommonMark subset (bold, italic, link, code; headings and paragraphs
// flattened to plain line breaks) and emitting the same (text, entities)
// pair the murkdown renderer produces, so both paths feed the same
// transport-facing representation.
func ParseCommonMark(src string) (*Result, error) {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader([]byte(src)))

	cw := &cmWalker{src: []byte(src)}
	if err := gmast.Walk(doc, cw.visit); err != nil {
		return nil, err
	}
	return &Result{Text: strings.TrimRight(cw.text.String(), "\n"), Entities: cw.entities}, nil
}

type cmWalker struct {
	src      []byte
	text     strings.Builder
	offset   int
	entities []store.EntitySpan
}

func (w *cmWalker) write(s string) {
	w.text.WriteString(s)
	w.offset += utf16Len(s)
}

// visit is called on node enter (WalkStatus includes enter/exit). Block
// nodes (paragraph, heading) are flattened to a blank line between them,
// per the template language's "headings/paragraphs flattened" rule.
func (w *cmWalker) visit(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
	switch v := n.(type) {
	case *gmast.Document:
		return gmast.WalkContinue, nil

	case *gmast.Paragraph, *gmast.Heading:
		if !entering && w.text.Len() > 0 {
			w.write("\n\n")
		}
		return gmast.WalkContinue, nil

	case *gmast.Text:
		if entering {
			w.write(string(v.Segment.Value(w.src)))
			if v.SoftLineBreak() {
				w.write(" ")
			}
			if v.HardLineBreak() {
				w.write("\n")
			}
		}
		return gmast.WalkContinue, nil

	case *gmast.CodeSpan:
		if entering {
			start := w.offset
			w.write(collectText(v, w.src))
			w.entities = append(w.entities, store.EntitySpan{Offset: start, Length: w.offset - start, Kind: "code"})
			return gmast.WalkSkipChildren, nil
		}
		return gmast.WalkContinue, nil

	case *gmast.Emphasis:
		if entering {
			start := w.offset
			return w.wrapAfterChildren(n, func() {
				kind := "italic"
				if v.Level == 2 {
					kind = "bold"
				}
				w.entities = append(w.entities, store.EntitySpan{Offset: start, Length: w.offset - start, Kind: kind})
			})
		}
		return gmast.WalkContinue, nil

	case *gmast.Link:
		if entering {
			start := w.offset
			return w.wrapAfterChildren(n, func() {
				w.entities = append(w.entities, store.EntitySpan{Offset: start, Length: w.offset - start, Kind: "text_link", URL: string(v.Destination)})
			})
		}
		return gmast.WalkContinue, nil

	default:
		return gmast.WalkContinue, nil
	}
}

// wrapAfterChildren walks n's children inline (goldmark's Walk doesn't let
// a visitor easily "recurse then run code on the way out" without a second
// pass, since WalkStatus only controls whether children are visited at
// all), then invokes after once they're rendered.
func (w *cmWalker) wrapAfterChildren(n gmast.Node, after func()) (gmast.WalkStatus, error) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if err := gmast.Walk(c, w.visit); err != nil {
			return gmast.WalkStop, err
		}
	}
	after()
	return gmast.WalkSkipChildren, nil
}

// collectText concatenates every descendant Text node's source segment,
// used for inline nodes (CodeSpan) whose content lives in Text children
// rather than on the node itself.
func collectText(n gmast.Node, src []byte) string {
	var b strings.Builder
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*gmast.Text); ok {
			b.Write(t.Segment.Value(src))
			continue
		}
		b.WriteString(collectText(c, src))
	}
	return b.String()
}
