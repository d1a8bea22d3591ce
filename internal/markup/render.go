package markup

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"

	"github.com/hrygo/sentrybot/store"
)

// ButtonKind distinguishes the three outcomes of Button-target
// inspection.
type ButtonKind string

const (
	ButtonURL      ButtonKind = "url"
	ButtonCallback ButtonKind = "callback" // DM context, '#' target
	ButtonDeepLink ButtonKind = "deep_link" // group context, '#' target
)

// RenderedButton is one cell of the output button grid.
type RenderedButton struct {
	Caption string
	Kind    ButtonKind
	Data    string // URL, callback id, or deep-link URL depending on Kind
}

// Hooks supplies the rendering-time context: the bound chat/user (if
// any), whether the destination is a private chat,
// and the callbacks used to mint callback ids and deep-link tokens.
type Hooks struct {
	ChatUser *ChatUser
	IsDM     bool
	RowLimit int // default 8

	// BindCallback mints a UUID and registers it with the button registry
	// (component E) for a '#'-prefixed target in a DM context.
	BindCallback func(ctx context.Context, target string) (callbackID string, err error)

	// MintDeepLink stores a (chatID, tail) payload under a short token
	// (component D.4) for a '#'-prefixed target rendered in a group.
	MintDeepLink func(ctx context.Context, chatID int64, tail string) (token string, err error)

	// DeepLinkURL builds the t.me-style URL a client opens for a token.
	DeepLinkURL func(token string) string

	// RulesDeepLink mints the token backing a `{rules}` filling's button.
	RulesDeepLink func(ctx context.Context, chatID int64) (token string, err error)
}

// Result is the (text, entities, buttons) triple a render produces.
type Result struct {
	Text             string
	Entities         []store.EntitySpan
	Buttons          [][]RenderedButton
	RequiredFillings []string // populated only when ChatUser is unbound
}

type renderer struct {
	ctx      context.Context
	hooks    Hooks
	text     strings.Builder
	offset   int // UTF-16 code units emitted so far
	entities []store.EntitySpan
	grid     [][]RenderedButton
	row      []RenderedButton
	required map[string]bool
	rowLimit int
}

// Render walks a parsed Template's body and produces a Result.
func Render(ctx context.Context, tmpl *Template, hooks Hooks) (*Result, error) {
	if hooks.RowLimit <= 0 {
		hooks.RowLimit = 8
	}
	r := &renderer{
		ctx:      ctx,
		hooks:    hooks,
		required: map[string]bool{},
		rowLimit: hooks.RowLimit,
	}
	if err := r.renderNodes(tmpl.Body); err != nil {
		return nil, err
	}
	r.flushRow()

	res := &Result{
		Text:     r.text.String(),
		Entities: r.entities,
		Buttons:  r.grid,
	}
	for name := range r.required {
		res.RequiredFillings = append(res.RequiredFillings, name)
	}
	return res, nil
}

func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

func (r *renderer) write(s string) {
	r.text.WriteString(s)
	r.offset += utf16Len(s)
}

func (r *renderer) renderNodes(nodes []Node) error {
	for _, n := range nodes {
		if err := r.renderNode(n); err != nil {
			return err
		}
	}
	return nil
}

func (r *renderer) renderNode(n Node) error {
	switch v := n.(type) {
	case Raw:
		r.write(v.Text)
		return nil

	case Filling:
		return r.renderFilling(v)

	case Pre:
		start := r.offset
		r.write(v.Code)
		r.entities = append(r.entities, store.EntitySpan{Offset: start, Length: r.offset - start, Kind: "pre", Language: v.Lang})
		return nil

	case Code:
		start := r.offset
		r.write(v.Text)
		r.entities = append(r.entities, store.EntitySpan{Offset: start, Length: r.offset - start, Kind: "code"})
		return nil

	case Bold:
		return r.renderSpan(v.Children, "bold", "")
	case Italic:
		return r.renderSpan(v.Children, "italic", "")
	case Underline:
		return r.renderSpan(v.Children, "underline", "")
	case Strike:
		return r.renderSpan(v.Children, "strikethrough", "")
	case Spoiler:
		return r.renderSpan(v.Children, "spoiler", "")
	case Link:
		return r.renderSpan(v.Children, "text_link", v.URL)

	case Button:
		return r.renderButton(v.Caption, v.Target, false)
	case NewlineButton:
		return r.renderButton(v.Caption, v.Target, true)

	default:
		return errors.Errorf("markup: unhandled node type %T", n)
	}
}

func (r *renderer) renderSpan(children []Node, kind, url string) error {
	start := r.offset
	if err := r.renderNodes(children); err != nil {
		return err
	}
	span := store.EntitySpan{Offset: start, Length: r.offset - start, Kind: kind}
	if kind == "text_link" {
		span.URL = url
	}
	r.entities = append(r.entities, span)
	return nil
}

func (r *renderer) renderFilling(f Filling) error {
	if !fillingNames[f.Name] {
		r.write("{" + f.Name + "}")
		return nil
	}
	if r.hooks.ChatUser == nil {
		r.required[f.Name] = true
		r.write("{" + f.Name + "}")
		return nil
	}

	if f.Name == "rules" {
		return r.renderRulesButton()
	}

	text, mention, _ := resolveFilling(f.Name, r.hooks.ChatUser)
	start := r.offset
	r.write(text)
	if mention {
		r.entities = append(r.entities, store.EntitySpan{
			Offset: start, Length: r.offset - start, Kind: "text_mention", UserID: r.hooks.ChatUser.UserID,
		})
	}
	return nil
}

func (r *renderer) renderRulesButton() error {
	if r.hooks.RulesDeepLink == nil {
		return nil
	}
	token, err := r.hooks.RulesDeepLink(r.ctx, r.hooks.ChatUser.ChatID)
	if err != nil {
		return errors.Wrap(err, "mint rules deep link")
	}
	url := token
	if r.hooks.DeepLinkURL != nil {
		url = r.hooks.DeepLinkURL(token)
	}
	r.appendButton(RenderedButton{Caption: "Rules", Kind: ButtonDeepLink, Data: url})
	return nil
}

func (r *renderer) renderButton(caption, target string, newline bool) error {
	if newline {
		r.flushRow()
	}

	var btn RenderedButton
	btn.Caption = caption

	switch {
	case strings.HasPrefix(target, "#"):
		tail := strings.TrimPrefix(target, "#")
		if r.hooks.IsDM {
			if r.hooks.BindCallback == nil {
				return errors.New("markup: callback button requires BindCallback hook")
			}
			id, err := r.hooks.BindCallback(r.ctx, tail)
			if err != nil {
				return errors.Wrap(err, "bind callback button")
			}
			btn.Kind = ButtonCallback
			btn.Data = id
		} else {
			if r.hooks.MintDeepLink == nil || r.hooks.ChatUser == nil {
				return errors.New("markup: deep-link button requires MintDeepLink hook and bound chat")
			}
			token, err := r.hooks.MintDeepLink(r.ctx, r.hooks.ChatUser.ChatID, tail)
			if err != nil {
				return errors.Wrap(err, "mint deep link button")
			}
			url := token
			if r.hooks.DeepLinkURL != nil {
				url = r.hooks.DeepLinkURL(token)
			}
			btn.Kind = ButtonDeepLink
			btn.Data = url
		}
	default:
		btn.Kind = ButtonURL
		btn.Data = target
	}

	r.appendButton(btn)
	return nil
}

func (r *renderer) appendButton(b RenderedButton) {
	r.row = append(r.row, b)
	if len(r.row) >= r.rowLimit {
		r.flushRow()
	}
}

func (r *renderer) flushRow() {
	if len(r.row) == 0 {
		return
	}
	r.grid = append(r.grid, r.row)
	r.row = nil
}

// String renders a debugging form of a Result: its text and the counts
// of its entities and button rows.
func (res *Result) String() string {
	return fmt.Sprintf("markup.Result{text=%q, entities=%d, rows=%d}", res.Text, len(res.Entities), len(res.Buttons))
}
