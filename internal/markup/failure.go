package markup

import "context"

// RenderNoFail implements the body-mode rendering rule: a parse or
// render failure returns the raw text verbatim with no entities or
// buttons, rather than rejecting the update. Header-mode parsing
// (ParseHeader, used when users author commands) intentionally does not
// have a nofail variant: Parse's *ParseError is meant to reach the user.
func RenderNoFail(ctx context.Context, src string, hooks Hooks) *Result {
	tmpl, err := Parse(src, false)
	if err != nil {
		return &Result{Text: src}
	}
	res, err := Render(ctx, tmpl, hooks)
	if err != nil {
		return &Result{Text: src}
	}
	return res
}

// ParseHeader parses src in header mode, surfacing *ParseError with its
// span description on failure so the author sees what was wrong.
func ParseHeader(src string) (*Template, error) {
	return Parse(src, true)
}
