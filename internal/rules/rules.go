// Package rules implements optional CEL override expressions on Lock and
// Blocklist rows: a chat admin may attach an expression like
// `sender.is_premium && message.has_url` to a lock, narrowing when it
// fires beyond its built-in predicate. Grounded on the `cel.NewEnv`/
// `env.Compile` usage for validating a username filter expression in
// server/router/api/v1/user_service_crud.go.
package rules

import (
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"
)

var env *cel.Env

func init() {
	var err error
	env, err = cel.NewEnv(
		cel.Variable("sender", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("message", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		panic(errors.Wrap(err, "rules: building CEL environment"))
	}
}

// Vars is the variable set exposed to a compiled rule as `sender.*` and
// `message.*`, mirroring internal/policy's MessageFeatures predicate list
// one field at a time (kept as a distinct type, not an alias, so this
// package stays a generic expression evaluator with no import of policy).
type Vars struct {
	IsPremiumSender bool
	HasURL          bool
	HasCode         bool
	HasPhoto        bool
	HasVideo        bool
	IsAnonAdmin     bool
	IsBotCommand    bool
	IsForwarded     bool
	HasSticker      bool
}

func (v Vars) activation() map[string]interface{} {
	return map[string]interface{}{
		"sender": map[string]interface{}{
			"is_premium": v.IsPremiumSender,
		},
		"message": map[string]interface{}{
			"has_url":        v.HasURL,
			"has_code":       v.HasCode,
			"has_photo":      v.HasPhoto,
			"has_video":      v.HasVideo,
			"is_anon_admin":  v.IsAnonAdmin,
			"is_bot_command": v.IsBotCommand,
			"is_forwarded":   v.IsForwarded,
			"has_sticker":    v.HasSticker,
		},
	}
}

// Rule is one compiled CEL boolean expression.
type Rule struct {
	src string
	prg cel.Program
}

type cacheEntry struct {
	rule *Rule
	err  error
}

var compiled sync.Map // source text -> cacheEntry

// Compile parses and type-checks src, caching the result by source text:
// the same Lock/Blocklist row's expression is re-evaluated on every
// matching message, so compiling it once per process is worth the
// map lookup.
func Compile(src string) (*Rule, error) {
	if v, ok := compiled.Load(src); ok {
		e := v.(cacheEntry)
		return e.rule, e.err
	}
	rule, err := compileNew(src)
	compiled.Store(src, cacheEntry{rule: rule, err: err})
	return rule, err
}

func compileNew(src string) (*Rule, error) {
	ast, issues := env.Compile(src)
	if issues != nil && issues.Err() != nil {
		return nil, errors.Wrapf(issues.Err(), "invalid rule expression %q", src)
	}
	if ast.OutputType().String() != "bool" {
		return nil, errors.Errorf("rule expression %q must evaluate to bool, got %s", src, ast.OutputType())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "compiling rule expression %q", src)
	}
	return &Rule{src: src, prg: prg}, nil
}

// Eval runs the rule against vars, returning its boolean result.
func (r *Rule) Eval(vars Vars) (bool, error) {
	out, _, err := r.prg.Eval(vars.activation())
	if err != nil {
		return false, errors.Wrapf(err, "evaluating rule %q", r.src)
	}
	b, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("rule %q did not return a boolean", r.src)
	}
	return b, nil
}
