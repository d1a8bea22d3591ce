package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hrygo/sentrybot/internal/captcha"
	"github.com/hrygo/sentrybot/internal/identity"
	"github.com/hrygo/sentrybot/internal/markup"
	"github.com/hrygo/sentrybot/internal/moderation"
	"github.com/hrygo/sentrybot/internal/policy"
	"github.com/hrygo/sentrybot/internal/rules"
	"github.com/hrygo/sentrybot/store"
)

// Transport is the outbound boundary dispatch needs beyond what
// moderation.Transport already covers: sending a reply and deleting the
// triggering message, both used by the locks/blocklists/filters stages.
type Transport interface {
	moderation.Transport
	SendText(ctx context.Context, chatID int64, text string) error
	DeleteMessage(ctx context.Context, chatID, messageID int64) error
}

// CommandHandler reacts to one parsed command.
type CommandHandler func(ctx context.Context, dc *Context) error

// stage is one fan-out step. handled=true stops the pipeline (a stage
// short-circuited the update, e.g. a blocklist hit deleted the message).
type stage func(ctx context.Context, dc *Context) (handled bool, err error)

// Pipeline implements the fixed fan-out order every update runs through.
// One Pipeline is shared across every chat; RegisterCommand binds the
// core commands before serving traffic.
type Pipeline struct {
	identity   *identity.Cache
	store      *store.Store
	moderation *moderation.Executor
	transport  Transport
	captcha    *captcha.Service // optional: nil disables the join-challenge stages

	commands map[string]CommandHandler
}

// New builds a Pipeline wired to the identity cache, policy store,
// moderation executor, and transport adapter it fans updates out to.
func New(id *identity.Cache, s *store.Store, mod *moderation.Executor, t Transport) *Pipeline {
	return &Pipeline{
		identity:   id,
		store:      s,
		moderation: mod,
		transport:  t,
		commands:   make(map[string]CommandHandler),
	}
}

// RegisterCommand binds a handler for one command name (without the
// leading slash), e.g. "warn", "ban", "setlang".
func (p *Pipeline) RegisterCommand(name string, h CommandHandler) {
	p.commands[name] = h
}

// SetCaptcha enables the CAPTCHA-gated join flow. A Pipeline with no
// captcha service configured skips those stages entirely, since the
// challenge is an opt-in per-deployment feature, not a core invariant.
func (p *Pipeline) SetCaptcha(c *captcha.Service) {
	p.captcha = c
}

// Dispatch assembles a Context for one Update and runs it through every
// stage in order, stopping as soon as a stage reports the update handled.
func (p *Pipeline) Dispatch(ctx context.Context, u Update) error {
	dc := &Context{Update: u, Chat: u.Chat, Sender: u.Sender, Store: p.store}
	if u.Chat != nil {
		dialog, err := p.store.GetDialog(ctx, u.Chat.ID)
		if err != nil {
			return err
		}
		if dialog != nil {
			dc.Language = dialog.Language
		}
	}
	if cmd, ok := ParseCommand(u.Text, u.Entities); ok {
		dc.Command = cmd
	}

	stages := []stage{
		p.stageIdentity,
		p.stagePendingAction,
		p.stageCaptchaVerify,
		p.stageCaptchaChallenge,
		p.stageGreeting,
		p.stageLocks,
		p.stageBlocklists,
		p.stageFilters,
		p.stageCommand,
	}
	for _, s := range stages {
		handled, err := s(ctx, dc)
		if err != nil {
			return err
		}
		if handled {
			return nil
		}
	}
	return nil
}

// stageIdentity implements the first fan-out step: record every
// user/chat present in the update before anything else runs, so the
// ChatMember index exists before the next update for this pair is
// processed.
func (p *Pipeline) stageIdentity(ctx context.Context, dc *Context) (bool, error) {
	if p.identity == nil {
		return false, nil
	}
	err := p.identity.Record(ctx, identity.Observation{
		Chat:            dc.Update.Chat,
		Sender:          dc.Update.Sender,
		ReplyTargetUser: dc.Update.ReplyToSender,
		ForwardOrigin:   dc.Update.ForwardOrigin,
	})
	return false, err
}

// stagePendingAction applies any pending moderation Action for the
// sender before any further handler sees this update, preserving the
// synchronous per-update ordering guarantee.
func (p *Pipeline) stagePendingAction(ctx context.Context, dc *Context) (bool, error) {
	if dc.Chat == nil || dc.Sender == nil {
		return false, nil
	}
	return false, p.moderation.ApplyPending(ctx, dc.Chat.ID, dc.Sender.ID)
}

// stageCaptchaVerify checks an incoming text message against the
// sender's pending join challenge, if any. A correct reply lifts the
// join-time mute; a wrong one counts against the captcha's fixed attempt limit,
// escalating to a kick once exhausted. Messages from senders with no
// pending challenge fall through to the rest of the pipeline unchanged.
func (p *Pipeline) stageCaptchaVerify(ctx context.Context, dc *Context) (bool, error) {
	if p.captcha == nil || dc.Chat == nil || dc.Sender == nil || dc.Update.Text == "" {
		return false, nil
	}
	pending, err := p.captcha.Pending(ctx, dc.Chat.ID, dc.Sender.ID)
	if err != nil || !pending {
		return false, err
	}
	ok, exhausted, err := p.captcha.Verify(ctx, dc.Chat.ID, dc.Sender.ID, strings.TrimSpace(dc.Update.Text))
	if err != nil {
		return true, err
	}
	switch {
	case ok:
		if err := p.moderation.Unmute(ctx, 0, dc.Chat.ID, dc.Sender.ID); err != nil {
			return true, ignoreModerationNoOp(err)
		}
		return true, p.transport.SendText(ctx, dc.Chat.ID, "Verified, welcome!")
	case exhausted:
		return true, ignoreModerationNoOp(p.moderation.Kick(ctx, 0, dc.Chat.ID, dc.Sender.ID))
	default:
		return true, p.transport.SendText(ctx, dc.Chat.ID, "Incorrect, try again.")
	}
}

// stageCaptchaChallenge mutes a newly joined member down to text-only and
// issues a join challenge when the chat has CAPTCHA enabled. It never
// short-circuits the pipeline: the welcome message (stageGreeting) still
// sends alongside the challenge.
func (p *Pipeline) stageCaptchaChallenge(ctx context.Context, dc *Context) (bool, error) {
	if p.captcha == nil || !dc.Update.IsNewChatMember || dc.Chat == nil || dc.Update.NewMemberID == 0 {
		return false, nil
	}
	newMemberID := dc.Update.NewMemberID
	enabled, err := p.captcha.Enabled(ctx, dc.Chat.ID)
	if err != nil || !enabled {
		return false, err
	}
	textOnly := store.Permissions{CanSendMessages: true}
	if err := p.moderation.ChangePermissions(ctx, 0, dc.Chat.ID, newMemberID, textOnly, nil); err != nil {
		return false, ignoreModerationNoOp(err)
	}
	code, err := p.captcha.Challenge(ctx, dc.Chat.ID, newMemberID)
	if err != nil {
		return false, err
	}
	return false, p.transport.SendText(ctx, dc.Chat.ID,
		fmt.Sprintf("Reply with %s to unlock the chat.", code))
}

// stageGreeting sends the chat's configured welcome message when the
// update is a new-member service event, rendering it through the markup
// engine with a ChatUser bound to the joining member so {mention}-style
// fillings and markdown-like syntax resolve instead of reaching the chat
// verbatim. A render failure falls back to the raw stored text rather
// than dropping the welcome.
func (p *Pipeline) stageGreeting(ctx context.Context, dc *Context) (bool, error) {
	if !dc.Update.IsNewChatMember || dc.Chat == nil {
		return false, nil
	}
	w, err := p.store.GetWelcome(ctx, dc.Chat.ID)
	if err != nil {
		return false, err
	}
	if w == nil || !w.Enabled || w.WelcomeText == "" {
		return false, nil
	}
	res := markup.RenderNoFail(ctx, w.WelcomeText, markup.Hooks{ChatUser: dc.greetedUser()})
	return false, p.transport.SendText(ctx, dc.Chat.ID, res.Text)
}

// stageLocks evaluates the chat's configured locks: the message's
// features are checked against them, and the
// highest-severity triggered action is applied.
func (p *Pipeline) stageLocks(ctx context.Context, dc *Context) (bool, error) {
	if dc.Chat == nil || dc.Sender == nil {
		return false, nil
	}
	dialog, err := p.store.GetDialog(ctx, dc.Chat.ID)
	if err != nil {
		return false, err
	}
	defaultAction := store.ActionDelete
	if dialog != nil {
		defaultAction = dialog.ActionType
	}
	action, _, err := policy.EvaluateLocks(ctx, p.store, dc.Chat.ID, defaultAction, dc.messageFeatures())
	if err != nil || action == nil {
		return false, err
	}
	return p.applyAction(ctx, dc, *action, "")
}

// stageBlocklists implements blocklist matching: a matched trigger
// always short-circuits the update, since it names prohibited content,
// unless the row's optional CEL rule narrows it out for this message. The
// triggering message is deleted regardless of which action fires — a
// blocklist hit always removes the banned content, on top of whatever else
// the configured action does to the sender.
func (p *Pipeline) stageBlocklists(ctx context.Context, dc *Context) (bool, error) {
	if dc.Chat == nil || dc.Sender == nil || dc.Update.Text == "" {
		return false, nil
	}
	bl, err := p.store.MatchBlocklist(ctx, dc.Chat.ID, dc.Update.Text)
	if err != nil || bl == nil {
		return false, err
	}
	if bl.Rule != nil {
		r, err := rules.Compile(*bl.Rule)
		if err != nil {
			return false, err
		}
		applies, err := r.Eval(dc.ruleVars())
		if err != nil {
			return false, err
		}
		if !applies {
			return false, nil
		}
	}
	handled, err := p.applyAction(ctx, dc, bl.Action, bl.Reason)
	if err != nil || !handled {
		return handled, err
	}
	if bl.Action != store.ActionDelete {
		if err := p.transport.DeleteMessage(ctx, dc.Chat.ID, dc.Update.MessageID); err != nil {
			return true, err
		}
	}
	return true, nil
}

// stageFilters implements filter matching: a matched trigger sends its
// configured reply and short-circuits further handlers (a filter
// reply is not itself a moderation action).
func (p *Pipeline) stageFilters(ctx context.Context, dc *Context) (bool, error) {
	if dc.Chat == nil || dc.Update.Text == "" {
		return false, nil
	}
	f, err := p.store.MatchFilter(ctx, dc.Chat.ID, dc.Update.Text)
	if err != nil || f == nil {
		return false, err
	}
	if f.Text == "" {
		return true, nil
	}
	return true, p.transport.SendText(ctx, dc.Chat.ID, f.Text)
}

// stageCommand is the terminal stage: look up and invoke the handler
// bound to the parsed command's name, if any.
func (p *Pipeline) stageCommand(ctx context.Context, dc *Context) (bool, error) {
	if dc.Command == nil {
		return false, nil
	}
	h, ok := p.commands[dc.Command.Name]
	if !ok {
		return false, nil
	}
	return true, h(ctx, dc)
}

// applyAction executes one lock/blocklist escalation action against the
// sender, shared by stageLocks and stageBlocklists.
func (p *Pipeline) applyAction(ctx context.Context, dc *Context, action store.ActionType, reason string) (bool, error) {
	switch action {
	case store.ActionDelete:
		return true, p.transport.DeleteMessage(ctx, dc.Chat.ID, dc.Update.MessageID)
	case store.ActionMute:
		err := p.moderation.Mute(ctx, 0, dc.Chat.ID, dc.Sender.ID, nil)
		return true, ignoreModerationNoOp(err)
	case store.ActionBan:
		err := p.moderation.Ban(ctx, 0, dc.Chat.ID, dc.Sender.ID, nil)
		return true, ignoreModerationNoOp(err)
	case store.ActionShame:
		return true, p.transport.SendText(ctx, dc.Chat.ID, moderation.ShameTemplate(reason))
	case store.ActionWarn:
		dialog, err := p.store.GetDialog(ctx, dc.Chat.ID)
		if err != nil {
			return true, err
		}
		limit := 3
		var ttl *time.Duration
		if dialog != nil {
			if dialog.WarnLimit > 0 {
				limit = dialog.WarnLimit
			}
			ttl = dialog.WarnTime
		}
		_, err = p.moderation.Warn(ctx, dc.Chat.ID, dc.Sender.ID, reason, limit, ttl)
		return true, ignoreModerationNoOp(err)
	default:
		return false, nil
	}
}

// ignoreModerationNoOp swallows the "this was already a no-op" sentinel
// errors (approved users, admins, and the bot itself are all immune) so
// an automatic lock/blocklist escalation against an immune user doesn't
// terminate the task — it just silently does nothing further.
func ignoreModerationNoOp(err error) error {
	switch err {
	case moderation.ErrApproved, moderation.ErrTargetIsAdmin, moderation.ErrCannotActOnBot, moderation.ErrSelfMute:
		return nil
	default:
		return err
	}
}
