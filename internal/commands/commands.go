// Package commands wires the moderation executor, federation service and
// policy store to the dispatcher's command table: each command reduces to
// parse args, update the cached policy row, consult policy on the next
// incoming update. This package is that integration layer, built the same
// way the command table
// names it, so the engine underneath it is exercised end to end.
package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hrygo/sentrybot/internal/captcha"
	"github.com/hrygo/sentrybot/internal/dispatch"
	"github.com/hrygo/sentrybot/internal/federation"
	"github.com/hrygo/sentrybot/internal/identity"
	"github.com/hrygo/sentrybot/internal/moderation"
	"github.com/hrygo/sentrybot/internal/policy"
	"github.com/hrygo/sentrybot/store"
)

// Registry holds every collaborator a command handler needs and exposes
// them as dispatch.CommandHandler closures.
type Registry struct {
	store     *store.Store
	identity  *identity.Cache
	mod       *moderation.Executor
	fed       *federation.Service
	transport dispatch.Transport
	captcha   *captcha.Service // optional; nil makes /enablecaptcha and /disablecaptcha no-ops

	sudo    map[int64]bool
	support map[int64]bool
}

// SetCaptcha wires the join-challenge toggle commands to a captcha
// service, mirroring dispatch.Pipeline's own SetCaptcha.
func (r *Registry) SetCaptcha(c *captcha.Service) {
	r.captcha = c
}

// New builds a command Registry. sudoUsers/supportUsers mirror the
// admin.sudo_users / admin.support_users config keys: members of either
// list may act in any chat without being that chat's admin.
func New(s *store.Store, id *identity.Cache, mod *moderation.Executor, fed *federation.Service, t dispatch.Transport, sudoUsers, supportUsers []int64) *Registry {
	return &Registry{
		store:     s,
		identity:  id,
		mod:       mod,
		fed:       fed,
		transport: t,
		sudo:      toSet(sudoUsers),
		support:   toSet(supportUsers),
	}
}

func toSet(ids []int64) map[int64]bool {
	m := make(map[int64]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

// RegisterAll binds every handler this package implements onto p, using
// the documented command names.
func (r *Registry) RegisterAll(p *dispatch.Pipeline) {
	p.RegisterCommand("warn", r.handleWarn)
	p.RegisterCommand("unwarn", r.handleUnwarn)
	p.RegisterCommand("ban", r.handleBan)
	p.RegisterCommand("unban", r.handleUnban)
	p.RegisterCommand("mute", r.handleMute)
	p.RegisterCommand("unmute", r.handleUnmute)
	p.RegisterCommand("kick", r.handleKick)
	p.RegisterCommand("setlang", r.handleSetLang)
	p.RegisterCommand("lock", r.handleLock)
	p.RegisterCommand("unlock", r.handleUnlock)
	p.RegisterCommand("locks", r.handleLocks)
	p.RegisterCommand("available", r.handleAvailable)
	p.RegisterCommand("enablecaptcha", r.handleEnableCaptcha)
	p.RegisterCommand("disablecaptcha", r.handleDisableCaptcha)
	p.RegisterCommand("addblocklist", r.handleAddBlocklist)
	p.RegisterCommand("rmblocklist", r.handleRmBlocklist)
	p.RegisterCommand("rmallblocklists", r.handleRmAllBlocklists)
	p.RegisterCommand("setwelcome", r.handleSetWelcome)
	p.RegisterCommand("resetwelcome", r.handleResetWelcome)
	p.RegisterCommand("report", r.handleReport)
	p.RegisterCommand("newfed", r.handleNewFed)
	p.RegisterCommand("joinfed", r.handleJoinFed)
	p.RegisterCommand("subfed", r.handleSubFed)
	p.RegisterCommand("myfeds", r.handleMyFeds)
	p.RegisterCommand("fban", r.handleFBan)
	p.RegisterCommand("unfban", r.handleUnFBan)
}

func (r *Registry) reply(ctx context.Context, dc *dispatch.Context, text string) error {
	if dc.Chat == nil {
		return nil
	}
	return r.transport.SendText(ctx, dc.Chat.ID, text)
}

// requireAdmin reports whether the sender may run an admin-gated command
// in this chat: a sudo/support user, or an admin of the chat itself.
func (r *Registry) requireAdmin(ctx context.Context, dc *dispatch.Context) (bool, error) {
	if dc.Chat == nil || dc.Sender == nil {
		return false, nil
	}
	if r.sudo[dc.Sender.ID] || r.support[dc.Sender.ID] {
		return true, nil
	}
	return r.transport.IsChatAdmin(ctx, dc.Chat.ID, dc.Sender.ID)
}

func (r *Registry) resolveHandle(ctx context.Context, handle string) (int64, error) {
	u, err := r.identity.GetUserByHandle(ctx, handle)
	if err != nil {
		return 0, err
	}
	return u.ID, nil
}

// actionMessageFrom projects the parsed command onto the shape
// moderation.ResolveTarget consumes.
func actionMessageFrom(dc *dispatch.Context) moderation.ActionMessage {
	am := moderation.ActionMessage{}
	if dc.Update.ReplyToSender != nil {
		am.ReplyToSenderID = dc.Update.ReplyToSender.ID
	}
	if dc.Command != nil {
		am.Args = dc.Command.Args
	}
	return am
}

// reasonAndDuration splits a command's remaining args into an optional
// leading duration spec and a free-text reason, per the `<target>
// [duration] [reason...]` shape every timed moderation command shares.
func reasonAndDuration(rest []moderation.Arg) (reason string, dur *time.Duration) {
	if len(rest) == 0 {
		return "", nil
	}
	if d, err := moderation.ParseDuration(rest[0].Text); err == nil {
		return joinArgs(rest[1:]), &d
	}
	return joinArgs(rest), nil
}

func joinArgs(args []moderation.Arg) string {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, a.Text)
	}
	return strings.Join(parts, " ")
}

func targetErrorText(err error) string {
	switch err {
	case moderation.ErrMissingTarget:
		return "reply to a user or name one (by @handle, text-mention, or numeric id)"
	case moderation.ErrUserNotFound:
		return "could not resolve that user"
	default:
		return err.Error()
	}
}

// guardErrorText renders the moderation no-op sentinels as the
// user-visible reply those commands return instead of silently doing
// nothing, the way dispatch's lock/blocklist escalation path does.
func guardErrorText(err error) (string, bool) {
	switch err {
	case moderation.ErrApproved:
		return "that user is approved and immune to moderation", true
	case moderation.ErrTargetIsAdmin:
		return "cannot act on a chat admin", true
	case moderation.ErrCannotActOnBot:
		return "I can't act on myself", true
	case moderation.ErrSelfMute:
		return "you can't target yourself", true
	default:
		return "", false
	}
}

func (r *Registry) handleWarn(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may warn members")
	}
	target, rest, err := moderation.ResolveTarget(ctx, actionMessageFrom(dc), r.resolveHandle)
	if err != nil {
		return r.reply(ctx, dc, targetErrorText(err))
	}
	reason, _ := reasonAndDuration(rest)

	dialog, err := dc.Store.GetDialog(ctx, dc.Chat.ID)
	if err != nil {
		return err
	}
	limit := 3
	var ttl *time.Duration
	if dialog != nil {
		if dialog.WarnLimit > 0 {
			limit = dialog.WarnLimit
		}
		ttl = dialog.WarnTime
	}

	result, err := r.mod.Warn(ctx, dc.Chat.ID, target, reason, limit, ttl)
	if err != nil {
		if text, ok := guardErrorText(err); ok {
			return r.reply(ctx, dc, text)
		}
		return err
	}
	if result.Escalated {
		return r.reply(ctx, dc, fmt.Sprintf("warned (%d/%d) — %s applied", result.Count, result.Limit, result.Action))
	}
	return r.reply(ctx, dc, fmt.Sprintf("warned (%d/%d)", result.Count, result.Limit))
}

// handleUnwarn removes the target's single most recent warn, the way the
// "remove warn" button removes one specific row (executor.RemoveWarn); a
// bare command names no warn id, so it drops the latest instead.
func (r *Registry) handleUnwarn(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may remove warns")
	}
	target, _, err := moderation.ResolveTarget(ctx, actionMessageFrom(dc), r.resolveHandle)
	if err != nil {
		return r.reply(ctx, dc, targetErrorText(err))
	}
	warns, err := dc.Store.ListWarns(ctx, target, dc.Chat.ID)
	if err != nil {
		return err
	}
	if len(warns) == 0 {
		return r.reply(ctx, dc, "that user has no active warns")
	}
	latest := warns[len(warns)-1]
	if err := r.mod.RemoveWarn(ctx, target, dc.Chat.ID, latest.ID); err != nil {
		return err
	}
	return r.reply(ctx, dc, "warn removed")
}

func (r *Registry) handleBan(ctx context.Context, dc *dispatch.Context) error {
	return r.timedAction(ctx, dc, "ban", r.mod.Ban)
}

func (r *Registry) handleMute(ctx context.Context, dc *dispatch.Context) error {
	return r.timedAction(ctx, dc, "mute", r.mod.Mute)
}

// timedAction shares the resolve-target/parse-duration/apply/reply recipe
// between ban and mute, the two moderation primitives with the same
// `<target> [duration] [reason]` shape.
func (r *Registry) timedAction(ctx context.Context, dc *dispatch.Context, verb string,
	apply func(ctx context.Context, actorID, chatID, targetID int64, dur *time.Duration) error) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may "+verb)
	}
	target, rest, err := moderation.ResolveTarget(ctx, actionMessageFrom(dc), r.resolveHandle)
	if err != nil {
		return r.reply(ctx, dc, targetErrorText(err))
	}
	_, dur := reasonAndDuration(rest)

	var actorID int64
	if dc.Sender != nil {
		actorID = dc.Sender.ID
	}
	if err := apply(ctx, actorID, dc.Chat.ID, target, dur); err != nil {
		if text, ok := guardErrorText(err); ok {
			return r.reply(ctx, dc, text)
		}
		return err
	}
	if dur != nil {
		return r.reply(ctx, dc, fmt.Sprintf("%sd for %s", verb, dur.String()))
	}
	return r.reply(ctx, dc, verb+"ned")
}

func (r *Registry) handleUnban(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may unban")
	}
	target, _, err := moderation.ResolveTarget(ctx, actionMessageFrom(dc), r.resolveHandle)
	if err != nil {
		return r.reply(ctx, dc, targetErrorText(err))
	}
	if err := r.mod.Unban(ctx, dc.Chat.ID, target); err != nil {
		return err
	}
	return r.reply(ctx, dc, "unbanned")
}

func (r *Registry) handleUnmute(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may unmute")
	}
	target, _, err := moderation.ResolveTarget(ctx, actionMessageFrom(dc), r.resolveHandle)
	if err != nil {
		return r.reply(ctx, dc, targetErrorText(err))
	}
	var actorID int64
	if dc.Sender != nil {
		actorID = dc.Sender.ID
	}
	if err := r.mod.Unmute(ctx, actorID, dc.Chat.ID, target); err != nil {
		if text, ok := guardErrorText(err); ok {
			return r.reply(ctx, dc, text)
		}
		return err
	}
	return r.reply(ctx, dc, "unmuted")
}

func (r *Registry) handleKick(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may kick")
	}
	target, _, err := moderation.ResolveTarget(ctx, actionMessageFrom(dc), r.resolveHandle)
	if err != nil {
		return r.reply(ctx, dc, targetErrorText(err))
	}
	var actorID int64
	if dc.Sender != nil {
		actorID = dc.Sender.ID
	}
	if err := r.mod.Kick(ctx, actorID, dc.Chat.ID, target); err != nil {
		if text, ok := guardErrorText(err); ok {
			return r.reply(ctx, dc, text)
		}
		return err
	}
	return r.reply(ctx, dc, "kicked")
}

func (r *Registry) handleSetLang(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may change the language")
	}
	if dc.Command == nil || len(dc.Command.Args) == 0 {
		return r.reply(ctx, dc, "usage: /setlang <code>")
	}
	lang := dc.Command.Args[0].Text
	dialog, err := dc.Store.GetDialog(ctx, dc.Chat.ID)
	if err != nil {
		return err
	}
	if dialog == nil {
		dialog = &store.Dialog{ChatID: dc.Chat.ID, ActionType: store.ActionMute}
	}
	dialog.Language = lang
	if err := dc.Store.UpsertDialog(ctx, dialog); err != nil {
		return err
	}
	return r.reply(ctx, dc, "language set to "+lang)
}

// lockByName resolves a lock's display name (store.LockType.String(),
// case-insensitive) back to its LockType, the inverse of
// policy.ListLockStatus's Name field.
func lockByName(name string) (store.LockType, bool) {
	name = strings.ToLower(name)
	for _, lt := range store.AllLockTypes {
		if strings.ToLower(lt.String()) == name {
			return lt, true
		}
	}
	return 0, false
}

func (r *Registry) handleLock(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may configure locks")
	}
	if dc.Command == nil || len(dc.Command.Args) == 0 {
		return r.reply(ctx, dc, "usage: /lock <type> [action]")
	}
	lt, ok := lockByName(dc.Command.Args[0].Text)
	if !ok {
		return r.reply(ctx, dc, "unknown lock type "+dc.Command.Args[0].Text)
	}
	lock := &store.Lock{ChatID: dc.Chat.ID, LockType: lt}
	if len(dc.Command.Args) > 1 {
		action := store.ActionType(strings.ToLower(dc.Command.Args[1].Text))
		lock.LockAction = &action
	}
	if err := dc.Store.UpsertLock(ctx, lock); err != nil {
		return err
	}
	return r.reply(ctx, dc, lt.String()+" locked")
}

func (r *Registry) handleUnlock(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may configure locks")
	}
	if dc.Command == nil || len(dc.Command.Args) == 0 {
		return r.reply(ctx, dc, "usage: /unlock <type>")
	}
	lt, ok := lockByName(dc.Command.Args[0].Text)
	if !ok {
		return r.reply(ctx, dc, "unknown lock type "+dc.Command.Args[0].Text)
	}
	if err := dc.Store.DeleteLock(ctx, dc.Chat.ID, lt); err != nil {
		return err
	}
	return r.reply(ctx, dc, lt.String()+" unlocked")
}

func (r *Registry) handleLocks(ctx context.Context, dc *dispatch.Context) error {
	statuses, err := policy.ListLockStatus(ctx, dc.Store, dc.Chat.ID)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("Configured locks:\n")
	any := false
	for _, st := range statuses {
		if !st.Locked {
			continue
		}
		any = true
		action := "chat default"
		if st.Action != nil {
			action = string(*st.Action)
		}
		fmt.Fprintf(&b, "%s: %s\n", st.Name, action)
	}
	if !any {
		b.WriteString("(none)")
	}
	return r.reply(ctx, dc, b.String())
}

func (r *Registry) handleAvailable(ctx context.Context, dc *dispatch.Context) error {
	var b strings.Builder
	b.WriteString("Available locks:\n")
	for _, lt := range store.AllLockTypes {
		fmt.Fprintf(&b, "%s\n", lt.String())
	}
	return r.reply(ctx, dc, b.String())
}

func (r *Registry) handleEnableCaptcha(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may configure the join challenge")
	}
	if r.captcha == nil {
		return r.reply(ctx, dc, "the join challenge isn't configured on this deployment")
	}
	if err := r.captcha.Enable(ctx, dc.Chat.ID); err != nil {
		return err
	}
	return r.reply(ctx, dc, "enabled the join challenge")
}

func (r *Registry) handleDisableCaptcha(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may configure the join challenge")
	}
	if r.captcha == nil {
		return r.reply(ctx, dc, "the join challenge isn't configured on this deployment")
	}
	if err := r.captcha.Disable(ctx, dc.Chat.ID); err != nil {
		return err
	}
	return r.reply(ctx, dc, "disabled the join challenge")
}

func (r *Registry) handleAddBlocklist(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may manage blocklists")
	}
	if dc.Command == nil || len(dc.Command.Args) == 0 {
		return r.reply(ctx, dc, "usage: /addblocklist <trigger> [trigger...]")
	}
	triggers := make([]string, 0, len(dc.Command.Args))
	for _, a := range dc.Command.Args {
		triggers = append(triggers, a.Text)
	}
	bl := &store.Blocklist{ChatID: dc.Chat.ID, Action: store.ActionDelete, Triggers: triggers}
	id, err := dc.Store.CreateBlocklist(ctx, bl)
	if err != nil {
		return err
	}
	return r.reply(ctx, dc, fmt.Sprintf("blocklist #%d added", id))
}

func (r *Registry) handleRmBlocklist(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may manage blocklists")
	}
	if dc.Command == nil || len(dc.Command.Args) == 0 {
		return r.reply(ctx, dc, "usage: /rmblocklist <id>")
	}
	id, perr := strconv.ParseInt(dc.Command.Args[0].Text, 10, 64)
	if perr != nil {
		return r.reply(ctx, dc, "id must be a number")
	}
	if err := dc.Store.DeleteBlocklist(ctx, dc.Chat.ID, id); err != nil {
		return err
	}
	return r.reply(ctx, dc, "blocklist removed")
}

func (r *Registry) handleRmAllBlocklists(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may manage blocklists")
	}
	if err := dc.Store.Driver().DeleteAllBlocklists(ctx, dc.Chat.ID); err != nil {
		return err
	}
	return r.reply(ctx, dc, "all blocklists removed")
}

func (r *Registry) handleSetWelcome(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may set the welcome message")
	}
	text := joinArgs(dc.Command.Args)
	w, err := dc.Store.GetWelcome(ctx, dc.Chat.ID)
	if err != nil {
		return err
	}
	if w == nil {
		w = &store.Welcome{ChatID: dc.Chat.ID}
	}
	w.Enabled = true
	w.WelcomeText = text
	if err := dc.Store.UpsertWelcome(ctx, w); err != nil {
		return err
	}
	return r.reply(ctx, dc, "welcome message set")
}

func (r *Registry) handleResetWelcome(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may reset the welcome message")
	}
	if err := dc.Store.UpsertWelcome(ctx, &store.Welcome{ChatID: dc.Chat.ID}); err != nil {
		return err
	}
	return r.reply(ctx, dc, "welcome message reset")
}

func (r *Registry) handleReport(ctx context.Context, dc *dispatch.Context) error {
	if dc.Update.ReplyToSender == nil {
		return r.reply(ctx, dc, "reply to the message you want to report")
	}
	return r.reply(ctx, dc, fmt.Sprintf("reported %s to the chat's admins", dc.Update.ReplyToSender.Handle))
}

func (r *Registry) handleNewFed(ctx context.Context, dc *dispatch.Context) error {
	if dc.Sender == nil {
		return nil
	}
	name := joinArgs(dc.Command.Args)
	fed, err := r.fed.Create(ctx, dc.Sender.ID, name)
	if err != nil {
		return err
	}
	return r.reply(ctx, dc, "federation created: "+fed.ID.String())
}

func (r *Registry) handleJoinFed(ctx context.Context, dc *dispatch.Context) error {
	ok, err := r.requireAdmin(ctx, dc)
	if err != nil {
		return err
	}
	if !ok {
		return r.reply(ctx, dc, "only chat admins may join a federation")
	}
	fedID, err := parseFedArg(dc)
	if err != nil {
		return r.reply(ctx, dc, err.Error())
	}
	if err := r.fed.JoinChat(ctx, dc.Chat.ID, fedID); err != nil {
		return err
	}
	return r.reply(ctx, dc, "joined federation")
}

func (r *Registry) handleSubFed(ctx context.Context, dc *dispatch.Context) error {
	if dc.Command == nil || len(dc.Command.Args) < 2 {
		return r.reply(ctx, dc, "usage: /subfed <parent> <child>")
	}
	parent, err := uuid.Parse(dc.Command.Args[0].Text)
	if err != nil {
		return r.reply(ctx, dc, "invalid federation id")
	}
	child, err := uuid.Parse(dc.Command.Args[1].Text)
	if err != nil {
		return r.reply(ctx, dc, "invalid federation id")
	}
	if err := r.fed.Subscribe(ctx, parent, child); err != nil {
		return err
	}
	return r.reply(ctx, dc, "subscribed")
}

func (r *Registry) handleMyFeds(ctx context.Context, dc *dispatch.Context) error {
	if dc.Sender == nil {
		return nil
	}
	feds, err := dc.Store.Driver().ListFederationsOwnedBy(ctx, dc.Sender.ID)
	if err != nil {
		return err
	}
	var b strings.Builder
	b.WriteString("Your federations:\n")
	for _, f := range feds {
		fmt.Fprintf(&b, "%s (%s)\n", f.Name, f.ID.String())
	}
	return r.reply(ctx, dc, b.String())
}

func (r *Registry) handleFBan(ctx context.Context, dc *dispatch.Context) error {
	if dc.Sender == nil || dc.Command == nil || len(dc.Command.Args) == 0 {
		return r.reply(ctx, dc, "usage: /fban <fed_id> <user>")
	}
	fedID, err := uuid.Parse(dc.Command.Args[0].Text)
	if err != nil {
		return r.reply(ctx, dc, "invalid federation id")
	}
	rest := dc.Command.Args[1:]
	am := moderation.ActionMessage{Args: rest}
	if dc.Update.ReplyToSender != nil {
		am.ReplyToSenderID = dc.Update.ReplyToSender.ID
	}
	target, reasonArgs, err := moderation.ResolveTarget(ctx, am, r.resolveHandle)
	if err != nil {
		return r.reply(ctx, dc, targetErrorText(err))
	}
	targetUser, err := r.identity.GetUser(ctx, target)
	if err != nil {
		return err
	}
	firstName, lastName := "", ""
	if targetUser != nil {
		firstName, lastName = targetUser.FirstName, targetUser.LastName
	}
	reason := joinArgs(reasonArgs)
	if err := r.fed.FBan(ctx, fedID, dc.Sender.ID, target, firstName, lastName, reason); err != nil {
		return err
	}
	return r.reply(ctx, dc, "federation ban applied")
}

func (r *Registry) handleUnFBan(ctx context.Context, dc *dispatch.Context) error {
	if dc.Sender == nil || dc.Command == nil || len(dc.Command.Args) == 0 {
		return r.reply(ctx, dc, "usage: /unfban <fed_id> <user>")
	}
	fedID, err := uuid.Parse(dc.Command.Args[0].Text)
	if err != nil {
		return r.reply(ctx, dc, "invalid federation id")
	}
	am := moderation.ActionMessage{Args: dc.Command.Args[1:]}
	if dc.Update.ReplyToSender != nil {
		am.ReplyToSenderID = dc.Update.ReplyToSender.ID
	}
	target, _, err := moderation.ResolveTarget(ctx, am, r.resolveHandle)
	if err != nil {
		return r.reply(ctx, dc, targetErrorText(err))
	}
	if err := r.fed.Unfban(ctx, fedID, dc.Sender.ID, target); err != nil {
		return err
	}
	return r.reply(ctx, dc, "federation ban lifted")
}

func parseFedArg(dc *dispatch.Context) (uuid.UUID, error) {
	if dc.Command == nil || len(dc.Command.Args) == 0 {
		return uuid.UUID{}, errUsage("usage: /joinfed <fed_id>")
	}
	return uuid.Parse(dc.Command.Args[0].Text)
}

type errUsage string

func (e errUsage) Error() string { return string(e) }
