package command

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/comzer-gov/casbot/internal/blacklist"
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/comzer-gov/casbot/internal/registry"
)

const (
	commandAddCountry     = "add_country"
	commandRemoveCountry  = "remove_country"
	commandAddPlayer      = "add_player"
	commandRemovePlayer   = "remove_player"
	commandListBlacklist  = "list_blacklist"
	commandDebug          = "debug"
	commandStatus         = "status"
	commandInfo           = "info"
	commandRolepost       = "rolepost"
	commandDeleteRolepost = "delete_rolepost"
)

const (
	commandTimeout = 30 * time.Second
	probeTimeout   = 10 * time.Second
)

const messageUnexpectedError = "エラーが発生しました。"

// BlacklistAdmin is the write side of the blacklist used by the admin commands.
type BlacklistAdmin interface {
	Add(ctx context.Context, category blacklist.Category, value, reason string) (blacklist.Result, error)
	Remove(ctx context.Context, category blacklist.Category, value string) (blacklist.Result, error)
	ListActive(ctx context.Context, category blacklist.Category) ([]blacklist.Entry, error)
}

type RolePoster interface {
	Toggle(channelID, userID string, roleIDs []string) discord.Message
	DeletePost(channelID, messageID string, executorRoleIDs []string) string
}

// Probe is one line of the /status self-check.
type Probe struct {
	Label string
	Check func(ctx context.Context) error
}

type Options struct {
	MinisterRoleIDs []string
	DiplomatRoleIDs []string
	CitizenRoleIDs  []string
	Location        *time.Location
}

type Router struct {
	opt       Options
	debug     *config.DebugSwitch
	blacklist BlacklistAdmin
	directory registry.Directory
	rolepost  RolePoster
	probes    []Probe
	now       func() time.Time

	handlers map[string]func(discord.SlashCommandEvent)
}

func NewRouter(opt Options, debugSwitch *config.DebugSwitch, bl BlacklistAdmin, dir registry.Directory, rp RolePoster, probes []Probe) *Router {
	if opt.Location == nil {
		opt.Location = time.UTC
	}
	r := &Router{
		opt:       opt,
		debug:     debugSwitch,
		blacklist: bl,
		directory: dir,
		rolepost:  rp,
		probes:    probes,
		now:       time.Now,
	}
	r.handlers = map[string]func(discord.SlashCommandEvent){
		commandAddCountry:     r.requireAdmin(r.addEntry(blacklist.CategoryCountry, "name")),
		commandRemoveCountry:  r.requireAdmin(r.removeEntry(blacklist.CategoryCountry, "name")),
		commandAddPlayer:      r.requireAdmin(r.addEntry(blacklist.CategoryPlayer, "mcid")),
		commandRemovePlayer:   r.requireAdmin(r.removeEntry(blacklist.CategoryPlayer, "mcid")),
		commandListBlacklist:  r.requireAdmin(r.listBlacklist),
		commandDebug:          r.handleDebug,
		commandStatus:         r.handleStatus,
		commandInfo:           r.handleInfo,
		commandRolepost:       r.handleRolepost,
		commandDeleteRolepost: r.handleDeleteRolepost,
	}
	return r
}

// HandleSlashCommand dispatches one slash command. Unknown commands are ignored.
func (r *Router) HandleSlashCommand(ev discord.SlashCommandEvent) {
	handler, ok := r.handlers[ev.CommandName]
	if !ok {
		return
	}
	defer r.recoverPanic(ev)
	slog.Info("slash command", "command", ev.CommandName, "user_id", ev.UserID, "channel_id", ev.ChannelID)
	handler(ev)
}

func (r *Router) recoverPanic(ev discord.SlashCommandEvent) {
	rec := recover()
	if rec == nil {
		return
	}
	slog.Error("slash command panicked", "command", ev.CommandName, "panic", fmt.Sprint(rec), "stack", string(debug.Stack()))
	msg := discord.Message{Content: messageUnexpectedError, Ephemeral: true}
	var err error
	if ev.Interaction.Responded() {
		err = ev.Interaction.EditReply(msg)
	} else {
		err = ev.Interaction.Reply(msg)
	}
	if err != nil {
		slog.Error("failed to report slash command error", "error", err, "command", ev.CommandName)
	}
}

func (r *Router) reply(ev discord.SlashCommandEvent, msg discord.Message) {
	if err := ev.Interaction.Reply(msg); err != nil {
		slog.Error("failed to reply slash command", "error", err, "command", ev.CommandName)
	}
}

func (r *Router) editReply(ev discord.SlashCommandEvent, msg discord.Message) {
	if err := ev.Interaction.EditReply(msg); err != nil {
		slog.Error("failed to edit slash command reply", "error", err, "command", ev.CommandName)
	}
}

// deferReply acknowledges the command; false means the interaction is already gone.
func (r *Router) deferReply(ev discord.SlashCommandEvent, ephemeral bool) bool {
	if err := ev.Interaction.Defer(ephemeral); err != nil {
		slog.Error("failed to defer slash command", "error", err, "command", ev.CommandName)
		return false
	}
	return true
}

func holdsAny(roleIDs []string, allowed ...[]string) bool {
	for _, group := range allowed {
		for _, rid := range group {
			if slices.Contains(roleIDs, rid) {
				return true
			}
		}
	}
	return false
}

// Definitions lists every slash command the router answers.
func Definitions() []discord.SlashCommandDefinition {
	return []discord.SlashCommandDefinition{
		{Name: commandDeleteRolepost, Description: "役職発言（Bot発言）の削除", Options: []discord.SlashCommandOption{
			{Name: "message_id", Description: "削除するメッセージのID", Required: true},
		}},
		{Name: commandAddCountry, Description: "ブラックリスト(国)に追加", Options: []discord.SlashCommandOption{
			{Name: "name", Description: "国名", Required: true},
		}},
		{Name: commandRemoveCountry, Description: "ブラックリスト(国)から削除", Options: []discord.SlashCommandOption{
			{Name: "name", Description: "国名", Required: true},
		}},
		{Name: commandAddPlayer, Description: "ブラックリスト(プレイヤー)に追加", Options: []discord.SlashCommandOption{
			{Name: "mcid", Description: "MCID", Required: true},
		}},
		{Name: commandRemovePlayer, Description: "ブラックリスト(プレイヤー)から削除", Options: []discord.SlashCommandOption{
			{Name: "mcid", Description: "MCID", Required: true},
		}},
		{Name: commandListBlacklist, Description: "ブラックリストの一覧を表示"},
		{Name: commandDebug, Description: "デバッグモードのオン・オフを切り替えます", Options: []discord.SlashCommandOption{
			{Name: "mode", Description: "ONまたはOFFを選択", Required: true, Choices: []discord.SlashCommandChoice{
				{Name: "ON", Value: "on"},
				{Name: "OFF", Value: "off"},
			}},
		}},
		{Name: commandStatus, Description: "BOTの最終自己診断時刻と連携状態を表示"},
		{Name: commandInfo, Description: "実行者の国民情報を表示します（国民のみ実行可）"},
		{Name: commandRolepost, Description: "役職発言モードの ON / OFF を切り替えます（トグル式）"},
	}
}
