package command

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/comzer-gov/casbot/internal/discord"
)

const (
	messageDebugForbidden = "このコマンドを実行する権限がありません。"
	messageDebugFormat    = "行政システムのデバッグモードを **%s** に設定しました。"
	messageRolepostError  = "⚠️ 実行中にエラーが発生しました。"
)

func (r *Router) handleDebug(ev discord.SlashCommandEvent) {
	if !holdsAny(ev.UserRoleIDs, r.opt.MinisterRoleIDs) {
		r.reply(ev, discord.Message{Content: messageDebugForbidden, Ephemeral: true})
		return
	}
	on := strings.EqualFold(ev.Options["mode"], "on")
	r.debug.Set(on)
	state := "OFF"
	if on {
		state = "ON"
	}
	slog.Info("debug mode changed", "enabled", on, "user_id", ev.UserID)
	r.reply(ev, discord.Message{Content: fmt.Sprintf(messageDebugFormat, state), Ephemeral: true})
}

func (r *Router) handleRolepost(ev discord.SlashCommandEvent) {
	if !r.deferReply(ev, true) {
		return
	}
	if ev.GuildID == "" {
		r.editReply(ev, discord.Message{Content: messageRolepostError, Ephemeral: true})
		return
	}
	r.editReply(ev, r.rolepost.Toggle(ev.ChannelID, ev.UserID, ev.UserRoleIDs))
}

func (r *Router) handleDeleteRolepost(ev discord.SlashCommandEvent) {
	if !r.deferReply(ev, true) {
		return
	}
	messageID := strings.TrimSpace(ev.Options["message_id"])
	r.editReply(ev, discord.Message{Content: r.rolepost.DeletePost(ev.ChannelID, messageID, ev.UserRoleIDs), Ephemeral: true})
}
