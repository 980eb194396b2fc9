package command

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/comzer-gov/casbot/internal/blacklist"
	"github.com/comzer-gov/casbot/internal/discord"
)

const (
	messageAdminForbidden = "君はステージが低い。君のコマンドを受け付けると君のカルマが私の中に入って来て私が苦しくなる。(権限エラー)"
	messageBlacklistError = "⚠️ ブラックリストの更新に失敗しました。"

	blacklistListTitle = "ブラックリスト一覧"
	blacklistListColor = 0x2c3e50
	blacklistEmpty     = "なし"
)

var categoryLabels = map[blacklist.Category]string{
	blacklist.CategoryCountry: "国",
	blacklist.CategoryPlayer:  "プレイヤー",
}

// requireAdmin gates a handler to minister and diplomat roles.
func (r *Router) requireAdmin(next func(discord.SlashCommandEvent)) func(discord.SlashCommandEvent) {
	return func(ev discord.SlashCommandEvent) {
		if !holdsAny(ev.UserRoleIDs, r.opt.MinisterRoleIDs, r.opt.DiplomatRoleIDs) {
			slog.Warn("blacklist command rejected", "command", ev.CommandName, "user_id", ev.UserID)
			r.reply(ev, discord.Message{Content: messageAdminForbidden, Ephemeral: true})
			return
		}
		next(ev)
	}
}

func (r *Router) addEntry(category blacklist.Category, option string) func(discord.SlashCommandEvent) {
	return func(ev discord.SlashCommandEvent) {
		value := strings.TrimSpace(ev.Options[option])
		if !r.deferReply(ev, false) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		result, err := r.blacklist.Add(ctx, category, value, "")
		if err != nil {
			slog.Error("failed to add blacklist entry", "error", err, "category", category, "value", value)
			r.editReply(ev, discord.Message{Content: messageBlacklistError})
			return
		}
		slog.Info("blacklist entry added", "category", category, "value", value, "result", result, "user_id", ev.UserID)
		r.editReply(ev, discord.Message{Content: addResultMessage(category, value, result)})
	}
}

func (r *Router) removeEntry(category blacklist.Category, option string) func(discord.SlashCommandEvent) {
	return func(ev discord.SlashCommandEvent) {
		value := strings.TrimSpace(ev.Options[option])
		if !r.deferReply(ev, false) {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		result, err := r.blacklist.Remove(ctx, category, value)
		if err != nil {
			slog.Error("failed to remove blacklist entry", "error", err, "category", category, "value", value)
			r.editReply(ev, discord.Message{Content: messageBlacklistError})
			return
		}
		slog.Info("blacklist entry removed", "category", category, "value", value, "result", result, "user_id", ev.UserID)
		r.editReply(ev, discord.Message{Content: removeResultMessage(category, value, result)})
	}
}

func (r *Router) listBlacklist(ev discord.SlashCommandEvent) {
	if !r.deferReply(ev, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	embed := discord.Embed{Title: blacklistListTitle, Color: blacklistListColor}
	for _, category := range []blacklist.Category{blacklist.CategoryCountry, blacklist.CategoryPlayer} {
		entries, err := r.blacklist.ListActive(ctx, category)
		if err != nil {
			slog.Error("failed to list blacklist", "error", err, "category", category)
			r.editReply(ev, discord.Message{Content: messageBlacklistError, Ephemeral: true})
			return
		}
		embed.Fields = append(embed.Fields, discord.EmbedField{Name: categoryLabels[category], Value: joinValues(entries)})
	}
	r.editReply(ev, discord.Message{Embeds: []discord.Embed{embed}, Ephemeral: true})
}

func addResultMessage(category blacklist.Category, value string, result blacklist.Result) string {
	label := categoryLabels[category]
	switch result {
	case blacklist.ResultDuplicate:
		return fmt.Sprintf("⚠️ 既にブラックリスト(%s) に登録されています", label)
	case blacklist.ResultReactivated:
		return fmt.Sprintf("🟢 無効だった「%s」を再有効化しました", value)
	default:
		return fmt.Sprintf("✅ ブラックリスト(%s) に「%s」を追加しました", label, value)
	}
}

func removeResultMessage(category blacklist.Category, value string, result blacklist.Result) string {
	if result == blacklist.ResultInvalidated {
		return fmt.Sprintf("🟣 「%s」を無効化しました", value)
	}
	return fmt.Sprintf("⚠️ ブラックリスト(%s) に「%s」は存在しません", categoryLabels[category], value)
}

func joinValues(entries []blacklist.Entry) string {
	if len(entries) == 0 {
		return blacklistEmpty
	}
	values := make([]string, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.Value)
	}
	return strings.Join(values, "\n")
}
