package command

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/comzer-gov/casbot/internal/registry"
)

const (
	messageInfoForbidden    = "❌ エラー：このコマンドを実行する権限がありません。"
	messageInfoNotFound     = "Discord ID: %s に該当する国民情報は登録されていません。"
	messageInfoUnauthorized = "❌ API認証エラー"
	messageInfoFailed       = "❌ システムエラーが発生しました。"

	infoTitle    = "👤 国民登録情報"
	infoColor    = 0x0099ff
	infoFooter   = "大統領府内務省 統合管理局"
	infoFallback = "情報なし"
)

var infoFields = []struct {
	key   string
	label string
}{
	{key: "discord_id", label: "discord id"},
	{key: "discord_name", label: "discord名"},
	{key: "sub_discord_id", label: "サブdiscord id"},
	{key: "mcid", label: "mcid"},
	{key: "sub_mcid", label: "サブmcid"},
	{key: "residence", label: "所属州"},
	{key: "company", label: "所属企業"},
	{key: "party", label: "所属政党"},
}

func (r *Router) handleInfo(ev discord.SlashCommandEvent) {
	if !holdsAny(ev.UserRoleIDs, r.opt.CitizenRoleIDs) {
		r.reply(ev, discord.Message{Content: messageInfoForbidden, Ephemeral: true})
		return
	}
	if !r.deferReply(ev, true) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	data, err := r.directory.CitizenInfo(ctx, ev.UserID)
	switch {
	case errors.Is(err, registry.ErrCitizenNotFound):
		r.editReply(ev, discord.Message{Content: fmt.Sprintf(messageInfoNotFound, ev.UserID), Ephemeral: true})
		return
	case errors.Is(err, registry.ErrUnauthorized):
		slog.Error("citizen registry rejected api key", "error", err)
		r.editReply(ev, discord.Message{Content: messageInfoUnauthorized, Ephemeral: true})
		return
	case err != nil:
		slog.Error("failed to fetch citizen info", "error", err, "user_id", ev.UserID)
		r.editReply(ev, discord.Message{Content: messageInfoFailed, Ephemeral: true})
		return
	}
	r.editReply(ev, discord.Message{Embeds: []discord.Embed{r.infoEmbed(ev, data)}, Ephemeral: true})
}

func (r *Router) infoEmbed(ev discord.SlashCommandEvent, data map[string]any) discord.Embed {
	embed := discord.Embed{
		Title:        infoTitle,
		Color:        infoColor,
		ThumbnailURL: ev.UserAvatarURL,
		Footer:       infoFooter,
		Timestamp:    r.now(),
	}
	for _, f := range infoFields {
		embed.Fields = append(embed.Fields, discord.EmbedField{
			Name:   f.label,
			Value:  registry.FormatValue(data[f.key], infoFallback),
			Inline: true,
		})
	}
	return embed
}
