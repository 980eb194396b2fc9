package session

import (
	"strconv"
	"strings"

	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/comzer-gov/casbot/internal/extraction"
	"github.com/comzer-gov/casbot/internal/identity"
)

func introMessage(sessionID string) discord.Message {
	return discord.Message{
		Embeds: []discord.Embed{{
			Title:       introTitle,
			Description: introDescription,
			Fields:      []discord.EmbedField{{Name: notesFieldName, Value: introNotes}},
		}},
		Components: []discord.ActionRow{{Buttons: []discord.Button{
			{CustomID: Token{Kind: KindStart, SessionID: sessionID}.String(), Label: "進む", Style: discord.ButtonSuccess},
			{CustomID: Token{Kind: KindCancel, SessionID: sessionID}.String(), Label: "終了", Style: discord.ButtonDanger},
		}}},
	}
}

func editionMessage(sessionID string) discord.Message {
	return discord.Message{
		Content: messageEditionPrompt,
		Components: []discord.ActionRow{{Select: &discord.SelectMenu{
			CustomID:    Token{Kind: KindEdition, SessionID: sessionID}.String(),
			Placeholder: messageEditionPlaceholder,
			Options: []discord.SelectOption{
				{Label: "Java Edition", Value: string(identity.EditionJava), Description: "Java版Minecraft"},
				{Label: "Bedrock Edition", Value: string(identity.EditionBedrock), Description: "統合版Minecraft"},
			},
		}}},
	}
}

// Modal input ids.
const (
	fieldMCID       = "mcid"
	fieldNation     = "nation"
	fieldPeriod     = "period"
	fieldCompanions = "companions"
	fieldJoiners    = "joiners"
)

func applicationModal(sessionID string) discord.Modal {
	return discord.Modal{
		CustomID: Token{Kind: KindForm, SessionID: sessionID}.String(),
		Title:    formTitle,
		Inputs: []discord.TextInput{
			{CustomID: fieldMCID, Label: "MCID / ゲームタグ", Placeholder: "BE_を付ける必要はありません", Style: discord.TextInputShort, Required: true, MaxLength: 50},
			{CustomID: fieldNation, Label: "国籍", Placeholder: "例: 日本", Style: discord.TextInputShort, Required: true, MaxLength: 100},
			{CustomID: fieldPeriod, Label: "入国期間と目的", Placeholder: "例: 観光で10日間", Style: discord.TextInputShort, Required: true, MaxLength: 200},
			{CustomID: fieldCompanions, Label: "同行者(いなければ空欄)", Placeholder: "例: user1,BE_user2", Style: discord.TextInputShort, MaxLength: 300},
			{CustomID: fieldJoiners, Label: "合流者(いなければ空欄)", Placeholder: "例: citizen123, 12345678901234, BE_citizen234 ", Style: discord.TextInputShort, MaxLength: 300},
		},
	}
}

func joinerDM(sessionID, mcid string) discord.Message {
	return discord.Message{
		Content: joinerDMContent(mcid),
		Components: []discord.ActionRow{{Buttons: []discord.Button{
			{CustomID: Token{Kind: KindJoiner, SessionID: sessionID, Extra: "yes"}.String(), Label: "はい", Style: discord.ButtonSuccess},
			{CustomID: Token{Kind: KindJoiner, SessionID: sessionID, Extra: "no"}.String(), Label: "いいえ", Style: discord.ButtonDanger},
		}}},
	}
}

func adminReport(open int) discord.Message {
	return discord.Message{Embeds: []discord.Embed{{
		Title:  adminReportTitle,
		Fields: []discord.EmbedField{{Name: adminReportOpenFields, Value: strconv.Itoa(open)}},
	}}}
}

func companionsText(rec extraction.Record) string {
	if ids := rec.CompanionIDs(); len(ids) > 0 {
		return strings.Join(ids, ", ")
	}
	return valueNone
}

func joinersText(rec extraction.Record) string {
	if len(rec.Joiners) > 0 {
		return strings.Join(rec.Joiners, ", ")
	}
	return valueNone
}

func orUnknown(v string) string {
	if v == "" {
		return valueUnknown
	}
	return v
}

func periodText(rec extraction.Record) string {
	return rec.Start + " ～ " + rec.End
}

// resultFields are shared by the applicant notice and the publication notice.
// withNation adds the 国籍 field after 申請者.
func resultFields(rec extraction.Record, appliedAt string, withNation bool) []discord.EmbedField {
	fields := []discord.EmbedField{{Name: "申請者", Value: orUnknown(rec.MCID), Inline: true}}
	if withNation {
		fields = append(fields, discord.EmbedField{Name: "国籍", Value: orUnknown(rec.Nation), Inline: true})
	}
	return append(fields,
		discord.EmbedField{Name: "申請日", Value: appliedAt, Inline: true},
		discord.EmbedField{Name: "入国目的", Value: orUnknown(rec.Purpose), Inline: true},
		discord.EmbedField{Name: "入国期間", Value: periodText(rec)},
		discord.EmbedField{Name: "同行者", Value: companionsText(rec)},
		discord.EmbedField{Name: "合流者", Value: joinersText(rec)},
	)
}

func approvalEmbed(rec extraction.Record, appliedAt string, withNation bool) discord.Embed {
	fields := resultFields(rec, appliedAt, withNation)
	fields = append(fields, discord.EmbedField{Name: notesFieldName, Value: approvalNotes})
	return discord.Embed{
		Title:       approvalTitle,
		Description: approvalDescription,
		Color:       colorApproval,
		Fields:      fields,
	}
}

func publicationEmbed(rec extraction.Record, appliedAt string) discord.Embed {
	return discord.Embed{
		Title:       publicationTitle,
		Description: publicationDescription,
		Color:       colorPublication,
		Fields:      resultFields(rec, appliedAt, true),
	}
}

// rejectionDetails lists what was extracted, or echoes the raw input when extraction never succeeded.
func rejectionDetails(s Session) string {
	if !s.Extracted {
		return s.Form.InputText()
	}
	rec := s.Record
	period := valueUnknown
	if rec.Start != "" && rec.End != "" {
		period = periodText(rec)
	}
	return strings.Join([]string{
		"申請者: " + orUnknown(rec.MCID),
		"国籍: " + orUnknown(rec.Nation),
		"入国目的: " + orUnknown(rec.Purpose),
		"入国期間: " + period,
		"同行者: " + companionsText(rec),
		"合流者: " + joinersText(rec),
	}, "\n") + "\n"
}

func rejectionEmbed(reason, details string) discord.Embed {
	return discord.Embed{
		Title:       rejectionTitle,
		Description: "**申請が却下されました**\n\n【却下理由】\n" + reason + "\n\n【申請内容】\n" + details,
		Color:       colorRejection,
		Footer:      rejectionFooter,
	}
}

func errorMessage() discord.Message {
	return discord.Message{
		Embeds:    []discord.Embed{{Title: errorTitle, Description: messageUnexpectedError, Color: colorRejection}},
		Ephemeral: true,
	}
}

func mention(userID string) string {
	if userID == "" {
		return ""
	}
	return "<@" + userID + "> "
}
