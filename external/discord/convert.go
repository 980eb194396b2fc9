package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/comzer-gov/casbot/internal/discord"
)

func toMessageSend(msg discordpkg.Message) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:         msg.Content,
		Embeds:          toEmbeds(msg.Embeds),
		Components:      toComponents(msg.Components),
		AllowedMentions: toAllowedMentions(msg.AllowedRoleMentions),
	}
}

func toAllowedMentions(roleIDs []string) *discordgo.MessageAllowedMentions {
	if len(roleIDs) == 0 {
		return nil
	}
	return &discordgo.MessageAllowedMentions{
		Parse: []discordgo.AllowedMentionType{},
		Roles: roleIDs,
	}
}

func toEmbeds(embeds []discordpkg.Embed) []*discordgo.MessageEmbed {
	if len(embeds) == 0 {
		return nil
	}
	out := make([]*discordgo.MessageEmbed, 0, len(embeds))
	for _, e := range embeds {
		out = append(out, toEmbed(e))
	}
	return out
}

func toEmbed(e discordpkg.Embed) *discordgo.MessageEmbed {
	me := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if e.Footer != "" {
		me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if e.AuthorName != "" {
		me.Author = &discordgo.MessageEmbedAuthor{Name: e.AuthorName, IconURL: e.AuthorIconURL}
	}
	if e.ImageURL != "" {
		me.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.ThumbnailURL != "" {
		me.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: e.ThumbnailURL}
	}
	if !e.Timestamp.IsZero() {
		me.Timestamp = e.Timestamp.Format(time.RFC3339)
	}
	return me
}

func fromEmbed(me *discordgo.MessageEmbed) discordpkg.Embed {
	e := discordpkg.Embed{
		Title:       me.Title,
		Description: me.Description,
		Color:       me.Color,
	}
	for _, f := range me.Fields {
		if f == nil {
			continue
		}
		e.Fields = append(e.Fields, discordpkg.EmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	if me.Footer != nil {
		e.Footer = me.Footer.Text
	}
	if me.Author != nil {
		e.AuthorName = me.Author.Name
		e.AuthorIconURL = me.Author.IconURL
	}
	return e
}

func toComponents(rows []discordpkg.ActionRow) []discordgo.MessageComponent {
	if len(rows) == 0 {
		return nil
	}
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, row := range rows {
		items := make([]discordgo.MessageComponent, 0, len(row.Buttons)+1)
		for _, b := range row.Buttons {
			items = append(items, discordgo.Button{
				CustomID: b.CustomID,
				Label:    b.Label,
				Style:    toButtonStyle(b.Style),
			})
		}
		if row.Select != nil {
			options := make([]discordgo.SelectMenuOption, 0, len(row.Select.Options))
			for _, o := range row.Select.Options {
				options = append(options, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value, Description: o.Description})
			}
			items = append(items, discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    row.Select.CustomID,
				Placeholder: row.Select.Placeholder,
				Options:     options,
			})
		}
		out = append(out, discordgo.ActionsRow{Components: items})
	}
	return out
}

func toButtonStyle(style discordpkg.ButtonStyle) discordgo.ButtonStyle {
	switch style {
	case discordpkg.ButtonSecondary:
		return discordgo.SecondaryButton
	case discordpkg.ButtonSuccess:
		return discordgo.SuccessButton
	case discordpkg.ButtonDanger:
		return discordgo.DangerButton
	default:
		return discordgo.PrimaryButton
	}
}

func toModal(modal discordpkg.Modal) *discordgo.InteractionResponseData {
	rows := make([]discordgo.MessageComponent, 0, len(modal.Inputs))
	for _, in := range modal.Inputs {
		style := discordgo.TextInputShort
		if in.Style == discordpkg.TextInputParagraph {
			style = discordgo.TextInputParagraph
		}
		rows = append(rows, discordgo.ActionsRow{Components: []discordgo.MessageComponent{
			discordgo.TextInput{
				CustomID:    in.CustomID,
				Label:       in.Label,
				Style:       style,
				Placeholder: in.Placeholder,
				Required:    &in.Required,
				MaxLength:   in.MaxLength,
			},
		}})
	}
	return &discordgo.InteractionResponseData{
		CustomID:   modal.CustomID,
		Title:      modal.Title,
		Components: rows,
	}
}

func modalFieldValues(data discordgo.ModalSubmitInteractionData) map[string]string {
	fields := make(map[string]string)
	for _, comp := range data.Components {
		row, ok := comp.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, inner := range row.Components {
			input, ok := inner.(*discordgo.TextInput)
			if !ok {
				continue
			}
			fields[input.CustomID] = input.Value
		}
	}
	return fields
}

func fromMessage(m *discordgo.Message) discordpkg.ChannelMessage {
	out := discordpkg.ChannelMessage{
		ID:        m.ID,
		ChannelID: m.ChannelID,
		WebhookID: m.WebhookID,
	}
	for _, e := range m.Embeds {
		if e == nil {
			continue
		}
		out.Embeds = append(out.Embeds, fromEmbed(e))
	}
	return out
}

func fromMember(m *discordgo.Member) discordpkg.Member {
	displayName := m.Nick
	if displayName == "" {
		displayName = preferredDiscordName(m.User.GlobalName, m.User.Username, m.User.ID)
	}
	return discordpkg.Member{
		UserID:      m.User.ID,
		Username:    m.User.Username,
		DisplayName: displayName,
		IsBot:       m.User.Bot,
		RoleIDs:     append([]string(nil), m.Roles...),
	}
}

func toApplicationCommand(def discordpkg.SlashCommandDefinition) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        def.Name,
		Description: def.Description,
	}
	for _, opt := range def.Options {
		o := &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        opt.Name,
			Description: opt.Description,
			Required:    opt.Required,
		}
		for _, ch := range opt.Choices {
			o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{Name: ch.Name, Value: ch.Value})
		}
		cmd.Options = append(cmd.Options, o)
	}
	return cmd
}
