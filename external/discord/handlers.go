package discord

import (
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/comzer-gov/casbot/internal/discord"
)

func (c *Client) RegisterMessageHandler(handler func(discordpkg.MessageEvent)) {
	if err := c.ensureSession(); err != nil {
		slog.Error("failed to register message handler", "error", err)
		return
	}
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		if m == nil || m.Message == nil || m.Author == nil {
			return
		}
		botUserID, _ := c.GetBotUserID()
		event := discordpkg.MessageEvent{
			GuildID:         m.GuildID,
			ChannelID:       m.ChannelID,
			ParentChannelID: c.parentChannelID(m.ChannelID),
			MessageID:       m.ID,
			AuthorID:        m.Author.ID,
			AuthorIsBot:     m.Author.Bot,
			Content:         m.Content,
		}
		if m.Member != nil {
			event.AuthorRoleIDs = append([]string(nil), m.Member.Roles...)
		}
		for _, u := range m.Mentions {
			if u != nil && u.ID == botUserID {
				event.MentionsBot = true
				break
			}
		}
		for _, a := range m.Attachments {
			if a != nil && a.URL != "" {
				event.AttachmentURLs = append(event.AttachmentURLs, a.URL)
			}
		}
		handler(event)
	})
}

func (c *Client) RegisterSlashCommandHandler(handler func(discordpkg.SlashCommandEvent)) {
	if err := c.ensureSession(); err != nil {
		slog.Error("failed to register slash command handler", "error", err)
		return
	}
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionApplicationCommand {
			return
		}
		data := ic.ApplicationCommandData()
		if data.Name == "" {
			return
		}
		user, roles := interactionUser(ic.Interaction)
		if user == nil {
			return
		}
		options := make(map[string]string, len(data.Options))
		for _, opt := range data.Options {
			if opt == nil || opt.Type != discordgo.ApplicationCommandOptionString {
				continue
			}
			options[opt.Name] = opt.StringValue()
		}
		slog.Info("slash command interaction received", "guild_id", ic.GuildID, "channel_id", ic.ChannelID, "command", data.Name, "user_id", user.ID)
		handler(discordpkg.SlashCommandEvent{
			GuildID:       ic.GuildID,
			ChannelID:     ic.ChannelID,
			CommandName:   data.Name,
			UserID:        user.ID,
			UserName:      preferredDiscordName(user.GlobalName, user.Username, user.ID),
			UserAvatarURL: user.AvatarURL(""),
			UserRoleIDs:   roles,
			Options:       options,
			Interaction:   newInteraction(s, ic.Interaction),
		})
	})
}

func (c *Client) RegisterComponentHandler(handler func(discordpkg.ComponentEvent)) {
	if err := c.ensureSession(); err != nil {
		slog.Error("failed to register component handler", "error", err)
		return
	}
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionMessageComponent {
			return
		}
		user, roles := interactionUser(ic.Interaction)
		if user == nil {
			return
		}
		data := ic.MessageComponentData()
		messageID := ""
		if ic.Message != nil {
			messageID = ic.Message.ID
		}
		slog.Debug("component interaction received", "channel_id", ic.ChannelID, "custom_id", data.CustomID, "user_id", user.ID)
		handler(discordpkg.ComponentEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			MessageID:   messageID,
			UserID:      user.ID,
			UserRoleIDs: roles,
			CustomID:    data.CustomID,
			Values:      append([]string(nil), data.Values...),
			Interaction: newInteraction(s, ic.Interaction),
		})
	})
}

func (c *Client) RegisterModalSubmitHandler(handler func(discordpkg.ModalSubmitEvent)) {
	if err := c.ensureSession(); err != nil {
		slog.Error("failed to register modal handler", "error", err)
		return
	}
	c.session.AddHandler(func(s *discordgo.Session, ic *discordgo.InteractionCreate) {
		if ic == nil || ic.Type != discordgo.InteractionModalSubmit {
			return
		}
		user, _ := interactionUser(ic.Interaction)
		if user == nil {
			return
		}
		data := ic.ModalSubmitData()
		slog.Debug("modal submit received", "channel_id", ic.ChannelID, "custom_id", data.CustomID, "user_id", user.ID)
		handler(discordpkg.ModalSubmitEvent{
			GuildID:     ic.GuildID,
			ChannelID:   ic.ChannelID,
			UserID:      user.ID,
			CustomID:    data.CustomID,
			Fields:      modalFieldValues(data),
			Interaction: newInteraction(s, ic.Interaction),
		})
	})
}

func (c *Client) RegisterMemberHandler(handler func(discordpkg.MemberEvent)) {
	if err := c.ensureSession(); err != nil {
		slog.Error("failed to register member handler", "error", err)
		return
	}
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
		if m == nil || m.Member == nil || m.User == nil {
			return
		}
		handler(discordpkg.MemberEvent{GuildID: m.GuildID, Member: fromMember(m.Member)})
	})
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.GuildMemberUpdate) {
		if m == nil || m.Member == nil || m.User == nil {
			return
		}
		handler(discordpkg.MemberEvent{GuildID: m.GuildID, Member: fromMember(m.Member)})
	})
}

// interactionUser returns the invoking user; DM interactions carry no member or roles.
func interactionUser(i *discordgo.Interaction) (*discordgo.User, []string) {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User, append([]string(nil), i.Member.Roles...)
	}
	if i.User != nil {
		return i.User, nil
	}
	return nil, nil
}

type interaction struct {
	session   *discordgo.Session
	raw       *discordgo.Interaction
	responded atomic.Bool
}

func newInteraction(s *discordgo.Session, raw *discordgo.Interaction) *interaction {
	return &interaction{session: s, raw: raw}
}

func (i *interaction) Reply(msg discordpkg.Message) error {
	err := i.session.InteractionRespond(i.raw, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: toResponseData(msg),
	})
	if err == nil {
		i.responded.Store(true)
	}
	return wrapRESTError(err)
}

func (i *interaction) Defer(ephemeral bool) error {
	data := &discordgo.InteractionResponseData{}
	if ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	err := i.session.InteractionRespond(i.raw, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: data,
	})
	if err == nil {
		i.responded.Store(true)
	}
	return wrapRESTError(err)
}

func (i *interaction) EditReply(msg discordpkg.Message) error {
	content := msg.Content
	embeds := toEmbeds(msg.Embeds)
	components := toComponents(msg.Components)
	if embeds == nil {
		embeds = []*discordgo.MessageEmbed{}
	}
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	_, err := i.session.InteractionResponseEdit(i.raw, &discordgo.WebhookEdit{
		Content:    &content,
		Embeds:     &embeds,
		Components: &components,
	})
	return wrapRESTError(err)
}

func (i *interaction) FollowUp(msg discordpkg.Message) error {
	params := &discordgo.WebhookParams{
		Content:    msg.Content,
		Embeds:     toEmbeds(msg.Embeds),
		Components: toComponents(msg.Components),
	}
	if msg.Ephemeral {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	_, err := i.session.FollowupMessageCreate(i.raw, true, params)
	return wrapRESTError(err)
}

func (i *interaction) Update(msg discordpkg.Message) error {
	data := toResponseData(msg)
	if data.Embeds == nil {
		data.Embeds = []*discordgo.MessageEmbed{}
	}
	if data.Components == nil {
		data.Components = []discordgo.MessageComponent{}
	}
	err := i.session.InteractionRespond(i.raw, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseUpdateMessage,
		Data: data,
	})
	if err == nil {
		i.responded.Store(true)
	}
	return wrapRESTError(err)
}

func (i *interaction) ShowModal(modal discordpkg.Modal) error {
	err := i.session.InteractionRespond(i.raw, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseModal,
		Data: toModal(modal),
	})
	if err == nil {
		i.responded.Store(true)
	}
	return wrapRESTError(err)
}

func (i *interaction) Responded() bool {
	return i.responded.Load()
}

func toResponseData(msg discordpkg.Message) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:         msg.Content,
		Embeds:          toEmbeds(msg.Embeds),
		Components:      toComponents(msg.Components),
		AllowedMentions: toAllowedMentions(msg.AllowedRoleMentions),
	}
	if msg.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}
