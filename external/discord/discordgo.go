package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	discordpkg "github.com/comzer-gov/casbot/internal/discord"
)

const guildMembersPageSize = 1000

type Client struct {
	session   *discordgo.Session
	token     string
	botUserID string
}

func NewClient(token string) *Client {
	return &Client{
		token: token,
	}
}

func (c *Client) ensureSession() error {
	if c.session != nil {
		return nil
	}
	s, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return err
	}
	s.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent
	c.session = s
	return nil
}

func (c *Client) Connect(ctx context.Context) error {
	if err := c.ensureSession(); err != nil {
		return err
	}
	opened := make(chan error, 1)
	go func() {
		opened <- c.session.Open()
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-opened:
		if err != nil {
			return err
		}
	}
	userID, err := c.GetBotUserID()
	if err != nil {
		return err
	}
	c.botUserID = userID
	return nil
}

func (c *Client) Close() error {
	if c.session != nil {
		return c.session.Close()
	}
	return nil
}

func (c *Client) Run() error {
	select {}
}

func (c *Client) GetBotUserID() (string, error) {
	if c.botUserID != "" {
		return c.botUserID, nil
	}
	if c.session == nil {
		return "", fmt.Errorf("discord session is not initialized")
	}
	if c.session.State != nil && c.session.State.User != nil && c.session.State.User.ID != "" {
		c.botUserID = c.session.State.User.ID
		return c.botUserID, nil
	}
	u, err := c.session.User("@me")
	if err != nil {
		return "", err
	}
	c.botUserID = u.ID
	return c.botUserID, nil
}

func (c *Client) SendChannelMessage(channelID string, msg discordpkg.Message) (string, error) {
	m, err := c.session.ChannelMessageSendComplex(channelID, toMessageSend(msg))
	if err != nil {
		return "", wrapRESTError(err)
	}
	return m.ID, nil
}

func (c *Client) SendChannelMessageWithFile(msg discordpkg.FileMessage) error {
	_, err := c.session.ChannelMessageSendComplex(msg.ChannelID, &discordgo.MessageSend{
		Content: msg.Content,
		Files: []*discordgo.File{
			{Name: msg.Filename, ContentType: "text/plain", Reader: bytes.NewReader(msg.FileBody)},
		},
	})
	return wrapRESTError(err)
}

func (c *Client) SendDirectMessage(userID string, msg discordpkg.Message) error {
	ch, err := c.session.UserChannelCreate(userID)
	if err != nil {
		return wrapRESTError(err)
	}
	_, err = c.session.ChannelMessageSendComplex(ch.ID, toMessageSend(msg))
	return wrapRESTError(err)
}

func (c *Client) GetMessage(channelID, messageID string) (discordpkg.ChannelMessage, error) {
	m, err := c.session.ChannelMessage(channelID, messageID)
	if err != nil {
		return discordpkg.ChannelMessage{}, wrapRESTError(err)
	}
	return fromMessage(m), nil
}

func (c *Client) DeleteMessage(channelID, messageID string) error {
	return wrapRESTError(c.session.ChannelMessageDelete(channelID, messageID))
}

func (c *Client) ResolveChannelName(channelID string) string {
	channel := c.resolveChannel(channelID)
	if channel == nil {
		slog.Warn("discord channel name could not be resolved; using channel id fallback", "channel_id", channelID)
		return channelID
	}
	return channel.Name
}

func (c *Client) IsGuildMember(guildID, userID string) bool {
	return c.resolveGuildMember(guildID, userID) != nil
}

func (c *Client) ListGuildMembers(ctx context.Context, guildID string) ([]discordpkg.Member, error) {
	members := make([]discordpkg.Member, 0)
	after := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := c.session.GuildMembers(guildID, after, guildMembersPageSize)
		if err != nil {
			return nil, wrapRESTError(err)
		}
		for _, m := range page {
			if m == nil || m.User == nil {
				continue
			}
			members = append(members, fromMember(m))
		}
		if len(page) < guildMembersPageSize {
			return members, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (c *Client) UpdateWatchingStatus(text string) error {
	return c.session.UpdateWatchStatus(0, text)
}

func (c *Client) ChannelWebhooks(channelID string) ([]discordpkg.Webhook, error) {
	hooks, err := c.session.ChannelWebhooks(channelID)
	if err != nil {
		return nil, wrapRESTError(err)
	}
	out := make([]discordpkg.Webhook, 0, len(hooks))
	for _, h := range hooks {
		if h == nil {
			continue
		}
		out = append(out, discordpkg.Webhook{ID: h.ID, Token: h.Token, ChannelID: h.ChannelID, Name: h.Name})
	}
	return out, nil
}

func (c *Client) CreateWebhook(channelID, name, avatarURL string) (discordpkg.Webhook, error) {
	h, err := c.session.WebhookCreate(channelID, name, avatarURL)
	if err != nil {
		return discordpkg.Webhook{}, wrapRESTError(err)
	}
	return discordpkg.Webhook{ID: h.ID, Token: h.Token, ChannelID: h.ChannelID, Name: h.Name}, nil
}

func (c *Client) ExecuteWebhook(hook discordpkg.Webhook, msg discordpkg.WebhookMessage) error {
	_, err := c.session.WebhookExecute(hook.ID, hook.Token, true, &discordgo.WebhookParams{
		Username:        msg.Username,
		AvatarURL:       msg.AvatarURL,
		Embeds:          toEmbeds(msg.Embeds),
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	})
	return wrapRESTError(err)
}

func (c *Client) UpsertGuildSlashCommands(guildID string, defs []discordpkg.SlashCommandDefinition) error {
	appID := c.applicationID()
	if appID == "" {
		return fmt.Errorf("discord application id is not available")
	}
	existing, err := c.session.ApplicationCommands(appID, guildID)
	if err != nil {
		return err
	}
	existingByName := make(map[string]*discordgo.ApplicationCommand, len(existing))
	for _, cmd := range existing {
		if cmd == nil || cmd.Name == "" {
			continue
		}
		existingByName[cmd.Name] = cmd
	}
	for _, def := range defs {
		if err := c.upsertGuildSlashCommand(appID, guildID, def, existingByName); err != nil {
			return fmt.Errorf("failed to upsert command %s: %w", def.Name, err)
		}
	}
	return nil
}

func (c *Client) upsertGuildSlashCommand(appID, guildID string, def discordpkg.SlashCommandDefinition, existingByName map[string]*discordgo.ApplicationCommand) error {
	if def.Name == "" {
		return nil
	}
	payload := toApplicationCommand(def)
	cmd, ok := existingByName[def.Name]
	if !ok {
		_, err := c.session.ApplicationCommandCreate(appID, guildID, payload)
		return err
	}
	if cmd.Description == def.Description && len(cmd.Options) == len(payload.Options) && sameOptionNames(cmd.Options, payload.Options) {
		return nil
	}
	_, err := c.session.ApplicationCommandEdit(appID, guildID, cmd.ID, payload)
	return err
}

func sameOptionNames(a, b []*discordgo.ApplicationCommandOption) bool {
	for i := range a {
		if a[i] == nil || b[i] == nil || a[i].Name != b[i].Name || len(a[i].Choices) != len(b[i].Choices) {
			return false
		}
	}
	return true
}

func isRESTNotFound(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return false
	}
	if restErr.Response == nil {
		return false
	}
	return restErr.Response.StatusCode == http.StatusNotFound
}

// wrapRESTError converts discordgo REST failures into discordpkg.APIError so callers can branch on codes.
func wrapRESTError(err error) error {
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) {
		return err
	}
	apiErr := &discordpkg.APIError{}
	if restErr.Response != nil {
		apiErr.HTTPStatus = restErr.Response.StatusCode
	}
	if restErr.Message != nil {
		apiErr.Code = restErr.Message.Code
		apiErr.Message = restErr.Message.Message
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(restErr.ResponseBody))
	}
	return apiErr
}

func (c *Client) resolveChannel(channelID string) *discordgo.Channel {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		channel, err := c.session.State.Channel(channelID)
		if err == nil && channel != nil && channel.Name != "" {
			return channel
		}
	}
	channel, err := c.session.Channel(channelID)
	if err != nil || channel == nil {
		return nil
	}
	if channel.Name == "" {
		return nil
	}
	return channel
}

func (c *Client) parentChannelID(channelID string) string {
	channel := c.resolveChannel(channelID)
	if channel == nil {
		return ""
	}
	return channel.ParentID
}

func (c *Client) resolveGuildMember(guildID, userID string) *discordgo.Member {
	if c.session == nil {
		return nil
	}
	if c.session.State != nil {
		member, err := c.session.State.Member(guildID, userID)
		if err == nil && member != nil {
			return member
		}
	}
	member, err := c.session.GuildMember(guildID, userID)
	if err != nil {
		if !isRESTNotFound(err) {
			slog.Warn("failed to fetch guild member", "error", err, "guild_id", guildID, "user_id", userID)
		}
		return nil
	}
	return member
}

func (c *Client) applicationID() string {
	if c.session == nil || c.session.State == nil {
		return ""
	}
	if c.session.State.Application != nil && c.session.State.Application.ID != "" {
		return c.session.State.Application.ID
	}
	if c.session.State.User != nil {
		return c.session.State.User.ID
	}
	return ""
}

func preferredDiscordName(globalName, username, fallback string) string {
	if globalName != "" {
		return globalName
	}
	if username != "" {
		return username
	}
	return fallback
}
