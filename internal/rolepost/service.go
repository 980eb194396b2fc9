package rolepost

import (
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/comzer-gov/casbot/internal/discord"
	"golang.org/x/sync/singleflight"
)

const chooseTokenPrefix = "rolepost-choose:"

const (
	messageOff          = "役職発言モードを **OFF** にしました。"
	messageOnFormat     = "役職発言モードを **ON** にしました。（%s）"
	messageNoRole       = "対象の役職ロールを保有していません。"
	messageChoose       = "どのモードで発言モードを有効にしますか？"
	messageChoosePrompt = "発言モードを選択してください"
	messageNotYours     = "あなた以外は操作できません。"
	messageUnknownMode  = "選択されたモードは利用できません。"

	messageNotWebhook      = "コムザール行政システムが送信した役職発言のみ削除できます。"
	messageNotRolePost     = "このメッセージは役職発言ではないようです。"
	messageModeUnresolved  = "この発言のモードが特定できません。"
	messageDeleteForbidden = "この%sの発言を削除する権限がありません。"
	messageDeleted         = "役職発言を削除しました。"
	messageDeleteFailed    = "指定のメッセージが見つからないか、削除できませんでした。"

	silentContent = "(無言)"
)

var imageExtensions = map[string]bool{".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}

// Choice is a mode the user may speak as, with the role that grants it.
type Choice struct {
	Mode   Mode
	RoleID string
}

type Service struct {
	dc    discord.Client
	modes []Mode

	mu     sync.Mutex
	active map[string]map[string]string // channel -> user -> mode key

	hooksMu sync.Mutex
	hooks   map[string]discord.Webhook
	group   singleflight.Group
}

func NewService(dc discord.Client, modes []Mode) *Service {
	return &Service{
		dc:     dc,
		modes:  modes,
		active: make(map[string]map[string]string),
		hooks:  make(map[string]discord.Webhook),
	}
}

// Choices lists the modes a member may use, one per mode, in catalog order.
func (s *Service) Choices(roleIDs []string) []Choice {
	out := make([]Choice, 0, len(s.modes))
	for _, m := range s.modes {
		if rid, ok := m.Held(roleIDs); ok {
			out = append(out, Choice{Mode: m, RoleID: rid})
		}
	}
	return out
}

func (s *Service) IsActive(channelID, userID string) bool {
	_, ok := s.activeMode(channelID, userID)
	return ok
}

// Toggle flips role-speech mode for a user in a channel and returns the reply to show them.
func (s *Service) Toggle(channelID, userID string, roleIDs []string) discord.Message {
	if s.deactivate(channelID, userID) {
		slog.Info("rolepost mode disabled", "channel_id", channelID, "user_id", userID)
		return discord.Message{Content: messageOff, Ephemeral: true}
	}
	choices := s.Choices(roleIDs)
	switch len(choices) {
	case 0:
		return discord.Message{Content: messageNoRole, Ephemeral: true}
	case 1:
		s.activate(channelID, userID, choices[0].Mode.Key)
		slog.Info("rolepost mode enabled", "channel_id", channelID, "user_id", userID, "mode", choices[0].Mode.Key)
		return discord.Message{Content: fmt.Sprintf(messageOnFormat, choices[0].Mode.Label), Ephemeral: true}
	}
	options := make([]discord.SelectOption, 0, len(choices))
	for _, c := range choices {
		options = append(options, discord.SelectOption{
			Label: truncate(c.Mode.Label, 100),
			Value: c.Mode.Key + ":" + c.RoleID,
		})
	}
	return discord.Message{
		Content:   messageChoose,
		Ephemeral: true,
		Components: []discord.ActionRow{{Select: &discord.SelectMenu{
			CustomID:    chooseTokenPrefix + userID,
			Placeholder: messageChoosePrompt,
			Options:     options,
		}}},
	}
}

// HandleComponent handles the mode selection menu. It returns false for foreign custom ids.
func (s *Service) HandleComponent(ev discord.ComponentEvent) bool {
	owner, ok := strings.CutPrefix(ev.CustomID, chooseTokenPrefix)
	if !ok {
		return false
	}
	if owner != ev.UserID {
		s.reply(ev.Interaction, discord.Message{Content: messageNotYours, Ephemeral: true})
		return true
	}
	if len(ev.Values) == 0 {
		return true
	}
	key, _, _ := strings.Cut(ev.Values[0], ":")
	mode, ok := s.mode(key)
	if !ok {
		s.reply(ev.Interaction, discord.Message{Content: messageUnknownMode, Ephemeral: true})
		return true
	}
	s.activate(ev.ChannelID, ev.UserID, mode.Key)
	slog.Info("rolepost mode enabled", "channel_id", ev.ChannelID, "user_id", ev.UserID, "mode", mode.Key)
	if err := ev.Interaction.Update(discord.Message{Content: fmt.Sprintf(messageOnFormat, mode.Label)}); err != nil {
		slog.Error("failed to update rolepost selection", "error", err, "channel_id", ev.ChannelID)
	}
	return true
}

// HandleMessage re-sends a message as a role post when its author has the mode on.
// It returns true when the message was consumed.
func (s *Service) HandleMessage(ev discord.MessageEvent) bool {
	if ev.AuthorIsBot {
		return false
	}
	key, ok := s.activeMode(ev.ChannelID, ev.AuthorID)
	if !ok {
		return false
	}
	mode, ok := s.mode(key)
	if !ok {
		return false
	}
	hook, err := s.webhook(ev.ChannelID, mode)
	if err != nil {
		slog.Error("failed to prepare rolepost webhook", "error", err, "channel_id", ev.ChannelID, "mode", mode.Key)
		return true
	}
	if err := s.dc.ExecuteWebhook(hook, discord.WebhookMessage{
		Username:  mode.WebhookName,
		AvatarURL: mode.WebhookIcon,
		Embeds:    []discord.Embed{postEmbed(mode, ev.Content, ev.AttachmentURLs)},
	}); err != nil {
		slog.Error("failed to resend rolepost", "error", err, "channel_id", ev.ChannelID, "mode", mode.Key)
		return true
	}
	if err := s.dc.DeleteMessage(ev.ChannelID, ev.MessageID); err != nil {
		slog.Warn("failed to delete original rolepost message", "error", err, "channel_id", ev.ChannelID, "message_id", ev.MessageID)
	}
	return true
}

// DeletePost removes a role post when the executor holds a role of the post's mode.
// The returned text is the reply for the executor.
func (s *Service) DeletePost(channelID, messageID string, executorRoleIDs []string) string {
	msg, err := s.dc.GetMessage(channelID, messageID)
	if err != nil {
		slog.Warn("failed to fetch rolepost for deletion", "error", err, "channel_id", channelID, "message_id", messageID)
		return messageDeleteFailed
	}
	if msg.WebhookID == "" {
		return messageNotWebhook
	}
	if len(msg.Embeds) == 0 || msg.Embeds[0].AuthorName == "" {
		return messageNotRolePost
	}
	mode, ok := s.modeByEmbedName(msg.Embeds[0].AuthorName)
	if !ok {
		return messageNotRolePost
	}
	if len(mode.RoleIDs) == 0 {
		return messageModeUnresolved
	}
	if _, ok := mode.Held(executorRoleIDs); !ok {
		return fmt.Sprintf(messageDeleteForbidden, mode.Label)
	}
	if err := s.dc.DeleteMessage(channelID, messageID); err != nil {
		slog.Warn("failed to delete rolepost", "error", err, "channel_id", channelID, "message_id", messageID)
		return messageDeleteFailed
	}
	slog.Info("rolepost deleted", "channel_id", channelID, "message_id", messageID, "mode", mode.Key)
	return messageDeleted
}

// webhook finds or creates the channel webhook for a mode, once per channel and webhook name.
func (s *Service) webhook(channelID string, mode Mode) (discord.Webhook, error) {
	key := channelID + ":" + mode.WebhookName
	s.hooksMu.Lock()
	hook, ok := s.hooks[key]
	s.hooksMu.Unlock()
	if ok {
		return hook, nil
	}
	v, err, _ := s.group.Do(key, func() (any, error) {
		s.hooksMu.Lock()
		cached, ok := s.hooks[key]
		s.hooksMu.Unlock()
		if ok {
			return cached, nil
		}
		hooks, err := s.dc.ChannelWebhooks(channelID)
		if err != nil {
			return discord.Webhook{}, fmt.Errorf("list channel webhooks: %w", err)
		}
		for _, h := range hooks {
			if h.Name == mode.WebhookName && h.Token != "" {
				s.storeHook(key, h)
				return h, nil
			}
		}
		h, err := s.dc.CreateWebhook(channelID, mode.WebhookName, mode.WebhookIcon)
		if err != nil {
			return discord.Webhook{}, fmt.Errorf("create webhook: %w", err)
		}
		s.storeHook(key, h)
		return h, nil
	})
	if err != nil {
		return discord.Webhook{}, err
	}
	return v.(discord.Webhook), nil
}

func (s *Service) storeHook(key string, h discord.Webhook) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	s.hooks[key] = h
}

func (s *Service) activate(channelID, userID, modeKey string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.active[channelID]
	if !ok {
		users = make(map[string]string)
		s.active[channelID] = users
	}
	users[userID] = modeKey
}

func (s *Service) deactivate(channelID, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.active[channelID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(s.active, channelID)
	}
	return true
}

func (s *Service) activeMode(channelID, userID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key, ok := s.active[channelID][userID]
	return key, ok
}

func (s *Service) mode(key string) (Mode, bool) {
	for _, m := range s.modes {
		if m.Key == key {
			return m, true
		}
	}
	return Mode{}, false
}

func (s *Service) modeByEmbedName(name string) (Mode, bool) {
	for _, m := range s.modes {
		if m.EmbedName == name {
			return m, true
		}
	}
	return Mode{}, false
}

func (s *Service) reply(in discord.Interaction, msg discord.Message) {
	if err := in.Reply(msg); err != nil {
		slog.Error("failed to reply rolepost interaction", "error", err)
	}
}

func postEmbed(mode Mode, content string, attachmentURLs []string) discord.Embed {
	if strings.TrimSpace(content) == "" {
		content = silentContent
	}
	return discord.Embed{
		AuthorName:    mode.EmbedName,
		AuthorIconURL: mode.EmbedIcon,
		Description:   content,
		Color:         mode.Color,
		ImageURL:      firstImage(attachmentURLs),
	}
}

func firstImage(urls []string) string {
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if imageExtensions[strings.ToLower(path.Ext(u.Path))] {
			return raw
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
