package webhook

import (
	"github.com/rotaria-smp/discordwebhook"
)

const senderUsername = "CAS Log"

type DiscordSender struct {
	webhookURL string
	send       func(url string, msg discordwebhook.Message) error
}

func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		send:       discordwebhook.SendMessage,
	}
}

func (s *DiscordSender) Send(content string) error {
	if s.webhookURL == "" {
		return nil
	}
	username := senderUsername
	flag := discordwebhook.MessageFlagSuppressNotifications
	return s.send(s.webhookURL, discordwebhook.Message{
		Content:  &content,
		Username: &username,
		Flags:    &flag,
	})
}
