package webhook

import (
	"errors"
	"testing"

	"github.com/rotaria-smp/discordwebhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_EmptyWebhookURL(t *testing.T) {
	s := NewDiscordSender("")
	s.send = func(string, discordwebhook.Message) error {
		t.Fatal("must not send without a webhook url")
		return nil
	}
	assert.NoError(t, s.Send("hello"))
}

func TestSend_BuildsMessage(t *testing.T) {
	var gotURL string
	var got discordwebhook.Message
	s := NewDiscordSender("https://discord.example/api/webhooks/1/token")
	s.send = func(url string, msg discordwebhook.Message) error {
		gotURL, got = url, msg
		return nil
	}

	require.NoError(t, s.Send("```\nboom\n```"))
	assert.Equal(t, "https://discord.example/api/webhooks/1/token", gotURL)
	require.NotNil(t, got.Content)
	assert.Equal(t, "```\nboom\n```", *got.Content)
	require.NotNil(t, got.Username)
	assert.Equal(t, senderUsername, *got.Username)
	assert.NotNil(t, got.Flags)
}

func TestSend_PropagatesError(t *testing.T) {
	s := NewDiscordSender("https://discord.example/api/webhooks/1/token")
	s.send = func(string, discordwebhook.Message) error { return errors.New("rate limited") }
	assert.EqualError(t, s.Send("x"), "rate limited")
}
