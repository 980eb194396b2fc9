package session

import (
	"log/slog"
	"strings"

	"github.com/comzer-gov/casbot/internal/discord"
)

func buildTranscriptText(s Session) []byte {
	return []byte(strings.Join(s.logs, "\n"))
}

func (m *Manager) emitTranscript(s Session) {
	channelName := m.discord.ResolveChannelName(s.ChannelID)
	err := m.discord.SendChannelMessageWithFile(discord.FileMessage{
		ChannelID: m.cfg.LogChannelID,
		Content:   transcriptContent(s.ID, s.Status),
		Filename:  transcriptFilename(channelName),
		FileBody:  buildTranscriptText(s),
	})
	if err != nil {
		slog.Error("failed to send session transcript", "error", err, "session_id", s.ID, "log_channel_id", m.cfg.LogChannelID)
		return
	}
	slog.Info("session transcript sent", "session_id", s.ID, "status", string(s.Status), "lines", len(s.logs))
}
