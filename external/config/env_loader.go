package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/comzer-gov/casbot/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env string `env:"ENV" envDefault:"production"`

	DiscordToken          string `env:"DISCORD_TOKEN,required"`
	DiscordGuildID        string `env:"DISCORD_GUILD_ID,required"`
	TicketCategoryID      string `env:"TICKET_CATEGORY_ID,required"`
	TriggerMarker         string `env:"TRIGGER_MARKER" envDefault:"ID:CAS"`
	AdminKeyword          string `env:"ADMIN_KEYWORD" envDefault:"!status"`
	LogChannelID          string `env:"LOG_CHANNEL_ID,required"`
	PublishChannelID      string `env:"PUBLISH_CHANNEL_ID"`
	DebugPublishChannelID string `env:"DEBUG_PUBLISH_CHANNEL_ID"`
	DebugMode             bool   `env:"DEBUG_MODE" envDefault:"false"`

	MinisterRoleIDs []string `env:"ROLE_IDS_MINISTER" envSeparator:","`
	DiplomatRoleIDs []string `env:"ROLE_IDS_DIPLOMAT" envSeparator:","`
	ExaminerRoleIDs []string `env:"ROLE_IDS_EXAMINER" envSeparator:","`
	CitizenRoleIDs  []string `env:"ROLE_IDS_CITIZEN" envSeparator:","`

	OpenAIAPIKey  string `env:"OPENAI_API_KEY,required"`
	OpenAIModel   string `env:"OPENAI_MODEL" envDefault:"gpt-4o"`
	OpenAIBaseURL string `env:"OPENAI_BASE_URL"`

	BlacklistBackend           string `env:"BLACKLIST_BACKEND" envDefault:"sheets"`
	GoogleSheetID              string `env:"GOOGLE_SHEET_ID"`
	GoogleCloudCredentialsJSON string `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	BlacklistSheetName         string `env:"BLACKLIST_SHEET_NAME" envDefault:"blacklist(CAS連携)"`
	DatabaseURL                string `env:"DATABASE_URL"`

	MojangAPIBaseURL   string `env:"MOJANG_API_BASE_URL" envDefault:"https://api.mojang.com"`
	PlayerDBAPIBaseURL string `env:"PLAYERDB_API_BASE_URL" envDefault:"https://playerdb.co"`

	CzrBaseURL           string `env:"CZR_BASE_URL" envDefault:"https://comzer-gov.net"`
	CzrAPIToken          string `env:"CZR_API_TOKEN"`
	CzrCitizenAPIKey     string `env:"CZR_CITIZEN_API_KEY"`
	CzrBridgeKey         string `env:"CZR_BRIDGE_KEY" envDefault:"casbot"`
	CzrBridgeSecret      string `env:"CZR_BRIDGE_SECRET"`
	MemberSyncSchedule   string `env:"MEMBER_SYNC_SCHEDULE" envDefault:"@every 3h"`
	MemberSyncThrottleMs int    `env:"MEMBER_SYNC_THROTTLE_MS" envDefault:"700"`
	PresenceSchedule     string `env:"PRESENCE_SCHEDULE" envDefault:"@every 30m"`

	HTTPAddr         string `env:"HTTP_ADDR" envDefault:":3000"`
	NotifyAPISecret  string `env:"NOTIFY_API_SECRET,required"`
	NotifyIntervalMs int    `env:"NOTIFY_INTERVAL_MS" envDefault:"1500"`

	SessionIdleTimeoutMin   int    `env:"SESSION_IDLE_TIMEOUT_MIN" envDefault:"10"`
	SessionSweepIntervalSec int    `env:"SESSION_SWEEP_INTERVAL_SEC" envDefault:"60"`
	ValidationTimeoutSec    int    `env:"VALIDATION_TIMEOUT_SEC" envDefault:"60"`
	JoinerMaxWaitHours      int    `env:"JOINER_MAX_WAIT_HOURS" envDefault:"24"`
	MaxStayDays             int    `env:"MAX_STAY_DAYS" envDefault:"31"`
	TranscriptTimezone      string `env:"TRANSCRIPT_TIMEZONE" envDefault:"Asia/Tokyo"`

	LogFilePath   string `env:"LOG_FILE_PATH"`
	LogWebhookURL string `env:"LOG_WEBHOOK_URL"`
}

// Load reads .env (when present) and the process environment.
func Load() (*internalconfig.Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		DiscordToken:               raw.DiscordToken,
		DiscordGuildID:             raw.DiscordGuildID,
		TicketCategoryID:           raw.TicketCategoryID,
		TriggerMarker:              raw.TriggerMarker,
		AdminKeyword:               raw.AdminKeyword,
		LogChannelID:               raw.LogChannelID,
		PublishChannelID:           raw.PublishChannelID,
		DebugPublishChannelID:      raw.DebugPublishChannelID,
		DebugMode:                  raw.DebugMode,
		MinisterRoleIDs:            compactIDs(raw.MinisterRoleIDs),
		DiplomatRoleIDs:            compactIDs(raw.DiplomatRoleIDs),
		ExaminerRoleIDs:            compactIDs(raw.ExaminerRoleIDs),
		CitizenRoleIDs:             compactIDs(raw.CitizenRoleIDs),
		OpenAIAPIKey:               raw.OpenAIAPIKey,
		OpenAIModel:                raw.OpenAIModel,
		OpenAIBaseURL:              raw.OpenAIBaseURL,
		BlacklistBackend:           raw.BlacklistBackend,
		GoogleSheetID:              raw.GoogleSheetID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		BlacklistSheetName:         raw.BlacklistSheetName,
		DatabaseURL:                raw.DatabaseURL,
		MojangAPIBaseURL:           raw.MojangAPIBaseURL,
		PlayerDBAPIBaseURL:         raw.PlayerDBAPIBaseURL,
		CzrBaseURL:                 raw.CzrBaseURL,
		CzrAPIToken:                raw.CzrAPIToken,
		CzrCitizenAPIKey:           raw.CzrCitizenAPIKey,
		CzrBridgeKey:               raw.CzrBridgeKey,
		CzrBridgeSecret:            raw.CzrBridgeSecret,
		MemberSyncSchedule:         raw.MemberSyncSchedule,
		MemberSyncThrottleMs:       raw.MemberSyncThrottleMs,
		PresenceSchedule:           raw.PresenceSchedule,
		HTTPAddr:                   raw.HTTPAddr,
		NotifyAPISecret:            raw.NotifyAPISecret,
		NotifyIntervalMs:           raw.NotifyIntervalMs,
		SessionIdleTimeoutMin:      raw.SessionIdleTimeoutMin,
		SessionSweepIntervalSec:    raw.SessionSweepIntervalSec,
		ValidationTimeoutSec:       raw.ValidationTimeoutSec,
		JoinerMaxWaitHours:         raw.JoinerMaxWaitHours,
		MaxStayDays:                raw.MaxStayDays,
		TranscriptTimezone:         raw.TranscriptTimezone,
		LogFilePath:                raw.LogFilePath,
		LogWebhookURL:              raw.LogWebhookURL,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func compactIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	return out
}
