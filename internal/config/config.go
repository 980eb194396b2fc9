package config

import (
	"fmt"
	"time"
)

const (
	BlacklistBackendSheets   = "sheets"
	BlacklistBackendPostgres = "postgres"
)

type Config struct {
	Env string

	DiscordToken          string
	DiscordGuildID        string
	TicketCategoryID      string
	TriggerMarker         string
	AdminKeyword          string
	LogChannelID          string
	PublishChannelID      string
	DebugPublishChannelID string
	DebugMode             bool

	MinisterRoleIDs []string
	DiplomatRoleIDs []string
	ExaminerRoleIDs []string
	CitizenRoleIDs  []string

	OpenAIAPIKey  string
	OpenAIModel   string
	OpenAIBaseURL string

	BlacklistBackend           string
	GoogleSheetID              string
	GoogleCloudCredentialsJSON string
	BlacklistSheetName         string
	DatabaseURL                string

	MojangAPIBaseURL   string
	PlayerDBAPIBaseURL string

	CzrBaseURL           string
	CzrAPIToken          string
	CzrCitizenAPIKey     string
	CzrBridgeKey         string
	CzrBridgeSecret      string
	MemberSyncSchedule   string
	MemberSyncThrottleMs int
	PresenceSchedule     string

	HTTPAddr         string
	NotifyAPISecret  string
	NotifyIntervalMs int

	SessionIdleTimeoutMin   int
	SessionSweepIntervalSec int
	ValidationTimeoutSec    int
	JoinerMaxWaitHours      int
	MaxStayDays             int
	TranscriptTimezone      string

	LogFilePath   string
	LogWebhookURL string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	switch c.BlacklistBackend {
	case BlacklistBackendSheets:
		if c.GoogleSheetID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_SHEET_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when BLACKLIST_BACKEND=sheets")
		}
	case BlacklistBackendPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when BLACKLIST_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("BLACKLIST_BACKEND must be %q or %q, got %q", BlacklistBackendSheets, BlacklistBackendPostgres, c.BlacklistBackend)
	}
	for _, p := range c.positiveFieldChecks() {
		if p.value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.name, p.value)
		}
	}
	if c.TranscriptTimezone == "" {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is required")
	}
	if _, err := time.LoadLocation(c.TranscriptTimezone); err != nil {
		return fmt.Errorf("TRANSCRIPT_TIMEZONE is invalid: %w", err)
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "DISCORD_TOKEN", value: c.DiscordToken},
		{name: "DISCORD_GUILD_ID", value: c.DiscordGuildID},
		{name: "TICKET_CATEGORY_ID", value: c.TicketCategoryID},
		{name: "TRIGGER_MARKER", value: c.TriggerMarker},
		{name: "LOG_CHANNEL_ID", value: c.LogChannelID},
		{name: "OPENAI_API_KEY", value: c.OpenAIAPIKey},
		{name: "CZR_BASE_URL", value: c.CzrBaseURL},
		{name: "NOTIFY_API_SECRET", value: c.NotifyAPISecret},
	}
}

type positiveEnvField struct {
	name  string
	value int
}

func (c *Config) positiveFieldChecks() []positiveEnvField {
	return []positiveEnvField{
		{name: "SESSION_IDLE_TIMEOUT_MIN", value: c.SessionIdleTimeoutMin},
		{name: "SESSION_SWEEP_INTERVAL_SEC", value: c.SessionSweepIntervalSec},
		{name: "VALIDATION_TIMEOUT_SEC", value: c.ValidationTimeoutSec},
		{name: "JOINER_MAX_WAIT_HOURS", value: c.JoinerMaxWaitHours},
		{name: "MAX_STAY_DAYS", value: c.MaxStayDays},
		{name: "NOTIFY_INTERVAL_MS", value: c.NotifyIntervalMs},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// PublicationChannelID falls back to the audit channel when no dedicated channel is configured.
func (c *Config) PublicationChannelID(debug bool) string {
	if debug {
		if c.DebugPublishChannelID != "" {
			return c.DebugPublishChannelID
		}
		return c.LogChannelID
	}
	if c.PublishChannelID != "" {
		return c.PublishChannelID
	}
	return c.LogChannelID
}

func (c *Config) SessionIdleTimeout() time.Duration {
	return time.Duration(c.SessionIdleTimeoutMin) * time.Minute
}

func (c *Config) SessionSweepInterval() time.Duration {
	return time.Duration(c.SessionSweepIntervalSec) * time.Second
}

func (c *Config) ValidationTimeout() time.Duration {
	return time.Duration(c.ValidationTimeoutSec) * time.Second
}

func (c *Config) JoinerMaxWait() time.Duration {
	return time.Duration(c.JoinerMaxWaitHours) * time.Hour
}

func (c *Config) MaxStay() time.Duration {
	return time.Duration(c.MaxStayDays) * 24 * time.Hour
}

func (c *Config) NotifyInterval() time.Duration {
	return time.Duration(c.NotifyIntervalMs) * time.Millisecond
}

func (c *Config) MemberSyncThrottle() time.Duration {
	return time.Duration(c.MemberSyncThrottleMs) * time.Millisecond
}

// Location returns the transcript timezone, or UTC when it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TranscriptTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
