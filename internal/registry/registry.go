package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
)

var (
	ErrCitizenNotFound = errors.New("citizen is not registered")
	ErrUnauthorized    = errors.New("citizen registry rejected the api key")
)

type Group string

const (
	GroupCitizen  Group = "citizen"
	GroupDiplomat Group = "diplomat"
)

// MemberRecord is the ledger row pushed for every guild member.
type MemberRecord struct {
	GuildID     string   `json:"guild_id"`
	DiscordID   string   `json:"discord_id"`
	DiscordName string   `json:"discord_name"`
	DisplayName string   `json:"display_name"`
	Group       Group    `json:"group"`
	Roles       []string `json:"roles"`
}

type Ledger interface {
	UpsertMember(ctx context.Context, record MemberRecord) error
}

// Directory looks up a citizen's registry entry by Discord id.
// It returns ErrCitizenNotFound or ErrUnauthorized for the two answers callers render specially.
type Directory interface {
	CitizenInfo(ctx context.Context, discordID string) (map[string]any, error)
}

type HealthChecker interface {
	Healthz(ctx context.Context) error
}

func InferGroup(roleIDs, diplomatRoleIDs []string) Group {
	for _, id := range roleIDs {
		if slices.Contains(diplomatRoleIDs, id) {
			return GroupDiplomat
		}
	}
	return GroupCitizen
}

// FormatValue renders a registry value for display. Arrays, including arrays
// encoded as JSON strings, are joined with ", "; empty values become fallback.
func FormatValue(v any, fallback string) string {
	switch t := v.(type) {
	case nil:
		return fallback
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return fallback
		}
		if strings.HasPrefix(s, "[") {
			var list []any
			if err := json.Unmarshal([]byte(s), &list); err == nil {
				return joinValues(list, fallback)
			}
		}
		return s
	case []any:
		return joinValues(t, fallback)
	case bool:
		if !t {
			return fallback
		}
		return "true"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

func joinValues(list []any, fallback string) string {
	parts := make([]string, 0, len(list))
	for _, item := range list {
		if s := FormatValue(item, ""); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return fallback
	}
	return strings.Join(parts, ", ")
}
