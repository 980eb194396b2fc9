package registry

import (
	"context"
	"log/slog"
	"time"

	"github.com/comzer-gov/casbot/internal/discord"
	"golang.org/x/time/rate"
)

const memberUpsertTimeout = 30 * time.Second

// Syncer mirrors guild members into the citizen ledger.
type Syncer struct {
	guildID         string
	diplomatRoleIDs []string
	discord         discord.Client
	ledger          Ledger
	throttle        time.Duration
}

func NewSyncer(guildID string, diplomatRoleIDs []string, dc discord.Client, ledger Ledger, throttle time.Duration) *Syncer {
	return &Syncer{
		guildID:         guildID,
		diplomatRoleIDs: diplomatRoleIDs,
		discord:         dc,
		ledger:          ledger,
		throttle:        throttle,
	}
}

func (s *Syncer) record(m discord.Member) MemberRecord {
	roles := append([]string(nil), m.RoleIDs...)
	if roles == nil {
		roles = []string{}
	}
	return MemberRecord{
		GuildID:     s.guildID,
		DiscordID:   m.UserID,
		DiscordName: m.Username,
		DisplayName: m.DisplayName,
		Group:       InferGroup(m.RoleIDs, s.diplomatRoleIDs),
		Roles:       roles,
	}
}

// HandleMemberEvent upserts a joined or updated member in the background.
func (s *Syncer) HandleMemberEvent(event discord.MemberEvent) {
	if event.GuildID != s.guildID || event.Member.IsBot {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), memberUpsertTimeout)
		defer cancel()
		if err := s.SyncMember(ctx, event.Member); err != nil {
			slog.Error("failed to sync member", "error", err, "user_id", event.Member.UserID)
		}
	}()
}

func (s *Syncer) SyncMember(ctx context.Context, m discord.Member) error {
	if err := s.ledger.UpsertMember(ctx, s.record(m)); err != nil {
		return err
	}
	slog.Debug("member synced", "user_id", m.UserID)
	return nil
}

// FullSync pushes every non-bot member, paced by the configured throttle.
// Individual failures are logged and skipped.
func (s *Syncer) FullSync(ctx context.Context) error {
	members, err := s.discord.ListGuildMembers(ctx, s.guildID)
	if err != nil {
		return err
	}
	slog.Info("full member sync started", "members", len(members))
	limiter := rate.NewLimiter(rate.Every(s.throttle), 1)
	synced, failed := 0, 0
	for _, m := range members {
		if m.IsBot {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return err
		}
		if err := s.SyncMember(ctx, m); err != nil {
			failed++
			slog.Error("full sync member failed", "error", err, "user_id", m.UserID)
			continue
		}
		synced++
	}
	slog.Info("full member sync completed", "synced", synced, "failed", failed)
	return nil
}
