package registry

import (
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Syncer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		dc := do.MustInvoke[discord.Client](i)
		ledger := do.MustInvoke[Ledger](i)
		return NewSyncer(cfg.DiscordGuildID, cfg.DiplomatRoleIDs, dc, ledger, cfg.MemberSyncThrottle()), nil
	})
}
