package scheduler

import (
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/comzer-gov/casbot/internal/registry"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Scheduler, error) {
		cfg := do.MustInvoke[*config.Config](i)
		dc := do.MustInvoke[discord.Client](i)
		syncer := do.MustInvoke[*registry.Syncer](i)
		return New(Options{
			PresenceSpec:   cfg.PresenceSchedule,
			MemberSyncSpec: cfg.MemberSyncSchedule,
			Location:       cfg.Location(),
		}, dc, syncer)
	})
}
