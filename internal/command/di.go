package command

import (
	"context"

	"github.com/comzer-gov/casbot/internal/blacklist"
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/identity"
	"github.com/comzer-gov/casbot/internal/registry"
	"github.com/comzer-gov/casbot/internal/rolepost"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Router, error) {
		cfg := do.MustInvoke[*config.Config](i)
		bl := do.MustInvoke[*blacklist.Service](i)
		health := do.MustInvoke[registry.HealthChecker](i)
		pinger := do.MustInvoke[identity.Pinger](i)

		probes := []Probe{
			{Label: "国民名簿", Check: health.Healthz},
			{Label: "ブラックリスト", Check: bl.Ping},
			{Label: "Mojang API", Check: func(ctx context.Context) error { return pinger.Ping(ctx, identity.EditionJava) }},
			{Label: "Bedrock API", Check: func(ctx context.Context) error { return pinger.Ping(ctx, identity.EditionBedrock) }},
		}
		return NewRouter(Options{
			MinisterRoleIDs: cfg.MinisterRoleIDs,
			DiplomatRoleIDs: cfg.DiplomatRoleIDs,
			CitizenRoleIDs:  cfg.CitizenRoleIDs,
			Location:        cfg.Location(),
		},
			do.MustInvoke[*config.DebugSwitch](i),
			bl,
			do.MustInvoke[registry.Directory](i),
			do.MustInvoke[*rolepost.Service](i),
			probes,
		), nil
	})
}
