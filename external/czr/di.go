package czr

import (
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/joiner"
	"github.com/comzer-gov/casbot/internal/registry"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewClient(Options{
			BaseURL:       cfg.CzrBaseURL,
			APIToken:      cfg.CzrAPIToken,
			CitizenAPIKey: cfg.CzrCitizenAPIKey,
			BridgeKey:     cfg.CzrBridgeKey,
			BridgeSecret:  cfg.CzrBridgeSecret,
		}), nil
	})
	do.Provide(injector, func(i do.Injector) (joiner.Matcher, error) {
		return do.MustInvoke[*Client](i), nil
	})
	do.Provide(injector, func(i do.Injector) (registry.Ledger, error) {
		return do.MustInvoke[*Client](i), nil
	})
	do.Provide(injector, func(i do.Injector) (registry.Directory, error) {
		return do.MustInvoke[*Client](i), nil
	})
	do.Provide(injector, func(i do.Injector) (registry.HealthChecker, error) {
		return do.MustInvoke[*Client](i), nil
	})
}
