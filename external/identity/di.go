package identity

import (
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/identity"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*HTTPChecker, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewHTTPChecker(cfg.MojangAPIBaseURL, cfg.PlayerDBAPIBaseURL), nil
	})
	do.Provide(injector, func(i do.Injector) (identity.Checker, error) {
		return do.MustInvoke[*HTTPChecker](i), nil
	})
	do.Provide(injector, func(i do.Injector) (identity.Pinger, error) {
		return do.MustInvoke[*HTTPChecker](i), nil
	})
}
