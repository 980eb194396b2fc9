package httpapi

import (
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/notify"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		queue := do.MustInvoke[*notify.Queue](i)
		return NewServer(cfg.HTTPAddr, cfg.NotifyAPISecret, queue), nil
	})
}
