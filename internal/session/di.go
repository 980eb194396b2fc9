package session

import (
	"github.com/comzer-gov/casbot/internal/blacklist"
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/comzer-gov/casbot/internal/extraction"
	"github.com/comzer-gov/casbot/internal/identity"
	"github.com/comzer-gov/casbot/internal/joiner"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		debug := do.MustInvoke[*config.DebugSwitch](i)
		dc := do.MustInvoke[discord.Client](i)
		ext := do.MustInvoke[*extraction.Service](i)
		bl := do.MustInvoke[*blacklist.Service](i)
		id := do.MustInvoke[identity.Checker](i)
		matcher := do.MustInvoke[joiner.Matcher](i)
		return NewManager(cfg, debug, dc, ext, bl, id, matcher), nil
	})
}
