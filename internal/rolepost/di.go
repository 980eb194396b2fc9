package rolepost

import (
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/discord"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Service, error) {
		cfg := do.MustInvoke[*config.Config](i)
		modes, err := LoadModes(map[string][]string{
			ModeMinister: cfg.MinisterRoleIDs,
			ModeDiplomat: cfg.DiplomatRoleIDs,
			ModeExaminer: cfg.ExaminerRoleIDs,
		})
		if err != nil {
			return nil, err
		}
		return NewService(do.MustInvoke[discord.Client](i), modes), nil
	})
}
