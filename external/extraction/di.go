package extraction

import (
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/extraction"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (extraction.Extractor, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewOpenAIExtractor(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	})
	do.Provide(injector, func(i do.Injector) (*extraction.Service, error) {
		return extraction.NewService(do.MustInvoke[extraction.Extractor](i)), nil
	})
}
