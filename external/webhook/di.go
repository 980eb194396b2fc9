package webhook

import (
	"github.com/comzer-gov/casbot/internal/config"
	"github.com/comzer-gov/casbot/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*webhook.Forwarder, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return webhook.NewForwarder(NewDiscordSender(cfg.LogWebhookURL)), nil
	})
}
