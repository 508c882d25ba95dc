package dispatch

import (
	"github.com/samber/do/v2"

	"github.com/stefs/evelyn-reminder/internal/config"
	"github.com/stefs/evelyn-reminder/internal/discord"
	"github.com/stefs/evelyn-reminder/internal/engine"
	"github.com/stefs/evelyn-reminder/internal/webhook"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Dispatcher, error) {
		cfg := do.MustInvoke[*config.Config](i)
		eng := do.MustInvoke[*engine.Engine](i)
		sender := do.MustInvoke[webhook.Sender](i)
		var client discord.Client
		if cfg.DiscordEnabled() {
			client = do.MustInvoke[discord.Client](i)
		}
		return New(eng, client, sender, cfg.CheckSchedule), nil
	})
}
