package bot

import (
	"github.com/samber/do/v2"

	"github.com/stefs/evelyn-reminder/internal/discord"
	"github.com/stefs/evelyn-reminder/internal/engine"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Bot, error) {
		eng := do.MustInvoke[*engine.Engine](i)
		client := do.MustInvoke[discord.Client](i)
		return New(eng, client), nil
	})
}
