package httpapi

import (
	"github.com/samber/do/v2"
	"github.com/stefs/evelyn-reminder/internal/config"
	"github.com/stefs/evelyn-reminder/internal/engine"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		eng := do.MustInvoke[*engine.Engine](i)
		return NewServer(eng, cfg.APIKey), nil
	})
}
