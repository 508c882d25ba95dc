package engine

import (
	"github.com/samber/do/v2"
	"github.com/stefs/evelyn-reminder/internal/reminder"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Engine, error) {
		repo := do.MustInvoke[reminder.Repository](i)
		return New(repo), nil
	})
}
