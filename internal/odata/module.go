package odata

import "go.uber.org/fx"

func Module() fx.Option {
	return fx.Module(
		"odata",
		fx.Provide(NewClient),
	)
}
