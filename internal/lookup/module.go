package lookup

import (
	"doclookup/internal/config"
	"doclookup/internal/odata"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"lookup",
		fx.Provide(func(cfg config.Config) (Definitions, error) {
			return LoadDefinitions(cfg.DefinitionsFile)
		}),
		fx.Provide(func(cfg config.Config, client *odata.Client, defs Definitions, logger *zap.Logger) *Service {
			return NewService(client, defs, Options{
				PageSize:        cfg.PageSize,
				SuggestionLimit: cfg.SuggestionLimit,
			}, logger)
		}),
	)
}
