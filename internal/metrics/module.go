package metrics

import (
	"context"

	"doclookup/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func Module() fx.Option {
	return fx.Module(
		"metrics",
		fx.Invoke(func(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) {
			RegisterLookupMetrics()
			if cfg.MetricsAddr == "" {
				return
			}
			srv := NewServer(cfg.MetricsAddr, logger)
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					return srv.Start()
				},
				OnStop: func(ctx context.Context) error {
					return srv.Stop(ctx)
				},
			})
		}),
	)
}
