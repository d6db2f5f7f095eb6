package logging

import (
	"context"
	"os"

	"doclookup/internal/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module tees the application logger into the configured log file. The
// decorator sits outside the named module so every consumer sees it.
func Module() fx.Option {
	return fx.Options(
		fx.Decorate(func(base *zap.Logger, cfg config.Config, file *os.File) *zap.Logger {
			return AttachFileLogger(base, file, cfg)
		}),
		fx.Module(
			"logging",
			fx.Provide(func(cfg config.Config) (*os.File, error) {
				return OpenLogFile(cfg.LogFile)
			}),
			fx.Invoke(func(lc fx.Lifecycle, file *os.File, logger *zap.Logger) {
				if file == nil {
					return
				}
				lc.Append(fx.Hook{
					OnStop: func(_ context.Context) error {
						_ = logger.Sync()
						return file.Close()
					},
				})
			}),
		),
	)
}
