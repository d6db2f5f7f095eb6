package internal

import (
	"context"

	"doclookup/internal/cli"
	"doclookup/internal/config"
	"doclookup/internal/logging"
	"doclookup/internal/lookup"
	"doclookup/internal/metrics"
	"doclookup/internal/odata"

	"github.com/go-core-fx/logger"
	"go.uber.org/fx"
)

func options() fx.Option {
	return fx.Options(
		logger.Module(),
		logger.WithFxDefaultLogger(),
		config.Module(),
		logging.Module(),
		odata.Module(),
		lookup.Module(),
		metrics.Module(),
		cli.Module(),
	)
}

func Run() error {
	var runner *cli.Runner

	app := fx.New(
		options(),
		fx.Populate(&runner),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = app.Stop(ctx)
	}()

	return runner.Execute()
}
