package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"grail_maker/internal/modules/config"
	"grail_maker/internal/modules/grail_client"
	"grail_maker/internal/modules/health"
	"grail_maker/internal/modules/logging"
	"grail_maker/internal/modules/store"
	telegram "grail_maker/internal/modules/telegram_bot"
	"grail_maker/internal/runner"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		config.Module(),
		logging.Module(),
		grail_client.Module(),
		store.Module(),
		telegram.Module(),
		health.Module(),
		runner.Module(),
	)
	// Run блокируется до SIGINT/SIGTERM и гасит раннеры через OnStop
	app.Run()
}
