package logging

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"grail_maker/internal/modules/config"
	"grail_maker/pkg/logger"
	"grail_maker/pkg/tracing"
)

func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(cfg.Service.Name)
	return logger.New(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
}

func NewTracer(lc fx.Lifecycle, cfg *config.Config) (opentracing.Tracer, error) {
	tracing.SetServiceName(cfg.Service.Name)
	tracer, closer, err := tracing.InitTracer(tracing.Config{
		Enabled: cfg.Tracing.Enabled,
		Host:    cfg.Tracing.Host,
		Port:    cfg.Tracing.Port,
	})
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closer()
			return nil
		},
	})
	return tracer, nil
}

// Module zap-логгер и трейсер.
func Module() fx.Option {
	return fx.Module("logging",
		fx.Provide(
			NewLogger, // *zap.Logger
			NewTracer, // opentracing.Tracer
		),
		fx.Invoke(func(cfg *config.Config, log *zap.Logger) {
			log.Info("config loaded\n" + cfg.Dump())
		}),
	)
}
