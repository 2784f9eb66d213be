package runner

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"grail_maker/internal/gateway"
	"grail_maker/internal/models"
	"grail_maker/internal/modules/config"
	"grail_maker/internal/modules/health/service"
	"grail_maker/internal/notify"
	"grail_maker/internal/storage"
)

type managerParams struct {
	fx.In

	Cfg      *config.Config
	Gateway  gateway.Gateway
	Store    storage.StateStore
	Notifier notify.Notifier
	Health   *service.State
	Tracer   opentracing.Tracer
	Log      *zap.Logger
}

func NewManagerFromConfig(p managerParams) *Manager {
	return NewManager(
		Deps{
			Gateway:  p.Gateway,
			Store:    p.Store,
			Notifier: p.Notifier,
			Health:   p.Health,
			Tracer:   p.Tracer,
			Log:      p.Log.Named("runner"),
		},
		Settings{
			Interval: p.Cfg.Runner.Interval,
			Throttle: p.Cfg.Runner.Throttle,
			Strategy: models.StrategyTag(p.Cfg.Runner.Strategy),
		},
	)
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewManagerFromConfig, // *Manager
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			appCtx context.Context,
			cfg *config.Config,
			m *Manager,
			client *gateway.Client,
			n notify.Notifier,
			health *service.State,
			log *zap.Logger,
		) {
			if t, ok := n.(*notify.Telegram); ok {
				t.SetStatus(m.StatusText)
			}

			ctx, cancel := context.WithCancel(appCtx)
			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					for _, id := range cfg.Runner.Instruments {
						if err := m.RunFor(ctx, id); err != nil {
							cancel()
							m.StopAll()
							return err
						}
					}

					if cfg.Gateway.StreamURL != "" {
						activity := client.StreamActivity(ctx, cfg.Gateway.StreamURL, health.SetStreamConnected)
						go func() {
							for id := range activity {
								m.Wake(id)
							}
							if ctx.Err() == nil {
								log.Warn("activity stream closed, timer only")
							}
						}()
					}

					health.SetReady(true)
					n.Sendf("🚀 запущено персонажей: %d", len(cfg.Runner.Instruments))
					return nil
				},
				OnStop: func(_ context.Context) error {
					health.SetReady(false)
					cancel()
					m.StopAll()
					return nil
				},
			})
		}),
	)
}
