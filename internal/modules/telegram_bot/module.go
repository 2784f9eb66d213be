package telegram

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"grail_maker/internal/modules/config"
	"grail_maker/internal/notify"
)

// NewNotifier телеграм, если задан токен, иначе уведомления идут в лог.
func NewNotifier(cfg *config.Config, log *zap.Logger) (notify.Notifier, error) {
	if cfg.Telegram.Token == "" {
		log.Info("telegram token is empty, notifications go to log")
		return notify.NewStdout(log), nil
	}
	return notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log.Named("telegram"))
}

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			NewNotifier, // notify.Notifier
		),
		// long-polling только у настоящего бота
		fx.Invoke(
			func(lc fx.Lifecycle, appCtx context.Context, n notify.Notifier) {
				t, ok := n.(*notify.Telegram)
				if !ok {
					return
				}
				lc.Append(fx.Hook{
					OnStart: func(_ context.Context) error {
						return t.Start(appCtx)
					},
					OnStop: func(_ context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
