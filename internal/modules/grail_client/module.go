package grail_client

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"grail_maker/internal/gateway"
	"grail_maker/internal/modules/config"
)

func NewClient(cfg *config.Config, log *zap.Logger) *gateway.Client {
	c := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.Gateway.BaseURL,
		Identity:  cfg.Gateway.Identity,
		UserAgent: cfg.Gateway.UserAgent,
		Timeout:   cfg.Gateway.Timeout,
	}, log.Named("gateway"))

	// новую куку только логируем, в конфиг не пишем
	c.OnIdentityRefresh(func(string) {
		log.Info("identity cookie refreshed")
	})
	return c
}

// Module HTTP-клиент биржи, он же gateway.Gateway для раннеров.
func Module() fx.Option {
	return fx.Module("grail_client",
		fx.Provide(
			NewClient, // *gateway.Client
			func(c *gateway.Client) gateway.Gateway {
				return c
			},
		),
	)
}
