package store

import (
	"context"
	"fmt"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"grail_maker/internal/modules/config"
	"grail_maker/internal/modules/postgres"
	"grail_maker/internal/storage"
)

// NewStateStore выбирает хранилище по storage.driver.
func NewStateStore(ctx context.Context, lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (storage.StateStore, error) {
	var (
		s   storage.StateStore
		err error
	)
	switch cfg.Storage.Driver {
	case config.DriverMemory:
		s = storage.NewMemory()
	case config.DriverSQLite:
		s, err = storage.NewSQLite(cfg.Storage.Path)
	case config.DriverPostgres:
		s, err = newPostgres(ctx, cfg.Storage.DSN)
	default:
		err = fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, err
	}
	log.Info("state store ready", zap.String("driver", cfg.Storage.Driver))

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}

func newPostgres(ctx context.Context, dsn string) (*storage.Postgres, error) {
	tx, err := postgres.Connect(ctx, dsn)
	if err != nil {
		return nil, err
	}
	pg := storage.NewPostgres(tx)
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, nil
}

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			NewStateStore, // storage.StateStore
		),
	)
}
