package postgres

import (
	"context"
	"fmt"

	"grail_maker/pkg/db"
)

// Connect поднимает пул и проверяет соединение.
func Connect(ctx context.Context, dsn string) (*db.PgTxManager, error) {
	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN: dsn,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create poolMaster: %w", err)
	}

	err = poolMaster.Ping(ctx)
	if err != nil {
		poolMaster.Close()
		return nil, err
	}

	return db.NewPgTxManager(poolMaster), nil
}
