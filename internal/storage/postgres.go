package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"grail_maker/internal/models"
	"grail_maker/pkg/db"
)

const (
	pgSchema = `CREATE TABLE IF NOT EXISTS strategy_state (
	instrument BIGINT PRIMARY KEY,
	tag        TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`

	pgUpsert = `INSERT INTO strategy_state (instrument, tag, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (instrument) DO UPDATE SET tag = EXCLUDED.tag, updated_at = EXCLUDED.updated_at`

	pgSelect = `SELECT tag, updated_at FROM strategy_state WHERE instrument = $1`
)

// Postgres StateStore поверх pgx пула.
type Postgres struct {
	db *db.PgTxManager
}

func NewPostgres(tm *db.PgTxManager) *Postgres {
	return &Postgres{db: tm}
}

// Migrate создаёт таблицу, если её нет.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.db.Conn().Exec(ctx, pgSchema); err != nil {
		return fmt.Errorf("Postgres.Migrate: %w", err)
	}
	return nil
}

func (p *Postgres) Load(ctx context.Context, instrument int64) (rec models.StrategyRecord, err error) {
	defer func() {
		if err != nil && !errors.Is(err, ErrNotFound) {
			err = fmt.Errorf("Postgres.Load: %w", err)
		}
	}()

	var tag string
	err = p.db.Conn().QueryRow(ctx, pgSelect, instrument).Scan(&tag, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.StrategyRecord{}, ErrNotFound
	}
	if err != nil {
		return models.StrategyRecord{}, err
	}

	rec.Instrument = instrument
	rec.Tag, err = models.ParseStrategyTag(tag)
	return rec, err
}

func (p *Postgres) Save(ctx context.Context, rec models.StrategyRecord) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("Postgres.Save: %w", err)
		}
	}()
	return p.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, pgUpsert, rec.Instrument, string(rec.Tag), rec.UpdatedAt)
		return err
	})
}

func (p *Postgres) Close() error {
	p.db.Close()
	return nil
}
