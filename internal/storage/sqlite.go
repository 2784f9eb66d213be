package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"grail_maker/internal/models"
)

// strategyRow строка таблицы strategy_state.
type strategyRow struct {
	Instrument int64     `gorm:"primaryKey;autoIncrement:false"`
	Tag        string    `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime:false"`
}

func (strategyRow) TableName() string { return "strategy_state" }

// SQLite StateStore в локальном файле, без внешней базы.
type SQLite struct {
	db *gorm.DB
}

func NewSQLite(path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create DB directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&strategyRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context, instrument int64) (models.StrategyRecord, error) {
	var row strategyRow
	err := s.db.WithContext(ctx).First(&row, "instrument = ?", instrument).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.StrategyRecord{}, ErrNotFound
	}
	if err != nil {
		return models.StrategyRecord{}, fmt.Errorf("SQLite.Load: %w", err)
	}

	tag, err := models.ParseStrategyTag(row.Tag)
	if err != nil {
		return models.StrategyRecord{}, fmt.Errorf("SQLite.Load: %w", err)
	}
	return models.StrategyRecord{Instrument: row.Instrument, Tag: tag, UpdatedAt: row.UpdatedAt}, nil
}

func (s *SQLite) Save(ctx context.Context, rec models.StrategyRecord) error {
	row := strategyRow{Instrument: rec.Instrument, Tag: string(rec.Tag), UpdatedAt: rec.UpdatedAt}
	if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
		return fmt.Errorf("SQLite.Save: %w", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
