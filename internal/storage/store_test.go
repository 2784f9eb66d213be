package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"grail_maker/internal/models"
)

func setupSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "state", "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) StateStore{
		"memory": func(*testing.T) StateStore { return NewMemory() },
		"sqlite": func(t *testing.T) StateStore { return setupSQLite(t) },
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			s := open(t)
			ctx := context.Background()

			if _, err := s.Load(ctx, 1); !errors.Is(err, ErrNotFound) {
				t.Fatalf("Load on empty store: err = %v, want ErrNotFound", err)
			}

			at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			if err := s.Save(ctx, models.StrategyRecord{Instrument: 1, Tag: models.StrategyBalance, UpdatedAt: at}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := s.Save(ctx, models.StrategyRecord{Instrument: 2, Tag: models.StrategyIgnore, UpdatedAt: at}); err != nil {
				t.Fatalf("Save: %v", err)
			}

			// Повторная запись перезаписывает.
			later := at.Add(time.Minute)
			if err := s.Save(ctx, models.StrategyRecord{Instrument: 1, Tag: models.StrategyCloseOut, UpdatedAt: later}); err != nil {
				t.Fatalf("Save update: %v", err)
			}

			rec, err := s.Load(ctx, 1)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if rec.Instrument != 1 || rec.Tag != models.StrategyCloseOut || !rec.UpdatedAt.Equal(later) {
				t.Errorf("record = %+v", rec)
			}

			rec, err = s.Load(ctx, 2)
			if err != nil || rec.Tag != models.StrategyIgnore {
				t.Errorf("second instrument = %+v, %v", rec, err)
			}
		})
	}
}

func TestSQLiteRejectsUnknownTag(t *testing.T) {
	s := setupSQLite(t)
	if err := s.db.Create(&strategyRow{Instrument: 5, Tag: "scalp"}).Error; err != nil {
		t.Fatalf("raw insert: %v", err)
	}
	if _, err := s.Load(context.Background(), 5); err == nil || errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want parse error", err)
	}
}
