// Package storage хранит текущее состояние автомата по каждому персонажу,
// чтобы после рестарта сессия продолжала с того же места.
package storage

import (
	"context"
	"errors"
	"sync"

	"grail_maker/internal/models"
)

var ErrNotFound = errors.New("strategy state not found")

type StateStore interface {
	// Load возвращает ErrNotFound, если по персонажу ещё ничего не сохранено.
	Load(ctx context.Context, instrument int64) (models.StrategyRecord, error)
	Save(ctx context.Context, rec models.StrategyRecord) error
	Close() error
}

// Memory хранилище в памяти процесса, для driver: memory и тестов.
type Memory struct {
	mu   sync.RWMutex
	data map[int64]models.StrategyRecord
}

func NewMemory() *Memory {
	return &Memory{data: make(map[int64]models.StrategyRecord)}
}

func (m *Memory) Load(_ context.Context, instrument int64) (models.StrategyRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[instrument]
	if !ok {
		return models.StrategyRecord{}, ErrNotFound
	}
	return rec, nil
}

func (m *Memory) Save(_ context.Context, rec models.StrategyRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[rec.Instrument] = rec
	return nil
}

func (m *Memory) Close() error { return nil }
