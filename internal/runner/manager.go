package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"grail_maker/internal/metrics"
	"grail_maker/internal/modules/health/service"
)

type entry struct {
	r      *Runner
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager управляет раннерами для разных персонажей. Персонажи
// независимы, каждый крутится в своей горутине.
type Manager struct {
	deps Deps
	set  Settings

	mu      sync.Mutex
	runners map[int64]*entry
}

func NewManager(deps Deps, set Settings) *Manager {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Manager{
		deps:    deps,
		set:     set,
		runners: make(map[int64]*entry),
	}
}

// RunFor стартует раннер для персонажа (если ещё не запущен).
func (m *Manager) RunFor(ctx context.Context, instrument int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, running := m.runners[instrument]; running {
		return fmt.Errorf("runner already running for instrument %d", instrument)
	}

	ctx, cancel := context.WithCancel(ctx)
	e := &entry{
		r:      New(instrument, m.deps, m.set),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	m.runners[instrument] = e
	metrics.ActiveSessions.Inc()

	go func() {
		defer close(e.done)
		defer metrics.ActiveSessions.Dec()

		_ = e.r.Run(ctx)

		// фатальная ошибка или остановка: выпиливаем раннер из мапы
		m.mu.Lock()
		if m.runners[instrument] == e {
			delete(m.runners, instrument)
		}
		m.mu.Unlock()
	}()

	return nil
}

// StopFor останавливает раннер и ждёт, пока он выйдет.
func (m *Manager) StopFor(instrument int64) error {
	m.mu.Lock()
	e, ok := m.runners[instrument]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("runner not running for instrument %d", instrument)
	}
	delete(m.runners, instrument)
	m.mu.Unlock()

	e.cancel()
	<-e.done
	if m.deps.Health != nil {
		m.deps.Health.ForgetSession(instrument)
	}
	return nil
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	entries := make([]*entry, 0, len(m.runners))
	for id, e := range m.runners {
		entries = append(entries, e)
		delete(m.runners, id)
	}
	m.mu.Unlock()

	for _, e := range entries {
		e.cancel()
	}
	for _, e := range entries {
		<-e.done
	}
}

// Wake внеочередной цикл для персонажа, если он ведётся.
func (m *Manager) Wake(instrument int64) {
	m.mu.Lock()
	e, ok := m.runners[instrument]
	m.mu.Unlock()
	if ok {
		e.r.Wake()
	}
}

func (m *Manager) Running() []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]int64, 0, len(m.runners))
	for id := range m.runners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (m *Manager) Statuses() []service.SessionStatus {
	m.mu.Lock()
	out := make([]service.SessionStatus, 0, len(m.runners))
	for _, e := range m.runners {
		out = append(out, e.r.Status())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}

// StatusText ответ на /status в телеграме.
func (m *Manager) StatusText() string {
	st := m.Statuses()
	if len(st) == 0 {
		return "📭 Активных персонажей нет"
	}
	var b strings.Builder
	b.WriteString("📊 Персонажи:\n")
	for _, s := range st {
		fmt.Fprintf(&b, "- #%d %s", s.Instrument, s.Strategy)
		if !s.LastCycle.IsZero() {
			fmt.Fprintf(&b, " (%s назад)", time.Since(s.LastCycle).Round(time.Second))
		}
		if s.LastError != "" {
			fmt.Fprintf(&b, " ❗️ %s", s.LastError)
		}
		b.WriteString("\n")
	}
	return b.String()
}
