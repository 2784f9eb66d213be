package service

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SessionStatus последнее, что известно о сессии персонажа.
type SessionStatus struct {
	Instrument int64     `json:"instrument"`
	Strategy   string    `json:"strategy"`
	LastCycle  time.Time `json:"lastCycle"`
	LastError  string    `json:"lastError,omitempty"`
	Stopped    bool      `json:"stopped"`
}

type State struct {
	ready     atomic.Bool
	startedAt time.Time

	streamConnected atomic.Bool
	lastCycleUnix   atomic.Int64 // unix seconds

	mu       sync.RWMutex
	sessions map[int64]SessionStatus
}

func NewState() *State {
	return &State{
		startedAt: time.Now(),
		sessions:  make(map[int64]SessionStatus),
	}
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) SetStreamConnected(v bool) { s.streamConnected.Store(v) }
func (s *State) StreamConnected() bool     { return s.streamConnected.Load() }

func (s *State) LastCycle() time.Time {
	u := s.lastCycleUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }

// ReportSession обновляет статус сессии и время последнего цикла.
func (s *State) ReportSession(st SessionStatus) {
	if !st.LastCycle.IsZero() {
		s.lastCycleUnix.Store(st.LastCycle.Unix())
	}
	s.mu.Lock()
	s.sessions[st.Instrument] = st
	s.mu.Unlock()
}

func (s *State) ForgetSession(instrument int64) {
	s.mu.Lock()
	delete(s.sessions, instrument)
	s.mu.Unlock()
}

// Sessions статусы по возрастанию id.
func (s *State) Sessions() []SessionStatus {
	s.mu.RLock()
	out := make([]SessionStatus, 0, len(s.sessions))
	for _, st := range s.sessions {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out
}
