package marketview

import "time"

// DefaultThrottle минимальный интервал между обновлениями одной категории.
const DefaultThrottle = 2 * time.Second

// Category независимая часть снимка рынка.
type Category int

const (
	CategoryPosition Category = iota
	CategoryInfo
	CategoryCharts
	CategoryDepth
)

var categoryNames = [...]string{"position", "info", "charts", "depth"}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return "unknown"
}

// Phase момент относительно пачки мутаций.
type Phase string

const (
	PhaseBefore Phase = "before"
	PhaseAfter  Phase = "after"
)

type modeKind int

const (
	modeRespect modeKind = iota
	modeForce
	modePhase
)

// RefreshMode как обновлять категорию: Force, Respect или OnPhase(label).
type RefreshMode struct {
	kind  modeKind
	phase Phase
}

// Force всегда идёт в сеть и сдвигает таймер.
func Force() RefreshMode { return RefreshMode{kind: modeForce} }

// Respect идёт в сеть только если таймер истёк.
func Respect() RefreshMode { return RefreshMode{kind: modeRespect} }

// OnPhase форсирует обновление только в указанной фазе.
func OnPhase(p Phase) RefreshMode { return RefreshMode{kind: modePhase, phase: p} }

// At разворачивает OnPhase в Force или Respect для фазы вызывающего.
func (m RefreshMode) At(p Phase) RefreshMode {
	if m.kind != modePhase {
		return m
	}
	if m.phase == p {
		return Force()
	}
	return Respect()
}

func (m RefreshMode) IsForce() bool { return m.kind == modeForce }

func (m RefreshMode) String() string {
	switch m.kind {
	case modeForce:
		return "force"
	case modePhase:
		return "on_" + string(m.phase)
	default:
		return "respect"
	}
}

// Throttle таймер одной категории. Не потокобезопасен, им владеет MarketView.
type Throttle struct {
	delta time.Duration
	next  time.Time
}

func NewThrottle(delta time.Duration) Throttle {
	if delta <= 0 {
		delta = DefaultThrottle
	}
	return Throttle{delta: delta}
}

// Allow можно ли обновляться в момент now без форса.
func (t Throttle) Allow(now time.Time) bool {
	return !now.Before(t.next)
}

// Mark фиксирует обновление в момент now.
func (t *Throttle) Mark(now time.Time) {
	t.next = now.Add(t.delta)
}

func (t Throttle) NextAllowed() time.Time { return t.next }
