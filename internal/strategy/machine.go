package strategy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"grail_maker/internal/ladder"
	"grail_maker/internal/marketview"
	"grail_maker/internal/metrics"
	"grail_maker/internal/models"
)

// TransitionHook вызывается после смены состояния, до Output нового.
type TransitionHook func(ctx context.Context, instrument int64, from, to models.StrategyTag)

type Option func(*Machine)

func WithQuoter(q Quoter) Option {
	return func(m *Machine) { m.quoter = q }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Machine) { m.log = l }
}

func WithTransitionHook(h TransitionHook) Option {
	return func(m *Machine) { m.hooks = append(m.hooks, h) }
}

// Machine держит текущее состояние одного персонажа и таблицу переходов.
// Не потокобезопасен, им владеет одна сессия.
type Machine struct {
	view    *marketview.MarketView
	states  map[models.StrategyTag]State
	current models.StrategyTag

	quoter Quoter
	hooks  []TransitionHook
	log    *zap.Logger
}

func NewMachine(view *marketview.MarketView, start models.StrategyTag, opts ...Option) (*Machine, error) {
	m := &Machine{
		view: view,
		log:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With(zap.Int64("instrument", view.Instrument()))

	e := &env{
		view: view,
		rec:  ladder.NewReconciler(view, m.log),
		log:  m.log,
	}
	m.states = make(map[models.StrategyTag]State, len(allTags))
	for _, tag := range allTags {
		s, err := newState(tag, e, m.quoter)
		if err != nil {
			return nil, err
		}
		m.states[tag] = s
	}

	if _, ok := m.states[start]; !ok {
		return nil, fmt.Errorf("unknown start strategy %q", start)
	}
	m.current = start
	return m, nil
}

func (m *Machine) Current() models.StrategyTag { return m.current }

// Step один цикл: Transition текущего состояния, затем Output того,
// в котором автомат оказался.
func (m *Machine) Step(ctx context.Context) error {
	from := m.current
	next, err := m.states[from].Transition(ctx)
	if err != nil {
		return fmt.Errorf("%s transition: %w", from, err)
	}
	if _, ok := m.states[next]; !ok {
		return fmt.Errorf("%s transition: unknown strategy %q", from, next)
	}

	if next != from {
		m.current = next
		metrics.Transitions.WithLabelValues(string(from), string(next)).Inc()
		m.log.Info("strategy transition", zap.String("from", string(from)), zap.String("to", string(next)))
		for _, h := range m.hooks {
			h(ctx, m.view.Instrument(), from, next)
		}
	}

	if err := m.states[m.current].Output(ctx); err != nil {
		return fmt.Errorf("%s output: %w", m.current, err)
	}
	return nil
}
