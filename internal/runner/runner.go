package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"

	"grail_maker/internal/gateway"
	"grail_maker/internal/marketview"
	"grail_maker/internal/metrics"
	"grail_maker/internal/models"
	"grail_maker/internal/modules/health/service"
	"grail_maker/internal/notify"
	"grail_maker/internal/storage"
	"grail_maker/internal/strategy"
)

const defaultInterval = 10 * time.Second

// Deps общее для всех раннеров.
type Deps struct {
	Gateway  gateway.Gateway
	Store    storage.StateStore
	Notifier notify.Notifier
	Health   *service.State
	Tracer   opentracing.Tracer
	Log      *zap.Logger
}

type Settings struct {
	Interval time.Duration
	Throttle time.Duration
	// Strategy стартовое состояние, если в хранилище ничего нет.
	Strategy models.StrategyTag
	// Quoter для Balance, nil = держать текущие заявки.
	Quoter strategy.Quoter
}

// Runner ведёт один персонаж: transition+output по таймеру или по
// сигналу из стрима.
type Runner struct {
	instrument int64
	deps       Deps
	set        Settings
	log        *zap.Logger

	wake chan struct{}

	mu     sync.Mutex
	status service.SessionStatus
}

func New(instrument int64, deps Deps, set Settings) *Runner {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.NewStdout(deps.Log)
	}
	if deps.Tracer == nil {
		deps.Tracer = opentracing.NoopTracer{}
	}
	if set.Interval <= 0 {
		set.Interval = defaultInterval
	}
	if set.Strategy == "" {
		set.Strategy = models.StrategyIgnore
	}
	return &Runner{
		instrument: instrument,
		deps:       deps,
		set:        set,
		log:        deps.Log.With(zap.Int64("instrument", instrument)),
		wake:       make(chan struct{}, 1),
		status:     service.SessionStatus{Instrument: instrument},
	}
}

// Wake внеочередной цикл. Не блокирует, лишние сигналы схлопываются.
func (r *Runner) Wake() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

func (r *Runner) Status() service.SessionStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Run крутит цикл до отмены ctx (возвращает nil) или до фатальной ошибки
// (Unauthenticated, SchemaMismatch), которая возвращается как есть.
// Сетевые ошибки логируются, цикл повторяется на следующем тике.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.set.Interval)
	defer ticker.Stop()

	var m *strategy.Machine
	for {
		var err error
		if m == nil {
			m, err = r.init(ctx)
		}
		if m != nil && err == nil {
			err = r.cycle(ctx, m)
		}
		r.report(m, err)

		if err != nil {
			switch {
			case ctx.Err() != nil:
				return nil
			case gateway.IsFatal(err):
				metrics.Cycles.WithLabelValues("fatal").Inc()
				r.log.Error("runner stopped", zap.Error(err))
				r.deps.Notifier.Sendf("⛔️ #%d остановлен: %v", r.instrument, err)
				r.mu.Lock()
				r.status.Stopped = true
				r.mu.Unlock()
				r.publish()
				return err
			default:
				metrics.Cycles.WithLabelValues("retry").Inc()
				r.log.Warn("cycle failed, retry on next tick", zap.Error(err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.wake:
		}
	}
}

func (r *Runner) init(ctx context.Context) (*strategy.Machine, error) {
	view, err := marketview.New(ctx, r.deps.Gateway, r.instrument,
		marketview.WithLogger(r.log),
		marketview.WithThrottle(r.set.Throttle),
	)
	if err != nil {
		return nil, fmt.Errorf("init market view: %w", err)
	}

	start := r.startTag(ctx)
	opts := []strategy.Option{
		strategy.WithLogger(r.log),
		strategy.WithTransitionHook(r.onTransition),
	}
	if r.set.Quoter != nil {
		opts = append(opts, strategy.WithQuoter(r.set.Quoter))
	}
	m, err := strategy.NewMachine(view, start, opts...)
	if err != nil {
		return nil, err
	}
	r.save(ctx, start)
	r.log.Info("runner started", zap.String("name", view.Name()), zap.String("strategy", string(start)))
	return m, nil
}

func (r *Runner) startTag(ctx context.Context) models.StrategyTag {
	rec, err := r.deps.Store.Load(ctx, r.instrument)
	switch {
	case err == nil:
		return rec.Tag
	case errors.Is(err, storage.ErrNotFound):
	default:
		r.log.Warn("load strategy state", zap.Error(err))
	}
	return r.set.Strategy
}

func (r *Runner) cycle(ctx context.Context, m *strategy.Machine) error {
	cycleID := uuid.NewString()
	span := r.deps.Tracer.StartSpan("strategy.cycle")
	span.SetTag("instrument", r.instrument)
	span.SetTag("cycle_id", cycleID)
	span.SetTag("strategy", string(m.Current()))
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	started := time.Now()
	err := m.Step(ctx)
	metrics.CycleSeconds.Observe(time.Since(started).Seconds())

	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("error", err.Error())
		return err
	}
	metrics.Cycles.WithLabelValues("ok").Inc()
	r.log.Debug("cycle done",
		zap.String("cycle_id", cycleID),
		zap.String("strategy", string(m.Current())),
		zap.Duration("took", time.Since(started)))
	return nil
}

func (r *Runner) onTransition(ctx context.Context, instrument int64, from, to models.StrategyTag) {
	r.save(ctx, to)
	r.deps.Notifier.Sendf("#%d %s → %s", instrument, from, to)
}

func (r *Runner) save(ctx context.Context, tag models.StrategyTag) {
	rec := models.StrategyRecord{Instrument: r.instrument, Tag: tag, UpdatedAt: time.Now().UTC()}
	if err := r.deps.Store.Save(ctx, rec); err != nil {
		r.log.Warn("save strategy state", zap.Error(err))
	}
}

func (r *Runner) report(m *strategy.Machine, err error) {
	r.mu.Lock()
	r.status.LastCycle = time.Now()
	r.status.LastError = ""
	if err != nil {
		r.status.LastError = err.Error()
	}
	if m != nil {
		r.status.Strategy = string(m.Current())
	}
	r.mu.Unlock()
	r.publish()
}

func (r *Runner) publish() {
	if r.deps.Health != nil {
		r.deps.Health.ReportSession(r.Status())
	}
}
