package marketview

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grail_maker/internal/gateway"
	"grail_maker/internal/metrics"
	"grail_maker/internal/models"
)

var (
	// ErrInfoUnavailable вариант InstrumentInfo не определён или это ICO,
	// производные от рынка значения посчитать нельзя.
	ErrInfoUnavailable = errors.New("instrument market info unavailable")
	ErrNoCharts        = errors.New("no chart points")
)

// internalRate делитель rate для фундаментальной цены.
var internalRate = decimal.RequireFromString("0.1")

// MarketView кэш четырёх категорий состояния по паре (аккаунт, персонаж).
// Не потокобезопасен: один MarketView на одну сессию.
type MarketView struct {
	gw         gateway.Gateway
	instrument int64
	log        *zap.Logger
	now        func() time.Time

	position models.Position
	info     models.InstrumentInfo
	charts   []models.ChartPoint
	depth    models.Depth

	throttles [4]Throttle
}

type Option func(*MarketView)

func WithThrottle(d time.Duration) Option {
	return func(v *MarketView) {
		for i := range v.throttles {
			v.throttles[i] = NewThrottle(d)
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(v *MarketView) { v.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(v *MarketView) { v.log = l }
}

// New загружает все четыре категории без учёта троттлинга.
func New(ctx context.Context, gw gateway.Gateway, instrument int64, opts ...Option) (*MarketView, error) {
	v := &MarketView{
		gw:         gw,
		instrument: instrument,
		log:        zap.NewNop(),
		now:        time.Now,
	}
	for i := range v.throttles {
		v.throttles[i] = NewThrottle(DefaultThrottle)
	}
	for _, opt := range opts {
		opt(v)
	}
	v.log = v.log.With(zap.Int64("instrument", instrument))

	for c := CategoryPosition; c <= CategoryDepth; c++ {
		if err := v.Refresh(ctx, c, Force()); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Update обновляет все категории с учётом троттлинга.
func (v *MarketView) Update(ctx context.Context) error {
	for c := CategoryPosition; c <= CategoryDepth; c++ {
		if err := v.Refresh(ctx, c, Respect()); err != nil {
			return err
		}
	}
	return nil
}

// Refresh обновляет одну категорию. OnPhase должен быть развёрнут через At,
// неразвёрнутый ведёт себя как Respect.
func (v *MarketView) Refresh(ctx context.Context, c Category, mode RefreshMode) error {
	if !mode.IsForce() && !v.throttles[c].Allow(v.now()) {
		return nil
	}

	var err error
	switch c {
	case CategoryPosition:
		var p models.Position
		if p, err = v.gw.FetchPosition(ctx, v.instrument); err == nil {
			v.position = p
		}
	case CategoryInfo:
		var info models.InstrumentInfo
		if info, err = v.gw.FetchInstrumentInfo(ctx, v.instrument); err == nil {
			v.info = info
		}
	case CategoryCharts:
		var points []models.ChartPoint
		if points, err = v.gw.FetchCharts(ctx, v.instrument); err == nil {
			v.charts = points
		}
	case CategoryDepth:
		var d models.Depth
		if d, err = v.gw.FetchDepth(ctx, v.instrument); err == nil {
			v.depth = d
		}
	default:
		return fmt.Errorf("unknown category %d", c)
	}
	if err != nil {
		return fmt.Errorf("refresh %s: %w", c, err)
	}

	v.throttles[c].Mark(v.now())
	metrics.Refreshes.WithLabelValues(c.String()).Inc()
	v.log.Debug("refreshed", zap.Stringer("category", c), zap.Stringer("mode", mode))
	return nil
}

// NextAllowed когда категорию можно обновить без форса.
func (v *MarketView) NextAllowed(c Category) time.Time { return v.throttles[c].NextAllowed() }

func (v *MarketView) Instrument() int64 { return v.instrument }

func (v *MarketView) Position() models.Position {
	p := v.position
	p.Bids = append(models.Ladder(nil), v.position.Bids...)
	p.Asks = append(models.Ladder(nil), v.position.Asks...)
	return p
}

func (v *MarketView) Bids() models.Ladder  { return append(models.Ladder(nil), v.position.Bids...) }
func (v *MarketView) Asks() models.Ladder  { return append(models.Ladder(nil), v.position.Asks...) }
func (v *MarketView) Amount() int64        { return v.position.Amount }
func (v *MarketView) TotalHolding() int64  { return v.position.TotalHolding }
func (v *MarketView) Info() models.InstrumentInfo { return v.info }

func (v *MarketView) Charts() []models.ChartPoint {
	return append([]models.ChartPoint(nil), v.charts...)
}

func (v *MarketView) Depth() models.Depth {
	return models.Depth{
		Bids: append(models.Ladder(nil), v.depth.Bids...),
		Asks: append(models.Ladder(nil), v.depth.Asks...),
	}
}

func (v *MarketView) Name() string {
	if v.info == nil {
		return ""
	}
	return v.info.InstrumentName()
}

func (v *MarketView) IsOffering() bool {
	_, ok := v.info.(models.OfferingInfo)
	return ok
}

func (v *MarketView) IsOnMarket() bool {
	_, ok := v.info.(models.MarketInfo)
	return ok
}

func (v *MarketView) market() (models.MarketInfo, error) {
	m, ok := v.info.(models.MarketInfo)
	if !ok {
		return models.MarketInfo{}, fmt.Errorf("instrument %d: %w", v.instrument, ErrInfoUnavailable)
	}
	return m, nil
}

func (v *MarketView) CurrentPrice() (decimal.Decimal, error) {
	m, err := v.market()
	if err != nil {
		return decimal.Zero, err
	}
	return m.Current, nil
}

func (v *MarketView) CurrentPriceRounded() (decimal.Decimal, error) {
	p, err := v.CurrentPrice()
	return p.Round(2), err
}

// ExchangePrice цена, по которой сейчас реально исполняются сделки.
func (v *MarketView) ExchangePrice() (decimal.Decimal, error) {
	return v.CurrentPriceRounded()
}

// InitialPrice цена открытия самой ранней точки графика.
func (v *MarketView) InitialPrice() (decimal.Decimal, error) {
	if len(v.charts) == 0 {
		return decimal.Zero, fmt.Errorf("instrument %d: %w", v.instrument, ErrNoCharts)
	}
	return v.charts[0].Begin, nil
}

func (v *MarketView) InitialPriceRounded() (decimal.Decimal, error) {
	p, err := v.InitialPrice()
	return p.Round(2), err
}

// Fundamental rate / 0.1. Перед расчётом обновляет info с учётом троттлинга.
func (v *MarketView) Fundamental(ctx context.Context) (decimal.Decimal, error) {
	if err := v.Refresh(ctx, CategoryInfo, Respect()); err != nil {
		return decimal.Zero, err
	}
	m, err := v.market()
	if err != nil {
		return decimal.Zero, err
	}
	return m.Rate.Div(internalRate), nil
}

func (v *MarketView) FundamentalRounded(ctx context.Context) (decimal.Decimal, error) {
	f, err := v.Fundamental(ctx)
	return f.Round(2), err
}
