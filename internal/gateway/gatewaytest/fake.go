// Package gatewaytest in-memory биржа для тестов ядра.
package gatewaytest

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"grail_maker/internal/gateway"
	"grail_maker/internal/models"
)

type Op string

const (
	OpCreate Op = "create"
	OpCancel Op = "cancel"
)

// Call одна мутация в порядке поступления.
type Call struct {
	Op    Op
	Order models.Order
}

// Fake хранит состояние одного аккаунта по любому числу персонажей.
// Созданные заявки попадают в позицию, отменённые из неё убираются.
type Fake struct {
	mu sync.Mutex

	positions map[int64]*models.Position
	infos     map[int64]models.InstrumentInfo
	charts    map[int64][]models.ChartPoint
	depths    map[int64]models.Depth

	nextID int64
	calls  []Call
	counts map[string]int

	// Reject если вернул true, мутация не подтверждается.
	Reject func(Call) bool
	// Fill если вернул true, созданная заявка сразу исполняется.
	Fill func(models.Order) bool
	// Err если не nil, возвращается из любого вызова с этим именем
	// ("position", "info", "charts", "depth", "create", "cancel").
	Err map[string]error
}

var _ gateway.Gateway = (*Fake)(nil)

func New() *Fake {
	return &Fake{
		positions: make(map[int64]*models.Position),
		infos:     make(map[int64]models.InstrumentInfo),
		charts:    make(map[int64][]models.ChartPoint),
		depths:    make(map[int64]models.Depth),
		counts:    make(map[string]int),
		Err:       make(map[string]error),
		nextID:    1000,
	}
}

// SetPosition раздаёт id заявкам без id.
func (f *Fake) SetPosition(instrument int64, p models.Position) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p.Bids = f.assignIDs(p.Bids)
	p.Asks = f.assignIDs(p.Asks)
	f.positions[instrument] = &p
}

func (f *Fake) SetInfo(instrument int64, info models.InstrumentInfo) {
	f.mu.Lock()
	f.infos[instrument] = info
	f.mu.Unlock()
}

func (f *Fake) SetCharts(instrument int64, points []models.ChartPoint) {
	f.mu.Lock()
	f.charts[instrument] = points
	f.mu.Unlock()
}

func (f *Fake) SetDepth(instrument int64, d models.Depth) {
	f.mu.Lock()
	f.depths[instrument] = d
	f.mu.Unlock()
}

// SetErr потокобезопасная замена записи в Err.
func (f *Fake) SetErr(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Err, name)
		return
	}
	f.Err[name] = err
}

// Position текущее состояние на "бирже", не кэш.
func (f *Fake) Position(instrument int64) models.Position {
	f.mu.Lock()
	defer f.mu.Unlock()
	return clonePosition(f.position(instrument))
}

// Calls журнал мутаций.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

func (f *Fake) ResetCalls() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// Count сколько раз вызывался метод ("position", "info", "charts", "depth").
func (f *Fake) Count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[name]
}

func (f *Fake) FetchPosition(_ context.Context, instrument int64) (models.Position, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("position"); err != nil {
		return models.Position{}, err
	}
	return clonePosition(f.position(instrument)), nil
}

func (f *Fake) FetchInstrumentInfo(_ context.Context, instrument int64) (models.InstrumentInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("info"); err != nil {
		return nil, err
	}
	return f.infos[instrument], nil
}

func (f *Fake) FetchCharts(_ context.Context, instrument int64) ([]models.ChartPoint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("charts"); err != nil {
		return nil, err
	}
	return append([]models.ChartPoint(nil), f.charts[instrument]...), nil
}

func (f *Fake) FetchDepth(_ context.Context, instrument int64) (models.Depth, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("depth"); err != nil {
		return models.Depth{}, err
	}
	d := f.depths[instrument]
	return models.Depth{
		Bids: append(models.Ladder(nil), d.Bids...),
		Asks: append(models.Ladder(nil), d.Asks...),
	}, nil
}

func (f *Fake) CreateOrder(_ context.Context, instrument int64, side models.Side, price decimal.Decimal, amount int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("create"); err != nil {
		return false, err
	}
	o := models.Order{Side: side, Price: price, Amount: amount}
	call := Call{Op: OpCreate, Order: o}
	f.calls = append(f.calls, call)
	if f.Reject != nil && f.Reject(call) {
		return false, nil
	}

	p := f.position(instrument)
	filled := f.Fill != nil && f.Fill(o)
	switch side {
	case models.SideBid:
		if filled {
			p.Amount += amount
			p.TotalHolding += amount
			return true, nil
		}
		o.ID = f.id()
		p.Bids = append(p.Bids, o)
	case models.SideAsk:
		p.Amount -= amount
		if filled {
			p.TotalHolding -= amount
			return true, nil
		}
		o.ID = f.id()
		p.Asks = append(p.Asks, o)
	}
	return true, nil
}

func (f *Fake) CancelOrder(_ context.Context, order models.Order) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.hit("cancel"); err != nil {
		return false, err
	}
	call := Call{Op: OpCancel, Order: order}
	f.calls = append(f.calls, call)
	if f.Reject != nil && f.Reject(call) {
		return false, nil
	}

	for _, p := range f.positions {
		switch order.Side {
		case models.SideBid:
			if l, ok := remove(p.Bids, order.ID); ok {
				p.Bids = l
				return true, nil
			}
		case models.SideAsk:
			if l, ok := remove(p.Asks, order.ID); ok {
				p.Asks = l
				p.Amount += order.Amount
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *Fake) hit(name string) error {
	f.counts[name]++
	return f.Err[name]
}

func (f *Fake) id() int64 {
	f.nextID++
	return f.nextID
}

func (f *Fake) assignIDs(l models.Ladder) models.Ladder {
	out := make(models.Ladder, len(l))
	for i, o := range l {
		if o.ID == 0 {
			o.ID = f.id()
		}
		out[i] = o
	}
	return out
}

func (f *Fake) position(instrument int64) *models.Position {
	p, ok := f.positions[instrument]
	if !ok {
		p = &models.Position{}
		f.positions[instrument] = p
	}
	return p
}

func clonePosition(p *models.Position) models.Position {
	out := *p
	out.Bids = append(models.Ladder(nil), p.Bids...)
	out.Asks = append(models.Ladder(nil), p.Asks...)
	return out
}

func remove(l models.Ladder, id int64) (models.Ladder, bool) {
	for i, o := range l {
		if o.ID == id {
			out := append(models.Ladder(nil), l[:i]...)
			return append(out, l[i+1:]...), true
		}
	}
	return l, false
}
