package marketview

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"grail_maker/internal/metrics"
	"grail_maker/internal/models"
)

type mutateOptions struct {
	refresh bool
}

type MutateOption func(*mutateOptions)

// WithForcedRefresh после мутации принудительно перечитывает позицию.
func WithForcedRefresh() MutateOption {
	return func(o *mutateOptions) { o.refresh = true }
}

func (v *MarketView) CreateBid(ctx context.Context, o models.Order, opts ...MutateOption) (bool, error) {
	o.Side = models.SideBid
	return v.Create(ctx, o, opts...)
}

func (v *MarketView) CreateAsk(ctx context.Context, o models.Order, opts ...MutateOption) (bool, error) {
	o.Side = models.SideAsk
	return v.Create(ctx, o, opts...)
}

func (v *MarketView) CancelBid(ctx context.Context, o models.Order, opts ...MutateOption) (bool, error) {
	o.Side = models.SideBid
	return v.Cancel(ctx, o, opts...)
}

func (v *MarketView) CancelAsk(ctx context.Context, o models.Order, opts ...MutateOption) (bool, error) {
	o.Side = models.SideAsk
	return v.Cancel(ctx, o, opts...)
}

// Create выставляет заявку. Отказ биржи это (false, nil), кэш не меняется.
func (v *MarketView) Create(ctx context.Context, o models.Order, opts ...MutateOption) (bool, error) {
	ok, err := v.gw.CreateOrder(ctx, v.instrument, o.Side, o.Price, o.Amount)
	return v.finish(ctx, "create", o, ok, err, opts)
}

// Cancel снимает заявку по её id.
func (v *MarketView) Cancel(ctx context.Context, o models.Order, opts ...MutateOption) (bool, error) {
	ok, err := v.gw.CancelOrder(ctx, o)
	return v.finish(ctx, "cancel", o, ok, err, opts)
}

func (v *MarketView) finish(ctx context.Context, op string, o models.Order, ok bool, err error, opts []MutateOption) (bool, error) {
	var mo mutateOptions
	for _, opt := range opts {
		opt(&mo)
	}

	switch {
	case err != nil:
		metrics.Mutations.WithLabelValues(op, string(o.Side), "error").Inc()
		return false, fmt.Errorf("%s %s: %w", op, o, err)
	case !ok:
		metrics.Mutations.WithLabelValues(op, string(o.Side), "rejected").Inc()
		v.log.Warn("mutation rejected", zap.String("op", op), zap.Stringer("order", o))
	default:
		metrics.Mutations.WithLabelValues(op, string(o.Side), "ok").Inc()
		v.log.Info("mutation applied", zap.String("op", op), zap.Stringer("order", o))
	}

	if mo.refresh {
		if err := v.Refresh(ctx, CategoryPosition, Force()); err != nil {
			return ok, err
		}
	}
	return ok, nil
}
