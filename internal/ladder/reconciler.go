package ladder

import (
	"context"

	"go.uber.org/zap"

	"grail_maker/internal/marketview"
	"grail_maker/internal/models"
)

// Book то, что реконсилеру нужно от MarketView.
type Book interface {
	Refresh(ctx context.Context, c marketview.Category, mode marketview.RefreshMode) error
	Bids() models.Ladder
	Asks() models.Ladder
	Create(ctx context.Context, o models.Order, opts ...marketview.MutateOption) (bool, error)
	Cancel(ctx context.Context, o models.Order, opts ...marketview.MutateOption) (bool, error)
}

var _ Book = (*marketview.MarketView)(nil)

// Result сколько мутаций подтвердила биржа и сколько отклонила.
type Result struct {
	Created  int
	Canceled int
	Rejected int
}

type Reconciler struct {
	book Book
	log  *zap.Logger
}

func NewReconciler(book Book, log *zap.Logger) *Reconciler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reconciler{book: book, log: log}
}

// Ensure приводит лестницу side к desired. Перед пачкой позиция обновляется
// по mode в фазе before, после пачки только если mode в фазе after это Force.
// Отклонённая мутация не ошибка: следующий цикл попробует снова.
func (r *Reconciler) Ensure(ctx context.Context, side models.Side, desired models.Ladder, mode marketview.RefreshMode) (Result, error) {
	var res Result
	if err := r.book.Refresh(ctx, marketview.CategoryPosition, mode.At(marketview.PhaseBefore)); err != nil {
		return res, err
	}

	current := r.book.Bids()
	if side == models.SideAsk {
		current = r.book.Asks()
	}

	for _, op := range Plan(side, current, desired) {
		var (
			ok  bool
			err error
		)
		switch op.Kind {
		case OpCancel:
			ok, err = r.book.Cancel(ctx, op.Order)
		case OpCreate:
			ok, err = r.book.Create(ctx, op.Order)
		}
		if err != nil {
			return res, err
		}
		switch {
		case !ok:
			res.Rejected++
		case op.Kind == OpCancel:
			res.Canceled++
		default:
			res.Created++
		}
	}

	if res != (Result{}) {
		r.log.Info("ladder reconciled",
			zap.String("side", string(side)),
			zap.Int("created", res.Created),
			zap.Int("canceled", res.Canceled),
			zap.Int("rejected", res.Rejected))
	}

	if after := mode.At(marketview.PhaseAfter); after.IsForce() {
		if err := r.book.Refresh(ctx, marketview.CategoryPosition, after); err != nil {
			return res, err
		}
	}
	return res, nil
}
