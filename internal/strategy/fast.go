package strategy

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grail_maker/internal/marketview"
	"grail_maker/internal/models"
)

// forcedBid заявка, которую платформа ставит сама: 2 штуки по 2.00.
var forcedBid = models.NewBid(decimal.NewFromInt(2), 2)

func findForcedBid(bids models.Ladder) (models.Order, bool) {
	for _, b := range bids {
		if b.Equal(forcedBid) {
			return b, true
		}
	}
	return models.Order{}, false
}

// fastSell продаёт свободный остаток в чужие bid стакана, пока их цена не
// ниже low. Лучшие bid забираются первыми.
func (e *env) fastSell(ctx context.Context, low decimal.Decimal) error {
	if err := e.view.Refresh(ctx, marketview.CategoryDepth, marketview.Force()); err != nil {
		return err
	}

	remaining := e.view.Amount()
	for _, b := range e.view.Depth().Bids.Sorted(models.SideBid) {
		if remaining <= 0 || b.Price.LessThan(low) {
			break
		}
		n := min(b.Amount, remaining)
		ok, err := e.view.CreateAsk(ctx, models.NewAsk(b.Price, n))
		if err != nil {
			return err
		}
		if ok {
			remaining -= n
		}
	}
	e.log.Info("fast sell done", zap.String("low", low.StringFixed(2)), zap.Int64("unsold", remaining))

	return e.view.Refresh(ctx, marketview.CategoryPosition, marketview.Force())
}

// fastForward переставляет принудительную заявку по цене price.
func (e *env) fastForward(ctx context.Context, forced models.Order, price decimal.Decimal) error {
	ok, err := e.view.CancelBid(ctx, forced)
	if err != nil {
		return err
	}
	if ok {
		if _, err := e.view.CreateBid(ctx, models.NewBid(price, forced.Amount)); err != nil {
			return err
		}
	}
	e.log.Info("fast forward", zap.String("price", price.StringFixed(2)), zap.Bool("canceled", ok))

	return e.view.Refresh(ctx, marketview.CategoryPosition, marketview.Force())
}
