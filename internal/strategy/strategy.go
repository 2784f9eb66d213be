// Package strategy автомат состояний по одному персонажу: какие заявки
// должны стоять на бирже в каждом цикле.
package strategy

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"grail_maker/internal/ladder"
	"grail_maker/internal/marketview"
	"grail_maker/internal/models"
)

// State одно состояние автомата. Transition решает, куда идти дальше,
// Output выставляет желаемые лестницы. Состояния не знают друг о друге,
// переходы идут только через теги.
type State interface {
	Tag() models.StrategyTag
	Transition(ctx context.Context) (models.StrategyTag, error)
	Output(ctx context.Context) error
}

// env общее окружение состояний одного персонажа.
type env struct {
	view *marketview.MarketView
	rec  *ladder.Reconciler
	log  *zap.Logger
}

// exchangePrice цена, по которой сейчас реально торгуется персонаж.
func (e *env) exchangePrice() (decimal.Decimal, error) {
	return e.view.ExchangePrice()
}

func (e *env) ensureAsks(ctx context.Context, asks models.Ladder, mode marketview.RefreshMode) error {
	_, err := e.rec.Ensure(ctx, models.SideAsk, asks, mode)
	return err
}

func (e *env) ensureBids(ctx context.Context, bids models.Ladder, mode marketview.RefreshMode) error {
	_, err := e.rec.Ensure(ctx, models.SideBid, bids, mode)
	return err
}
