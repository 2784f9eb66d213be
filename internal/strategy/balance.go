package strategy

import (
	"context"

	"grail_maker/internal/marketview"
	"grail_maker/internal/models"
)

// Quote желаемые лестницы обеих сторон.
type Quote struct {
	Bids models.Ladder
	Asks models.Ladder
}

// Quoter строит лестницы для Balance.
type Quoter interface {
	Quote(ctx context.Context, view *marketview.MarketView) (Quote, error)
}

// QuoterFunc адаптер функции к Quoter.
type QuoterFunc func(ctx context.Context, view *marketview.MarketView) (Quote, error)

func (f QuoterFunc) Quote(ctx context.Context, view *marketview.MarketView) (Quote, error) {
	return f(ctx, view)
}

// HoldQuoter оставляет живые заявки как есть.
type HoldQuoter struct{}

func (HoldQuoter) Quote(_ context.Context, view *marketview.MarketView) (Quote, error) {
	return Quote{Bids: view.Bids(), Asks: view.Asks()}, nil
}

// Balance штатное состояние маркетмейкинга.
type Balance struct {
	*env
	quoter Quoter
}

func (s *Balance) Tag() models.StrategyTag { return models.StrategyBalance }

func (s *Balance) Transition(ctx context.Context) (models.StrategyTag, error) {
	return models.StrategyBalance, nil
}

func (s *Balance) Output(ctx context.Context) error {
	// quoter должен видеть ту же позицию, с которой будет сверяться Ensure.
	if err := s.view.Refresh(ctx, marketview.CategoryPosition, marketview.Force()); err != nil {
		return err
	}
	q, err := s.quoter.Quote(ctx, s.view)
	if err != nil {
		return err
	}
	if err := s.ensureAsks(ctx, q.Asks, marketview.Respect()); err != nil {
		return err
	}
	return s.ensureBids(ctx, q.Bids, marketview.OnPhase(marketview.PhaseAfter))
}
