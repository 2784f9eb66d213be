package strategy

import (
	"context"

	"grail_maker/internal/marketview"
	"grail_maker/internal/models"
)

// CloseOut полная ликвидация позиции.
type CloseOut struct{ *env }

func (s *CloseOut) Tag() models.StrategyTag { return models.StrategyCloseOut }

func (s *CloseOut) Transition(ctx context.Context) (models.StrategyTag, error) {
	if err := s.view.Refresh(ctx, marketview.CategoryPosition, marketview.Force()); err != nil {
		return "", err
	}
	holding := s.view.TotalHolding()
	if holding == 0 {
		return models.StrategyIgnore, nil
	}
	// в Balance только когда ликвидационный ask уже висит на весь остаток
	if s.view.Asks().TotalAmount() < holding {
		return models.StrategyCloseOut, nil
	}
	return models.StrategyBalance, nil
}

// Output один ask на весь остаток по текущей цене, bid снимаются.
func (s *CloseOut) Output(ctx context.Context) error {
	var asks models.Ladder
	if holding := s.view.TotalHolding(); holding > 0 {
		price, err := s.exchangePrice()
		if err != nil {
			return err
		}
		asks = models.Ladder{models.NewAsk(price, holding)}
	}
	if err := s.ensureAsks(ctx, asks, marketview.Force()); err != nil {
		return err
	}
	return s.ensureBids(ctx, nil, marketview.Force())
}
