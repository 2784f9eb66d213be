package strategy

import (
	"context"

	"go.uber.org/zap"

	"grail_maker/internal/marketview"
	"grail_maker/internal/models"
)

// Ignore заявок быть не должно. Появившиеся акции сразу продаются.
type Ignore struct{ *env }

func (s *Ignore) Tag() models.StrategyTag { return models.StrategyIgnore }

func (s *Ignore) Transition(ctx context.Context) (models.StrategyTag, error) {
	if err := s.view.Refresh(ctx, marketview.CategoryPosition, marketview.Respect()); err != nil {
		return "", err
	}

	bids, asks := s.view.Bids(), s.view.Asks()
	if len(bids) == 1 && len(asks) == 1 && bids[0].Price.Equal(asks[0].Price) {
		s.log.Info("already in balance")
		return models.StrategyBalance, nil
	}

	if s.view.TotalHolding() > 0 {
		s.log.Info("new stock", zap.Int64("holding", s.view.TotalHolding()))
		price, err := s.exchangePrice()
		if err != nil {
			return "", err
		}
		if err := s.fastSell(ctx, price); err != nil {
			return "", err
		}
		if s.view.Amount() > 0 || len(s.view.Asks()) > 0 {
			return models.StrategyBalance, nil
		}
		return models.StrategyIgnore, nil
	}

	if forced, ok := findForcedBid(bids); ok {
		s.log.Info("forced bid found")
		price, err := s.exchangePrice()
		if err != nil {
			return "", err
		}
		if err := s.fastForward(ctx, forced, price); err != nil {
			return "", err
		}
		return models.StrategyBalance, nil
	}

	return models.StrategyIgnore, nil
}

// Output снимает всё, что висит.
func (s *Ignore) Output(ctx context.Context) error {
	if err := s.ensureAsks(ctx, nil, marketview.OnPhase(marketview.PhaseBefore)); err != nil {
		return err
	}
	return s.ensureBids(ctx, nil, marketview.OnPhase(marketview.PhaseAfter))
}
