package strategy

import (
	"fmt"

	"grail_maker/internal/models"
)

func newState(tag models.StrategyTag, e *env, q Quoter) (State, error) {
	switch tag {
	case models.StrategyIgnore:
		return &Ignore{env: e}, nil
	case models.StrategyCloseOut:
		return &CloseOut{env: e}, nil
	case models.StrategyBalance:
		if q == nil {
			q = HoldQuoter{}
		}
		return &Balance{env: e, quoter: q}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", tag)
	}
}

var allTags = []models.StrategyTag{
	models.StrategyIgnore,
	models.StrategyBalance,
	models.StrategyCloseOut,
}
