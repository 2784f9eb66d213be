package models

import (
	"fmt"
	"time"
)

// StrategyTag состояние автомата по одному персонажу.
type StrategyTag string

const (
	StrategyIgnore   StrategyTag = "ignore"
	StrategyBalance  StrategyTag = "balance"
	StrategyCloseOut StrategyTag = "close_out"
)

// ParseStrategyTag разбирает тег из конфига или из хранилища.
func ParseStrategyTag(s string) (StrategyTag, error) {
	switch t := StrategyTag(s); t {
	case StrategyIgnore, StrategyBalance, StrategyCloseOut:
		return t, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", s)
	}
}

// StrategyRecord сохранённое состояние автомата по персонажу.
type StrategyRecord struct {
	Instrument int64
	Tag        StrategyTag
	UpdatedAt  time.Time
}
