package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position заявки и остатки аккаунта по персонажу.
type Position struct {
	Bids Ladder
	Asks Ladder
	// Amount свободный остаток (не занят в ask).
	Amount int64
	// TotalHolding всё, что держит аккаунт, включая выставленное в ask.
	TotalHolding int64
}

// InstrumentInfo закрытое объединение: OfferingInfo либо MarketInfo.
// nil означает, что вариант определить не удалось.
type InstrumentInfo interface {
	InstrumentName() string
	isInstrumentInfo()
}

// OfferingInfo персонаж на стадии ICO.
type OfferingInfo struct {
	ID          int64
	Name        string
	Begin       time.Time
	End         time.Time
	TotalBacked decimal.Decimal
	MyBacked    decimal.Decimal
	Users       int64
}

func (i OfferingInfo) InstrumentName() string { return i.Name }
func (OfferingInfo) isInstrumentInfo()        {}

// MarketInfo персонаж в свободной торговле.
type MarketInfo struct {
	Name          string
	GlobalHolding int64
	Current       decimal.Decimal
	LastOrder     time.Time
	LastDeal      time.Time
	Sacrifices    int64
	Rate          decimal.Decimal
	Price         decimal.Decimal
}

func (i MarketInfo) InstrumentName() string { return i.Name }
func (MarketInfo) isInstrumentInfo()        {}

// ChartPoint одна точка истории цены.
type ChartPoint struct {
	Time   time.Time
	Begin  decimal.Decimal
	End    decimal.Decimal
	Low    decimal.Decimal
	High   decimal.Decimal
	Amount int64
	Price  decimal.Decimal
}

// Depth стакан всех участников.
type Depth struct {
	Bids Ladder
	Asks Ladder
}
