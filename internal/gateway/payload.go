package gateway

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"grail_maker/internal/models"
)

// envelope общий ответ API: {"State":0,"Value":...,"Message":""}.
type envelope struct {
	State   int             `json:"State"`
	Value   json.RawMessage `json:"Value"`
	Message string          `json:"Message"`
}

type orderPayload struct {
	ID     int64           `json:"Id"`
	Price  decimal.Decimal `json:"Price"`
	Amount int64           `json:"Amount"`
	Type   int             `json:"Type"`
}

type userCharacterPayload struct {
	Bids   []orderPayload `json:"Bids"`
	Asks   []orderPayload `json:"Asks"`
	Amount *int64         `json:"Amount"`
	Total  *int64         `json:"Total"`
}

// characterPayload /api/chara/{id} отдаёт либо ICO, либо персонажа на рынке,
// поэтому все поля варианта опциональные.
type characterPayload struct {
	ID          int64            `json:"Id"`
	CharacterID int64            `json:"CharacterId"`
	Name        string           `json:"Name"`
	Total       *decimal.Decimal `json:"Total"`

	Begin *string `json:"Begin"`
	End   *string `json:"End"`
	Users *int64  `json:"Users"`

	Current    *decimal.Decimal `json:"Current"`
	LastOrder  *string          `json:"LastOrder"`
	LastDeal   *string          `json:"LastDeal"`
	Sacrifices int64            `json:"Sacrifices"`
	Rate       decimal.Decimal  `json:"Rate"`
	Price      decimal.Decimal  `json:"Price"`
}

type initialPayload struct {
	Amount decimal.Decimal `json:"Amount"`
}

type chartPayload struct {
	Time   string          `json:"Time"`
	Begin  decimal.Decimal `json:"Begin"`
	End    decimal.Decimal `json:"End"`
	Low    decimal.Decimal `json:"Low"`
	High   decimal.Decimal `json:"High"`
	Amount int64           `json:"Amount"`
	Price  decimal.Decimal `json:"Price"`
}

type depthPayload struct {
	Bids []orderPayload `json:"Bids"`
	Asks []orderPayload `json:"Asks"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func parseTime(field, s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Wrapf(ErrSchemaMismatch, "%s: bad time %q", field, s)
}

func parseOptionalTime(field string, s *string) (time.Time, error) {
	if s == nil || *s == "" {
		return time.Time{}, nil
	}
	return parseTime(field, *s)
}

func toLadder(side models.Side, in []orderPayload) models.Ladder {
	out := make(models.Ladder, 0, len(in))
	for _, o := range in {
		out = append(out, models.Order{ID: o.ID, Side: side, Price: o.Price, Amount: o.Amount})
	}
	return out
}

func (p userCharacterPayload) toPosition() (models.Position, error) {
	if p.Amount == nil || p.Total == nil {
		return models.Position{}, errors.Wrap(ErrSchemaMismatch, "user character: missing Amount/Total")
	}
	return models.Position{
		Bids:         toLadder(models.SideBid, p.Bids),
		Asks:         toLadder(models.SideAsk, p.Asks),
		Amount:       *p.Amount,
		TotalHolding: *p.Total,
	}, nil
}

func (p characterPayload) isMarket() bool   { return p.Current != nil }
func (p characterPayload) isOffering() bool { return !p.isMarket() && p.End != nil }

func (p characterPayload) toMarket() (models.MarketInfo, error) {
	lastOrder, err := parseOptionalTime("LastOrder", p.LastOrder)
	if err != nil {
		return models.MarketInfo{}, err
	}
	lastDeal, err := parseOptionalTime("LastDeal", p.LastDeal)
	if err != nil {
		return models.MarketInfo{}, err
	}
	var holding int64
	if p.Total != nil {
		holding = p.Total.IntPart()
	}
	return models.MarketInfo{
		Name:          p.Name,
		GlobalHolding: holding,
		Current:       *p.Current,
		LastOrder:     lastOrder,
		LastDeal:      lastDeal,
		Sacrifices:    p.Sacrifices,
		Rate:          p.Rate,
		Price:         p.Price,
	}, nil
}

func (p characterPayload) toOffering(myBacked decimal.Decimal) (models.OfferingInfo, error) {
	begin, err := parseOptionalTime("Begin", p.Begin)
	if err != nil {
		return models.OfferingInfo{}, err
	}
	end, err := parseOptionalTime("End", p.End)
	if err != nil {
		return models.OfferingInfo{}, err
	}
	info := models.OfferingInfo{
		ID:       p.ID,
		Name:     p.Name,
		Begin:    begin,
		End:      end,
		MyBacked: myBacked,
	}
	if p.Total != nil {
		info.TotalBacked = *p.Total
	}
	if p.Users != nil {
		info.Users = *p.Users
	}
	return info, nil
}

func (p chartPayload) toPoint() (models.ChartPoint, error) {
	ts, err := parseTime("Time", p.Time)
	if err != nil {
		return models.ChartPoint{}, err
	}
	return models.ChartPoint{
		Time:   ts,
		Begin:  p.Begin,
		End:    p.End,
		Low:    p.Low,
		High:   p.High,
		Amount: p.Amount,
		Price:  p.Price,
	}, nil
}
