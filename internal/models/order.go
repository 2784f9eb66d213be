package models

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Side сторона заявки: bid (покупка) или ask (продажа).
type Side string

const (
	SideBid Side = "bid"
	SideAsk Side = "ask"
)

// Order заявка одного аккаунта по одному персонажу.
// ID заполняется биржей, для желаемой лестницы он пустой.
type Order struct {
	ID     int64
	Side   Side
	Price  decimal.Decimal
	Amount int64
}

func NewBid(price decimal.Decimal, amount int64) Order {
	return Order{Side: SideBid, Price: price, Amount: amount}
}

func NewAsk(price decimal.Decimal, amount int64) Order {
	return Order{Side: SideAsk, Price: price, Amount: amount}
}

// Equal сравнивает только цену и объём, ID не участвует.
func (o Order) Equal(other Order) bool {
	return o.Amount == other.Amount && o.Price.Equal(other.Price)
}

func (o Order) String() string {
	if o.ID != 0 {
		return fmt.Sprintf("%s#%d(%s x %d)", o.Side, o.ID, o.Price.String(), o.Amount)
	}
	return fmt.Sprintf("%s(%s x %d)", o.Side, o.Price.String(), o.Amount)
}

// Before задаёт приоритет внутри стороны: для bid выше цена раньше,
// для ask ниже цена раньше, при равной цене меньший объём раньше.
func (s Side) Before(a, b Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		if s == SideBid {
			return c > 0
		}
		return c < 0
	}
	return a.Amount < b.Amount
}

// Ladder лестница заявок одной стороны.
type Ladder []Order

// Sorted возвращает отсортированную по приоритету копию, исходная лестница не меняется.
func (l Ladder) Sorted(side Side) Ladder {
	out := make(Ladder, len(l))
	copy(out, l)
	sort.SliceStable(out, func(i, j int) bool { return side.Before(out[i], out[j]) })
	return out
}

// Equal true если лестницы совпадают поэлементно после сортировки.
func (l Ladder) Equal(side Side, other Ladder) bool {
	if len(l) != len(other) {
		return false
	}
	a, b := l.Sorted(side), other.Sorted(side)
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// TotalAmount сумма объёмов лестницы.
func (l Ladder) TotalAmount() int64 {
	var total int64
	for _, o := range l {
		total += o.Amount
	}
	return total
}
