// Package ladder приводит живую лестницу заявок одной стороны к желаемой
// минимальным числом отмен и выставлений.
package ladder

import "grail_maker/internal/models"

type OpKind int

const (
	OpCancel OpKind = iota
	OpCreate
)

func (k OpKind) String() string {
	if k == OpCancel {
		return "cancel"
	}
	return "create"
}

// Op одна мутация плана.
type Op struct {
	Kind  OpKind
	Order models.Order
}

// Plan слияние двух отсортированных по приоритету лестниц.
// Совпадающие по цене и объёму заявки остаются как есть, изменение объёма
// это всегда пара cancel+create. Новые ask идут после всех отмен, чтобы не
// выставить больше, чем есть на руках.
func Plan(side models.Side, current, desired models.Ladder) []Op {
	cur := current.Sorted(side)
	want := desired.Sorted(side)

	var ops, deferred []Op
	i, j := 0, 0
	for i < len(cur) && j < len(want) {
		c, w := cur[i], want[j]
		switch {
		case c.Equal(w):
			i++
			j++
		case side.Before(c, w):
			ops = append(ops, Op{Kind: OpCancel, Order: c})
			i++
		default:
			w.Side = side
			if side == models.SideAsk {
				deferred = append(deferred, Op{Kind: OpCreate, Order: w})
			} else {
				ops = append(ops, Op{Kind: OpCreate, Order: w})
			}
			j++
		}
	}

	for ; i < len(cur); i++ {
		ops = append(ops, Op{Kind: OpCancel, Order: cur[i]})
	}
	for ; j < len(want); j++ {
		w := want[j]
		w.Side = side
		ops = append(ops, Op{Kind: OpCreate, Order: w})
	}
	return append(ops, deferred...)
}
