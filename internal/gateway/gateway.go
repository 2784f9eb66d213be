package gateway

import (
	"context"

	"github.com/shopspring/decimal"

	"grail_maker/internal/models"
)

// Gateway всё, что ядру нужно от биржи по одному аккаунту.
//
// Ошибки: ErrSchemaMismatch, ErrUnauthenticated или *TransportError.
// Мутации возвращают false без ошибки, если биржа не подтвердила успех.
type Gateway interface {
	FetchPosition(ctx context.Context, instrument int64) (models.Position, error)
	FetchInstrumentInfo(ctx context.Context, instrument int64) (models.InstrumentInfo, error)
	FetchCharts(ctx context.Context, instrument int64) ([]models.ChartPoint, error)
	FetchDepth(ctx context.Context, instrument int64) (models.Depth, error)

	CreateOrder(ctx context.Context, instrument int64, side models.Side, price decimal.Decimal, amount int64) (bool, error)
	CancelOrder(ctx context.Context, order models.Order) (bool, error)
}
