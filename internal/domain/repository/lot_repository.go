package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// LotRepository define el puerto de persistencia para lotes.
// Create devuelve domain.ErrDuplicateLot si el número ya existe.
type LotRepository interface {
	Create(ctx context.Context, lot *entity.Lot) error
	GetByID(ctx context.Context, id string) (*entity.Lot, error)
	// GetForUpdate bloquea la fila del lote dentro de la transacción.
	GetForUpdate(ctx context.Context, id string) (*entity.Lot, error)
	GetByNumber(ctx context.Context, lotNumber string) (*entity.Lot, error)
	Update(ctx context.Context, lot *entity.Lot) error
	ListByItem(ctx context.Context, itemID string) ([]*entity.Lot, error)
	// ListAvailableFIFO lotes activos con disponible > 0, más antiguos primero.
	ListAvailableFIFO(ctx context.Context, itemID string) ([]*entity.Lot, error)
	ListExpired(ctx context.Context, asOf time.Time) ([]*entity.Lot, error)
	ListExpiringBetween(ctx context.Context, start, end time.Time) ([]*entity.Lot, error)
	SumAvailable(ctx context.Context, itemID string) (decimal.Decimal, error)
	SumTotal(ctx context.Context, itemID string) (decimal.Decimal, error)
}
