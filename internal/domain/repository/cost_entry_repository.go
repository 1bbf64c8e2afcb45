package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// CostEntryRepository puerto de las entradas de costo. Solo AverageCost se actualiza en sitio
// (UpdateAverageCost); Update queda para la edición explícita de una entrada.
type CostEntryRepository interface {
	Create(ctx context.Context, entry *entity.CostEntry) error
	GetByID(ctx context.Context, id string) (*entity.CostEntry, error)
	Update(ctx context.Context, entry *entity.CostEntry) error
	UpdateAverageCost(ctx context.Context, id string, averageCost decimal.Decimal) error
	// ListByItem devuelve las entradas del ítem en orden cronológico ascendente.
	ListByItem(ctx context.Context, itemID string) ([]*entity.CostEntry, error)
	ListPurchasesByItem(ctx context.Context, itemID string) ([]*entity.CostEntry, error)
	ListByLot(ctx context.Context, lotID string) ([]*entity.CostEntry, error)
	ListByPeriod(ctx context.Context, itemID string, from, to time.Time) ([]*entity.CostEntry, error)
	// ListItemIDs ítems distintos con al menos una entrada de costo.
	ListItemIDs(ctx context.Context) ([]string, error)
}

// RecalcPendingRepository marca ítems cuyo recálculo falló para reintentarlo.
type RecalcPendingRepository interface {
	Mark(ctx context.Context, itemID string, reason string) error
	Clear(ctx context.Context, itemID string) error
	List(ctx context.Context) ([]string, error)
}
