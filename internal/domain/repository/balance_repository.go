package repository

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// BalanceRepository define el puerto para consultar/actualizar saldos por ítem+ubicación+lote.
// Get y GetForUpdate devuelven un saldo en cero si la llave nunca se movió.
type BalanceRepository interface {
	Get(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error)
	// GetForUpdate bloquea la fila para update (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error)
	Upsert(ctx context.Context, balance *entity.Balance) error
	ListByItem(ctx context.Context, itemID string) ([]*entity.Balance, error)
	ListAll(ctx context.Context) ([]*entity.Balance, error)
}
