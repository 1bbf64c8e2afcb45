package repository

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// JournalFilter filtros para listar el diario. Campos vacíos no filtran.
type JournalFilter struct {
	ItemID     string
	LocationID string
	LotID      *string // nil = cualquier lote; "" = sin lote
	From, To   *time.Time
	Limit      int
	Offset     int
}

// JournalRepository puerto del diario de saldos: solo inserción.
type JournalRepository interface {
	Append(ctx context.Context, entry *entity.JournalEntry) error
	// ListByKey devuelve el diario completo de una llave en orden cronológico.
	ListByKey(ctx context.Context, key entity.BalanceKey) ([]*entity.JournalEntry, error)
	List(ctx context.Context, filter JournalFilter) ([]*entity.JournalEntry, error)
	ListByMovement(ctx context.Context, movementID string) ([]*entity.JournalEntry, error)
}
