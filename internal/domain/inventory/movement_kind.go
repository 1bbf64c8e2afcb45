package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// Sign devuelve +1 para tipos que suman al saldo y -1 para los que restan.
func Sign(kind entity.MovementKind) (int, error) {
	switch kind {
	case entity.MovementKindEntry, entity.MovementKindAdjustmentIn, entity.MovementKindDevolutionIn:
		return 1, nil
	case entity.MovementKindOut, entity.MovementKindAdjustmentOut, entity.MovementKindDevolutionOut:
		return -1, nil
	}
	return 0, domain.ErrInvalidMovementKind
}

// IsConsuming indica si el tipo retira stock.
func IsConsuming(kind entity.MovementKind) bool {
	s, err := Sign(kind)
	return err == nil && s < 0
}

// SignedDelta aplica el signo del tipo a la magnitud de la cantidad.
func SignedDelta(kind entity.MovementKind, quantity decimal.Decimal) (decimal.Decimal, error) {
	s, err := Sign(kind)
	if err != nil {
		return decimal.Zero, err
	}
	q := quantity.Abs()
	if s < 0 {
		return q.Neg(), nil
	}
	return q, nil
}

// Replay recalcula un saldo a partir de su diario, en el orden recibido.
func Replay(entries []*entity.JournalEntry) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, e := range entries {
		d, err := SignedDelta(e.Kind, e.Quantity)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(d)
	}
	return total, nil
}
