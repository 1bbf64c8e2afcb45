package inventory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// CapFunc limita cuánto se puede tomar de un lote (p. ej. el saldo del lote en la ubicación).
// nil significa "solo la cantidad disponible del lote".
type CapFunc func(lot *entity.Lot) decimal.Decimal

// SortFIFO ordena lotes por fecha de entrada, luego creación, luego ID.
func SortFIFO(lots []*entity.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.EntryDate.Equal(b.EntryDate) {
			return a.EntryDate.Before(b.EntryDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// AllocateFIFO arma el plan de consumo tomando primero los lotes más antiguos.
// Solo considera lotes activos con disponible > 0. Si la suma no alcanza devuelve ErrInsufficientStock.
func AllocateFIFO(lots []*entity.Lot, requested decimal.Decimal, capFn CapFunc) ([]entity.LotAllocation, error) {
	if !requested.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidQuantity
	}
	candidates := make([]*entity.Lot, 0, len(lots))
	for _, l := range lots {
		if l.IsActive() && l.AvailableQuantity.GreaterThan(decimal.Zero) {
			candidates = append(candidates, l)
		}
	}
	SortFIFO(candidates)

	remaining := requested
	plan := make([]entity.LotAllocation, 0, 2)
	for _, l := range candidates {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		takeable := l.AvailableQuantity
		if capFn != nil {
			takeable = decimal.Min(takeable, capFn(l))
		}
		if !takeable.GreaterThan(decimal.Zero) {
			continue
		}
		take := decimal.Min(takeable, remaining)
		plan = append(plan, entity.LotAllocation{LotID: l.ID, LotNumber: l.LotNumber, Quantity: take})
		remaining = remaining.Sub(take)
	}
	if remaining.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInsufficientStock
	}
	return plan, nil
}
