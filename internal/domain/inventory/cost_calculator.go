package inventory

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

// Escalas de redondeo: 4 decimales almacenados, 6 en el cálculo intermedio del promedio.
const (
	StoredScale       int32 = 4
	IntermediateScale int32 = 6
)

// UnitCost valor / cantidad a 4 decimales (half-up). Cero si la cantidad no es positiva.
func UnitCost(value, quantity decimal.Decimal) decimal.Decimal {
	if !quantity.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	return value.DivRound(quantity, StoredScale)
}

// AllocateFreight prorratea un flete total por cantidad:
// (flete total / cantidad total) a 6 decimales, por la cantidad de la línea, a 4 decimales.
func AllocateFreight(freightTotal, quantityTotal, quantity decimal.Decimal) decimal.Decimal {
	if !freightTotal.GreaterThan(decimal.Zero) || !quantityTotal.GreaterThan(decimal.Zero) || !quantity.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	perUnit := freightTotal.DivRound(quantityTotal, IntermediateScale)
	return perUnit.Mul(quantity).Round(StoredScale)
}

// TaxPercentage porcentaje de impuestos sobre el valor base (4 decimales antes de x100).
func TaxPercentage(taxTotal, baseValue decimal.Decimal) decimal.Decimal {
	if !baseValue.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	return taxTotal.DivRound(baseValue, StoredScale).Mul(decimal.NewFromInt(100))
}

// SortChronologically ordena entradas de costo por fecha de costo, luego creación, luego ID.
// El orden es total para que el recálculo no dependa del orden de inserción.
func SortChronologically(entries []*entity.CostEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.CostDate.Equal(b.CostDate) {
			return a.CostDate.Before(b.CostDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// RunningAverages recorre las compras en orden cronológico y asigna a cada una el promedio
// acumulado (valor + impuestos + flete) / cantidad. Recalcula todo desde cero: es idempotente.
// Devuelve las entradas cuyo AverageCost cambió y el promedio final.
func RunningAverages(entries []*entity.CostEntry) (changed []*entity.CostEntry, final decimal.Decimal) {
	purchases := make([]*entity.CostEntry, 0, len(entries))
	for _, e := range entries {
		if e.Kind == entity.CostKindPurchase && e.Quantity.GreaterThan(decimal.Zero) {
			purchases = append(purchases, e)
		}
	}
	SortChronologically(purchases)

	qty := decimal.Zero
	total := decimal.Zero
	final = decimal.Zero
	for _, e := range purchases {
		qty = qty.Add(e.Quantity)
		total = total.Add(e.TotalWithFreight())
		avg := total.DivRound(qty, IntermediateScale).Round(StoredScale)
		if !avg.Equal(e.AverageCost) {
			e.AverageCost = avg
			changed = append(changed, e)
		}
		final = avg
	}
	return changed, final
}

// WeightedAverage promedio ponderado por cantidad de (valor + impuestos) sobre las entradas
// con cantidad positiva. Cero sin historial.
func WeightedAverage(entries []*entity.CostEntry) decimal.Decimal {
	totalValue := decimal.Zero
	totalQty := decimal.Zero
	for _, e := range entries {
		if !e.Quantity.GreaterThan(decimal.Zero) {
			continue
		}
		totalValue = totalValue.Add(e.TotalWithTaxes())
		totalQty = totalQty.Add(e.Quantity)
	}
	if !totalQty.GreaterThan(decimal.Zero) {
		return decimal.Zero
	}
	return totalValue.DivRound(totalQty, StoredScale)
}
