package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Lot representa un lote físico de un ítem. Invariante: 0 <= AvailableQuantity <= TotalQuantity.
// Se desactiva en lugar de borrarse porque el diario y los costos lo siguen referenciando.
type Lot struct {
	ID                string
	ItemID            string
	LotNumber         string // único en todo el sistema (normalizado)
	EntryDate         time.Time
	ExpirationDate    *time.Time
	TotalQuantity     decimal.Decimal
	AvailableQuantity decimal.Decimal
	Supplier          string
	Notes             string
	Status            string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// IsActive indica si el lote participa en la selección FIFO.
func (l *Lot) IsActive() bool { return l.Status != StatusInactive }

// IsExpired es informativo: un lote vencido no se excluye de FIFO.
func (l *Lot) IsExpired(asOf time.Time) bool {
	if l.ExpirationDate == nil {
		return false
	}
	return asOf.After(*l.ExpirationDate)
}

// ConsumedQuantity cantidad ya retirada del lote.
func (l *Lot) ConsumedQuantity() decimal.Decimal {
	return l.TotalQuantity.Sub(l.AvailableQuantity)
}

// LotAllocation porción de una salida asignada a un lote.
type LotAllocation struct {
	LotID     string          `json:"lot_id"`
	LotNumber string          `json:"lot_number"`
	Quantity  decimal.Decimal `json:"quantity"`
}
