package entity

import "time"

// Item representa un artículo de inventario. El ledger solo lo referencia por ID.
// LotTracked indica que las salidas sin lote explícito se asignan por FIFO de lotes.
type Item struct {
	ID         string
	SKU        string
	Name       string
	LotTracked bool
	Status     string // active, inactive
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsActive indica si el ítem acepta movimientos.
func (i *Item) IsActive() bool { return i.Status != StatusInactive }
