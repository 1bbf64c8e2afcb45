package entity

import "time"

// Location representa una bodega o ubicación donde se almacena inventario.
type Location struct {
	ID        string
	Name      string
	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive indica si la ubicación acepta movimientos.
func (l *Location) IsActive() bool { return l.Status != StatusInactive }
