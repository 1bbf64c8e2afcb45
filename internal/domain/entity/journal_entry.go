package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// JournalEntry registro inmutable de un cambio de saldo. Fuente de verdad para
// la verificación de consistencia; nunca se actualiza ni se borra.
type JournalEntry struct {
	ID               string
	ItemID           string
	LocationID       string
	LotID            string
	PreviousQuantity decimal.Decimal
	NewQuantity      decimal.Decimal
	Quantity         decimal.Decimal // con signo
	Kind             MovementKind
	MovementID       string
	Note             string
	CreatedAt        time.Time
}

// Key devuelve la llave de saldo afectada.
func (j *JournalEntry) Key() BalanceKey {
	return BalanceKey{ItemID: j.ItemID, LocationID: j.LocationID, LotID: j.LotID}
}
