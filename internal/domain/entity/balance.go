package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Balance representa el saldo actual de un ítem en una ubicación y lote.
// LotID vacío significa "sin control de lote". Se crea en el primer movimiento de la llave.
type Balance struct {
	ItemID     string
	LocationID string
	LotID      string
	Quantity   decimal.Decimal
	UpdatedAt  time.Time
}

// BalanceKey identifica una fila de saldo.
type BalanceKey struct {
	ItemID     string
	LocationID string
	LotID      string
}

// Key devuelve la llave del saldo.
func (b *Balance) Key() BalanceKey {
	return BalanceKey{ItemID: b.ItemID, LocationID: b.LocationID, LotID: b.LotID}
}

// String se usa como nombre del candado por llave.
func (k BalanceKey) String() string {
	return "balance:" + k.ItemID + ":" + k.LocationID + ":" + k.LotID
}
