package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind tipo de movimiento de inventario.
type MovementKind string

// Tipos de movimiento. Las entradas suman al saldo, las salidas restan.
const (
	MovementKindEntry         MovementKind = "ENTRY"          // entrada (recepción de compra)
	MovementKindOut           MovementKind = "SAIDA"          // salida (despacho)
	MovementKindAdjustmentIn  MovementKind = "ADJUSTMENT_IN"  // ajuste positivo
	MovementKindAdjustmentOut MovementKind = "ADJUSTMENT_OUT" // ajuste negativo
	MovementKindDevolutionIn  MovementKind = "DEVOLUTION_IN"  // devolución de cliente que reingresa
	MovementKindDevolutionOut MovementKind = "DEVOLUTION_OUT" // devolución enviada al proveedor
)

// Estados de un movimiento. No existe aplicación parcial.
const (
	MovementStatusRequested = "REQUESTED"
	MovementStatusApplied   = "APPLIED"
	MovementStatusRejected  = "REJECTED"
)

// Movement es el registro que ve el llamador. Un movimiento genera una entrada de diario
// por cada porción de lote afectada; un traslado son dos movimientos con la misma Reference.
type Movement struct {
	ID          string
	Reference   string
	ItemID      string
	LocationID  string
	LotID       string // vacío si no aplica o si la salida FIFO abarcó varios lotes
	Quantity    decimal.Decimal
	Kind        MovementKind
	UnitCost    decimal.Decimal
	TotalCost   decimal.Decimal
	Status      string
	Allocations []LotAllocation
	Actor       string
	Note        string
	Date        time.Time
	CreatedAt   time.Time
}
