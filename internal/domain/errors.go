package domain

import "errors"

// Errores de dominio del ledger de inventario (sin dependencias externas).
var (
	ErrNotFound             = errors.New("recurso no encontrado")
	ErrInvalidInput         = errors.New("entrada inválida")
	ErrDuplicateLot         = errors.New("ya existe un lote con ese número")
	ErrInvalidQuantity      = errors.New("cantidad inválida")
	ErrInsufficientStock    = errors.New("stock insuficiente")
	ErrInvalidMovementKind  = errors.New("tipo de movimiento inválido")
	ErrInactive             = errors.New("recurso inactivo")
	ErrRecalculationFailure = errors.New("falló el recálculo del costo promedio")
)
