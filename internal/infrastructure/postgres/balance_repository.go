package postgres

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.BalanceRepository = (*BalanceRepo)(nil)

// BalanceRepo implementación de BalanceRepository sobre PostgreSQL (usable con pool o tx).
type BalanceRepo struct {
	q Querier
}

// NewBalanceRepository construye el adaptador de saldos. Pasar pool o tx (Querier).
func NewBalanceRepository(q Querier) *BalanceRepo {
	return &BalanceRepo{q: q}
}

// Get obtiene el saldo actual de la llave; cero si no existe fila.
func (r *BalanceRepo) Get(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	query := `
		SELECT item_id, location_id, lot_id, quantity, updated_at
		FROM stock_balances WHERE item_id = $1 AND location_id = $2 AND lot_id = $3`
	return r.get(ctx, "get balance", query, key)
}

// GetForUpdate obtiene el saldo y bloquea la fila para update (SELECT FOR UPDATE).
// Una llave sin fila no se puede bloquear en la base; la serializa el candado por llave.
func (r *BalanceRepo) GetForUpdate(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	query := `
		SELECT item_id, location_id, lot_id, quantity, updated_at
		FROM stock_balances WHERE item_id = $1 AND location_id = $2 AND lot_id = $3
		FOR UPDATE`
	return r.get(ctx, "get balance for update", query, key)
}

func (r *BalanceRepo) get(ctx context.Context, op, query string, key entity.BalanceKey) (*entity.Balance, error) {
	var b entity.Balance
	err := r.q.QueryRow(ctx, query, key.ItemID, key.LocationID, key.LotID).Scan(
		&b.ItemID, &b.LocationID, &b.LotID, &b.Quantity, &b.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return &entity.Balance{ItemID: key.ItemID, LocationID: key.LocationID, LotID: key.LotID, Quantity: decimal.Zero}, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &b, nil
}

// Upsert inserta o actualiza la cantidad de la llave.
func (r *BalanceRepo) Upsert(ctx context.Context, balance *entity.Balance) error {
	query := `
		INSERT INTO stock_balances (item_id, location_id, lot_id, quantity, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (item_id, location_id, lot_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query, balance.ItemID, balance.LocationID, balance.LotID, balance.Quantity, balance.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert balance: %w", err)
	}
	return nil
}

// ListByItem saldos del ítem en todas las ubicaciones y lotes.
func (r *BalanceRepo) ListByItem(ctx context.Context, itemID string) ([]*entity.Balance, error) {
	query := `
		SELECT item_id, location_id, lot_id, quantity, updated_at
		FROM stock_balances WHERE item_id = $1 ORDER BY location_id, lot_id`
	return r.list(ctx, "list balances by item", query, itemID)
}

// ListAll todos los saldos (barrido de conciliación).
func (r *BalanceRepo) ListAll(ctx context.Context) ([]*entity.Balance, error) {
	query := `
		SELECT item_id, location_id, lot_id, quantity, updated_at
		FROM stock_balances ORDER BY item_id, location_id, lot_id`
	return r.list(ctx, "list balances", query)
}

func (r *BalanceRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Balance, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.Balance
	for rows.Next() {
		var b entity.Balance
		if err := rows.Scan(&b.ItemID, &b.LocationID, &b.LotID, &b.Quantity, &b.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		list = append(list, &b)
	}
	return list, rows.Err()
}
