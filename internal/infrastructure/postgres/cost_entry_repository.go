package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var (
	_ repository.CostEntryRepository     = (*CostEntryRepo)(nil)
	_ repository.RecalcPendingRepository = (*RecalcPendingRepo)(nil)
)

const costColumns = `id, item_id, lot_id, kind, value, quantity, unit_cost, average_cost, freight_allocated, base_value,
	icms, ipi, pis, cofins, icms_st, iss, irpj, csll, cost_date, actor, description, created_at, updated_at`

// Orden cronológico total del recálculo.
const costOrder = ` ORDER BY cost_date, created_at, id`

// CostEntryRepo implementación de CostEntryRepository sobre PostgreSQL (usable con pool o tx).
// Los impuestos ausentes se guardan como NULL y vuelven como nil.
type CostEntryRepo struct {
	q Querier
}

// NewCostEntryRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCostEntryRepository(q Querier) *CostEntryRepo {
	return &CostEntryRepo{q: q}
}

// Create persiste una entrada de costo.
func (r *CostEntryRepo) Create(ctx context.Context, c *entity.CostEntry) error {
	query := `INSERT INTO cost_entries (` + costColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`
	t := c.Taxes
	_, err := r.q.Exec(ctx, query,
		c.ID, c.ItemID, nullString(c.LotID), string(c.Kind), c.Value, c.Quantity, c.UnitCost, c.AverageCost,
		c.FreightAllocated, c.BaseValue,
		t.ICMS, t.IPI, t.PIS, t.COFINS, t.ICMSST, t.ISS, t.IRPJ, t.CSLL,
		c.CostDate, nullString(c.Actor), nullString(c.Description), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create cost entry: %w", err)
	}
	return nil
}

// GetByID obtiene una entrada; (nil, nil) si no existe.
func (r *CostEntryRepo) GetByID(ctx context.Context, id string) (*entity.CostEntry, error) {
	c, err := scanCost(r.q.QueryRow(ctx, `SELECT `+costColumns+` FROM cost_entries WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cost entry: %w", err)
	}
	return c, nil
}

// Update reescribe los campos editables de la entrada.
func (r *CostEntryRepo) Update(ctx context.Context, c *entity.CostEntry) error {
	query := `
		UPDATE cost_entries SET value = $2, quantity = $3, unit_cost = $4, freight_allocated = $5, base_value = $6,
			icms = $7, ipi = $8, pis = $9, cofins = $10, icms_st = $11, iss = $12, irpj = $13, csll = $14,
			cost_date = $15, description = $16, updated_at = $17
		WHERE id = $1`
	t := c.Taxes
	tag, err := r.q.Exec(ctx, query,
		c.ID, c.Value, c.Quantity, c.UnitCost, c.FreightAllocated, c.BaseValue,
		t.ICMS, t.IPI, t.PIS, t.COFINS, t.ICMSST, t.ISS, t.IRPJ, t.CSLL,
		c.CostDate, nullString(c.Description), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update cost entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateAverageCost único campo que el recálculo toca.
func (r *CostEntryRepo) UpdateAverageCost(ctx context.Context, id string, averageCost decimal.Decimal) error {
	_, err := r.q.Exec(ctx, `UPDATE cost_entries SET average_cost = $2, updated_at = now() WHERE id = $1`, id, averageCost)
	if err != nil {
		return fmt.Errorf("update average cost: %w", err)
	}
	return nil
}

// ListByItem entradas del ítem en orden cronológico.
func (r *CostEntryRepo) ListByItem(ctx context.Context, itemID string) ([]*entity.CostEntry, error) {
	return r.list(ctx, "list costs by item", `SELECT `+costColumns+` FROM cost_entries WHERE item_id = $1`+costOrder, itemID)
}

// ListPurchasesByItem compras del ítem en orden cronológico.
func (r *CostEntryRepo) ListPurchasesByItem(ctx context.Context, itemID string) ([]*entity.CostEntry, error) {
	return r.list(ctx, "list purchases by item",
		`SELECT `+costColumns+` FROM cost_entries WHERE item_id = $1 AND kind = $2`+costOrder,
		itemID, string(entity.CostKindPurchase))
}

// ListByLot entradas de un lote en orden cronológico.
func (r *CostEntryRepo) ListByLot(ctx context.Context, lotID string) ([]*entity.CostEntry, error) {
	return r.list(ctx, "list costs by lot", `SELECT `+costColumns+` FROM cost_entries WHERE lot_id = $1`+costOrder, lotID)
}

// ListByPeriod entradas del ítem con cost_date en [from, to].
func (r *CostEntryRepo) ListByPeriod(ctx context.Context, itemID string, from, to time.Time) ([]*entity.CostEntry, error) {
	return r.list(ctx, "list costs by period",
		`SELECT `+costColumns+` FROM cost_entries WHERE item_id = $1 AND cost_date BETWEEN $2 AND $3`+costOrder,
		itemID, from, to)
}

// ListItemIDs ítems con al menos una entrada de costo.
func (r *CostEntryRepo) ListItemIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT DISTINCT item_id FROM cost_entries ORDER BY item_id`)
	if err != nil {
		return nil, fmt.Errorf("list cost items: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan cost item: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *CostEntryRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.CostEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.CostEntry
	for rows.Next() {
		c, err := scanCost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cost entry: %w", err)
		}
		list = append(list, c)
	}
	return list, rows.Err()
}

func scanCost(row pgx.Row) (*entity.CostEntry, error) {
	var c entity.CostEntry
	var kind string
	var lotID, actor, description *string
	t := &c.Taxes
	if err := row.Scan(&c.ID, &c.ItemID, &lotID, &kind, &c.Value, &c.Quantity, &c.UnitCost, &c.AverageCost,
		&c.FreightAllocated, &c.BaseValue,
		&t.ICMS, &t.IPI, &t.PIS, &t.COFINS, &t.ICMSST, &t.ISS, &t.IRPJ, &t.CSLL,
		&c.CostDate, &actor, &description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Kind = entity.CostKind(kind)
	c.LotID = fromNullString(lotID)
	c.Actor = fromNullString(actor)
	c.Description = fromNullString(description)
	return &c, nil
}

// RecalcPendingRepo ítems con recálculo pendiente.
type RecalcPendingRepo struct {
	q Querier
}

// NewRecalcPendingRepository construye el adaptador. Pasar pool o tx (Querier).
func NewRecalcPendingRepository(q Querier) *RecalcPendingRepo {
	return &RecalcPendingRepo{q: q}
}

// Mark registra o re-marca el ítem incrementando los intentos.
func (r *RecalcPendingRepo) Mark(ctx context.Context, itemID, reason string) error {
	query := `
		INSERT INTO cost_recalc_pending (item_id, reason, attempts, marked_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (item_id)
		DO UPDATE SET reason = EXCLUDED.reason, attempts = cost_recalc_pending.attempts + 1, marked_at = now()`
	if _, err := r.q.Exec(ctx, query, itemID, reason); err != nil {
		return fmt.Errorf("mark recalc pending: %w", err)
	}
	return nil
}

// Clear quita la marca; no falla si no existía.
func (r *RecalcPendingRepo) Clear(ctx context.Context, itemID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM cost_recalc_pending WHERE item_id = $1`, itemID); err != nil {
		return fmt.Errorf("clear recalc pending: %w", err)
	}
	return nil
}

// List ítems pendientes, los más antiguos primero.
func (r *RecalcPendingRepo) List(ctx context.Context) ([]string, error) {
	rows, err := r.q.Query(ctx, `SELECT item_id FROM cost_recalc_pending ORDER BY marked_at`)
	if err != nil {
		return nil, fmt.Errorf("list recalc pending: %w", err)
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan recalc pending: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
