package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

const movementColumns = `id, reference, item_id, location_id, lot_id, quantity, kind, unit_cost, total_cost,
	status, allocations, actor, note, date, created_at`

// MovementRepo implementación sobre PostgreSQL (usable con pool o tx).
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

// Create persiste un movimiento aplicado. Las porciones por lote van en JSONB.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	allocations := m.Allocations
	if allocations == nil {
		allocations = []entity.LotAllocation{}
	}
	raw, err := json.Marshal(allocations)
	if err != nil {
		return fmt.Errorf("marshal allocations: %w", err)
	}
	query := `INSERT INTO stock_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = r.q.Exec(ctx, query,
		m.ID, m.Reference, m.ItemID, m.LocationID, nullString(m.LotID), m.Quantity, string(m.Kind),
		m.UnitCost, m.TotalCost, m.Status, raw, nullString(m.Actor), nullString(m.Note), m.Date, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create movement: %w", err)
	}
	return nil
}

// GetByID obtiene un movimiento; (nil, nil) si no existe.
func (r *MovementRepo) GetByID(ctx context.Context, id string) (*entity.Movement, error) {
	m, err := scanMovement(r.q.QueryRow(ctx, `SELECT `+movementColumns+` FROM stock_movements WHERE id = $1`, id))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get movement: %w", err)
	}
	return m, nil
}

// List movimientos filtrados, más recientes primero.
func (r *MovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE TRUE`
	var args []any
	pos := 1
	add := func(cond string, v any) {
		query += fmt.Sprintf(" AND "+cond, pos)
		args = append(args, v)
		pos++
	}
	if f.ItemID != "" {
		add("item_id = $%d", f.ItemID)
	}
	if f.LocationID != "" {
		add("location_id = $%d", f.LocationID)
	}
	if f.Reference != "" {
		add("reference = $%d", f.Reference)
	}
	if f.From != nil {
		add("date >= $%d", *f.From)
	}
	if f.To != nil {
		add("date <= $%d", *f.To)
	}
	query += fmt.Sprintf(" ORDER BY date DESC, created_at DESC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var m entity.Movement
	var kind string
	var lotID, actor, note *string
	var raw []byte
	if err := row.Scan(&m.ID, &m.Reference, &m.ItemID, &m.LocationID, &lotID, &m.Quantity, &kind,
		&m.UnitCost, &m.TotalCost, &m.Status, &raw, &actor, &note, &m.Date, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Kind = entity.MovementKind(kind)
	m.LotID = fromNullString(lotID)
	m.Actor = fromNullString(actor)
	m.Note = fromNullString(note)
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &m.Allocations); err != nil {
			return nil, fmt.Errorf("unmarshal allocations: %w", err)
		}
	}
	return &m, nil
}
