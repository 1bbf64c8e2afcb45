package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var _ repository.JournalRepository = (*JournalRepo)(nil)

const journalColumns = `id, item_id, location_id, lot_id, previous_quantity, new_quantity, quantity, kind,
	movement_id, note, created_at`

// JournalRepo diario de saldos sobre PostgreSQL. Solo INSERT y SELECT.
type JournalRepo struct {
	q Querier
}

// NewJournalRepository construye el adaptador. Pasar pool o tx (Querier).
func NewJournalRepository(q Querier) *JournalRepo {
	return &JournalRepo{q: q}
}

// Append inserta una entrada; seq la ordena.
func (r *JournalRepo) Append(ctx context.Context, e *entity.JournalEntry) error {
	query := `INSERT INTO stock_journal (` + journalColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.q.Exec(ctx, query,
		e.ID, e.ItemID, e.LocationID, e.LotID, e.PreviousQuantity, e.NewQuantity, e.Quantity, string(e.Kind),
		nullString(e.MovementID), nullString(e.Note), e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}

// ListByKey diario completo de la llave en orden de inserción.
func (r *JournalRepo) ListByKey(ctx context.Context, key entity.BalanceKey) ([]*entity.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM stock_journal
		WHERE item_id = $1 AND location_id = $2 AND lot_id = $3 ORDER BY seq`
	return r.list(ctx, "list journal by key", query, key.ItemID, key.LocationID, key.LotID)
}

// List diario filtrado, más reciente primero.
func (r *JournalRepo) List(ctx context.Context, f repository.JournalFilter) ([]*entity.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM stock_journal WHERE TRUE`
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
	if f.LotID != nil {
		add("lot_id = $%d", *f.LotID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at <= $%d", *f.To)
	}
	query += fmt.Sprintf(" ORDER BY seq DESC LIMIT $%d OFFSET $%d", pos, pos+1)
	args = append(args, f.Limit, f.Offset)
	return r.list(ctx, "list journal", query, args...)
}

// ListByMovement entradas generadas por un movimiento.
func (r *JournalRepo) ListByMovement(ctx context.Context, movementID string) ([]*entity.JournalEntry, error) {
	query := `SELECT ` + journalColumns + ` FROM stock_journal WHERE movement_id = $1 ORDER BY seq`
	return r.list(ctx, "list journal by movement", query, movementID)
}

func (r *JournalRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.JournalEntry, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.JournalEntry
	for rows.Next() {
		e, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		list = append(list, e)
	}
	return list, rows.Err()
}

func scanJournal(row pgx.Row) (*entity.JournalEntry, error) {
	var e entity.JournalEntry
	var kind string
	var movementID, note *string
	if err := row.Scan(&e.ID, &e.ItemID, &e.LocationID, &e.LotID, &e.PreviousQuantity, &e.NewQuantity,
		&e.Quantity, &kind, &movementID, &note, &e.CreatedAt); err != nil {
		return nil, err
	}
	e.Kind = entity.MovementKind(kind)
	e.MovementID = fromNullString(movementID)
	e.Note = fromNullString(note)
	return &e, nil
}
