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

var _ repository.LotRepository = (*LotRepo)(nil)

const lotColumns = `id, item_id, lot_number, entry_date, expiration_date, total_quantity, available_quantity,
	supplier, notes, status, created_at, updated_at`

// LotRepo implementación de LotRepository sobre PostgreSQL (usable con pool o tx).
type LotRepo struct {
	q Querier
}

// NewLotRepository construye el adaptador de lotes. Pasar pool o tx (Querier).
func NewLotRepository(q Querier) *LotRepo {
	return &LotRepo{q: q}
}

func scanLot(row pgx.Row) (*entity.Lot, error) {
	var l entity.Lot
	var supplier, notes *string
	if err := row.Scan(&l.ID, &l.ItemID, &l.LotNumber, &l.EntryDate, &l.ExpirationDate,
		&l.TotalQuantity, &l.AvailableQuantity, &supplier, &notes, &l.Status, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Supplier = fromNullString(supplier)
	l.Notes = fromNullString(notes)
	return &l, nil
}

func (r *LotRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.Lot, error) {
	l, err := scanLot(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return l, nil
}

func (r *LotRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Lot, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	var list []*entity.Lot
	for rows.Next() {
		l, err := scanLot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan lot: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}

// Create persiste un lote. El índice único de lot_number se traduce a ErrDuplicateLot.
func (r *LotRepo) Create(ctx context.Context, lot *entity.Lot) error {
	query := `INSERT INTO lots (` + lotColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		lot.ID, lot.ItemID, lot.LotNumber, lot.EntryDate, lot.ExpirationDate, lot.TotalQuantity, lot.AvailableQuantity,
		nullString(lot.Supplier), nullString(lot.Notes), lot.Status, lot.CreatedAt, lot.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateLot
		}
		return fmt.Errorf("create lot: %w", err)
	}
	return nil
}

// GetByID obtiene un lote; (nil, nil) si no existe.
func (r *LotRepo) GetByID(ctx context.Context, id string) (*entity.Lot, error) {
	return r.getOne(ctx, "get lot", `SELECT `+lotColumns+` FROM lots WHERE id = $1`, id)
}

// GetForUpdate obtiene el lote y bloquea la fila (SELECT FOR UPDATE).
func (r *LotRepo) GetForUpdate(ctx context.Context, id string) (*entity.Lot, error) {
	return r.getOne(ctx, "get lot for update", `SELECT `+lotColumns+` FROM lots WHERE id = $1 FOR UPDATE`, id)
}

// GetByNumber busca por número ya normalizado.
func (r *LotRepo) GetByNumber(ctx context.Context, lotNumber string) (*entity.Lot, error) {
	return r.getOne(ctx, "get lot by number", `SELECT `+lotColumns+` FROM lots WHERE lot_number = $1`, lotNumber)
}

// Update guarda los campos editables y las cantidades.
func (r *LotRepo) Update(ctx context.Context, lot *entity.Lot) error {
	query := `
		UPDATE lots SET lot_number = $2, entry_date = $3, expiration_date = $4, total_quantity = $5,
			available_quantity = $6, supplier = $7, notes = $8, status = $9, updated_at = $10
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		lot.ID, lot.LotNumber, lot.EntryDate, lot.ExpirationDate, lot.TotalQuantity, lot.AvailableQuantity,
		nullString(lot.Supplier), nullString(lot.Notes), lot.Status, lot.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateLot
		}
		return fmt.Errorf("update lot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByItem lotes del ítem, más recientes primero.
func (r *LotRepo) ListByItem(ctx context.Context, itemID string) ([]*entity.Lot, error) {
	return r.list(ctx, "list lots by item",
		`SELECT `+lotColumns+` FROM lots WHERE item_id = $1 ORDER BY entry_date DESC, created_at DESC, id DESC`, itemID)
}

const fifoWhere = ` FROM lots WHERE item_id = $1 AND status <> 'inactive' AND available_quantity > 0
	ORDER BY entry_date, created_at, id`

// ListAvailableFIFO lotes activos con disponible, más antiguos primero.
func (r *LotRepo) ListAvailableFIFO(ctx context.Context, itemID string) ([]*entity.Lot, error) {
	return r.list(ctx, "list fifo lots", `SELECT `+lotColumns+fifoWhere, itemID)
}

// ListExpired lotes activos con vencimiento anterior a asOf.
func (r *LotRepo) ListExpired(ctx context.Context, asOf time.Time) ([]*entity.Lot, error) {
	return r.list(ctx, "list expired lots",
		`SELECT `+lotColumns+` FROM lots
		WHERE status <> 'inactive' AND expiration_date IS NOT NULL AND expiration_date < $1
		ORDER BY expiration_date, entry_date`, asOf)
}

// ListExpiringBetween lotes activos que vencen en [start, end].
func (r *LotRepo) ListExpiringBetween(ctx context.Context, start, end time.Time) ([]*entity.Lot, error) {
	return r.list(ctx, "list expiring lots",
		`SELECT `+lotColumns+` FROM lots
		WHERE status <> 'inactive' AND expiration_date BETWEEN $1 AND $2
		ORDER BY expiration_date, entry_date`, start, end)
}

// SumAvailable suma del disponible de los lotes activos del ítem.
func (r *LotRepo) SumAvailable(ctx context.Context, itemID string) (decimal.Decimal, error) {
	return r.sum(ctx, "available_quantity", itemID)
}

// SumTotal suma del total de los lotes activos del ítem.
func (r *LotRepo) SumTotal(ctx context.Context, itemID string) (decimal.Decimal, error) {
	return r.sum(ctx, "total_quantity", itemID)
}

func (r *LotRepo) sum(ctx context.Context, column, itemID string) (decimal.Decimal, error) {
	var total decimal.Decimal
	query := `SELECT COALESCE(SUM(` + column + `), 0) FROM lots WHERE item_id = $1 AND status <> 'inactive'`
	if err := r.q.QueryRow(ctx, query, itemID).Scan(&total); err != nil {
		return decimal.Zero, fmt.Errorf("sum lots %s: %w", column, err)
	}
	return total, nil
}
