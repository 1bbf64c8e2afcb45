package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

// LotManager administra la cantidad total/disponible de cada lote y entrega
// los lotes candidatos en orden FIFO para el consumo.
type LotManager struct {
	repos    Repos
	txRunner TxRunner
	locker   KeyLocker
	log      *logger.Logger
}

// NewLotManager construye el administrador de lotes.
func NewLotManager(repos Repos, txRunner TxRunner, locker KeyLocker, log *logger.Logger) *LotManager {
	return &LotManager{repos: repos, txRunner: txRunner, locker: locker, log: log.Component("lots")}
}

// CreateLotInput datos para crear un lote. AvailableQuantity inicia igual a TotalQuantity.
type CreateLotInput struct {
	ItemID         string
	LotNumber      string
	EntryDate      time.Time
	ExpirationDate *time.Time
	TotalQuantity  decimal.Decimal
	Supplier       string
	Notes          string
}

// UpdateLotInput campos editables de un lote.
type UpdateLotInput struct {
	LotNumber      string
	EntryDate      time.Time
	ExpirationDate *time.Time
	TotalQuantity  decimal.Decimal
	Supplier       string
	Notes          string
}

// CreateLot crea un lote nuevo. Falla con ErrDuplicateLot si el número ya existe para cualquier ítem.
func (m *LotManager) CreateLot(ctx context.Context, in CreateLotInput) (*entity.Lot, error) {
	item, err := m.repos.Items.GetByID(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	locks := newHeldLocks(m.locker)
	if err := locks.acquire(ctx, lotsLockKey(in.ItemID)); err != nil {
		return nil, err
	}
	defer locks.release()

	var lot *entity.Lot
	err = m.txRunner.Run(ctx, func(repos Repos) error {
		var err error
		lot, err = createLotTx(ctx, repos, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("item_id", lot.ItemID).Str("lot_id", lot.ID).Str("lot_number", lot.LotNumber).Msg("lote creado")
	return lot, nil
}

// createLotTx valida y persiste un lote con los repositorios de la transacción en curso.
func createLotTx(ctx context.Context, repos Repos, in CreateLotInput) (*entity.Lot, error) {
	number := inventory.NormalizeLotNumber(in.LotNumber)
	if number == "" || in.ItemID == "" {
		return nil, domain.ErrInvalidInput
	}
	if !in.TotalQuantity.GreaterThan(decimal.Zero) {
		return nil, domain.ErrInvalidQuantity
	}
	existing, err := repos.Lots.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrDuplicateLot
	}
	now := time.Now().UTC()
	entry := in.EntryDate
	if entry.IsZero() {
		entry = now
	}
	lot := &entity.Lot{
		ID:                uuid.New().String(),
		ItemID:            in.ItemID,
		LotNumber:         number,
		EntryDate:         entry,
		ExpirationDate:    in.ExpirationDate,
		TotalQuantity:     in.TotalQuantity,
		AvailableQuantity: in.TotalQuantity,
		Supplier:          in.Supplier,
		Notes:             in.Notes,
		Status:            entity.StatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := repos.Lots.Create(ctx, lot); err != nil {
		return nil, err
	}
	return lot, nil
}

// SelectForConsumption devuelve el plan FIFO (lote, cantidad) que cubre qty.
// Solo lectura: no reserva nada. Falla con ErrInsufficientStock si los lotes no alcanzan.
func (m *LotManager) SelectForConsumption(ctx context.Context, itemID string, qty decimal.Decimal) ([]entity.LotAllocation, error) {
	lots, err := m.repos.Lots.ListAvailableFIFO(ctx, itemID)
	if err != nil {
		return nil, err
	}
	return inventory.AllocateFIFO(lots, qty, nil)
}

// ReduceAvailable descuenta qty del disponible del lote.
func (m *LotManager) ReduceAvailable(ctx context.Context, lotID string, qty decimal.Decimal) (*entity.Lot, error) {
	return m.adjust(ctx, lotID, func(ctx context.Context, repos Repos, lot *entity.Lot) error {
		return reduceAvailableTx(ctx, repos, lot, qty)
	})
}

// IncreaseAvailable repone qty al disponible del lote sin superar el total.
func (m *LotManager) IncreaseAvailable(ctx context.Context, lotID string, qty decimal.Decimal) (*entity.Lot, error) {
	return m.adjust(ctx, lotID, func(ctx context.Context, repos Repos, lot *entity.Lot) error {
		return increaseAvailableTx(ctx, repos, lot, qty)
	})
}

func (m *LotManager) adjust(ctx context.Context, lotID string, fn func(ctx context.Context, repos Repos, lot *entity.Lot) error) (*entity.Lot, error) {
	current, err := m.repos.Lots.GetByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}
	locks := newHeldLocks(m.locker)
	if err := locks.acquire(ctx, lotsLockKey(current.ItemID)); err != nil {
		return nil, err
	}
	defer locks.release()

	var lot *entity.Lot
	err = m.txRunner.Run(ctx, func(repos Repos) error {
		var err error
		lot, err = repos.Lots.GetForUpdate(ctx, lotID)
		if err != nil {
			return err
		}
		if lot == nil {
			return domain.ErrNotFound
		}
		return fn(ctx, repos, lot)
	})
	if err != nil {
		return nil, err
	}
	return lot, nil
}

// reduceAvailableTx exige 0 < qty <= disponible.
func reduceAvailableTx(ctx context.Context, repos Repos, lot *entity.Lot, qty decimal.Decimal) error {
	if !qty.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidQuantity
	}
	next := lot.AvailableQuantity.Sub(qty)
	if next.LessThan(decimal.Zero) {
		return fmt.Errorf("lote %s: disponible %s, solicitado %s: %w",
			lot.LotNumber, lot.AvailableQuantity, qty, domain.ErrInvalidQuantity)
	}
	lot.AvailableQuantity = next
	lot.UpdatedAt = time.Now().UTC()
	return repos.Lots.Update(ctx, lot)
}

// increaseAvailableTx exige que el disponible resultante no supere el total.
func increaseAvailableTx(ctx context.Context, repos Repos, lot *entity.Lot, qty decimal.Decimal) error {
	if !qty.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidQuantity
	}
	next := lot.AvailableQuantity.Add(qty)
	if next.GreaterThan(lot.TotalQuantity) {
		return fmt.Errorf("lote %s: disponible %s excede el total %s: %w",
			lot.LotNumber, next, lot.TotalQuantity, domain.ErrInvalidQuantity)
	}
	lot.AvailableQuantity = next
	lot.UpdatedAt = time.Now().UTC()
	return repos.Lots.Update(ctx, lot)
}

// receiveIntoTx amplía un lote existente con una nueva recepción (total y disponible crecen).
func receiveIntoTx(ctx context.Context, repos Repos, lot *entity.Lot, qty decimal.Decimal) error {
	if !qty.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidQuantity
	}
	lot.TotalQuantity = lot.TotalQuantity.Add(qty)
	lot.AvailableQuantity = lot.AvailableQuantity.Add(qty)
	lot.UpdatedAt = time.Now().UTC()
	return repos.Lots.Update(ctx, lot)
}

// GetLot obtiene un lote por ID.
func (m *LotManager) GetLot(ctx context.Context, id string) (*entity.Lot, error) {
	lot, err := m.repos.Lots.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, domain.ErrNotFound
	}
	return lot, nil
}

// GetByNumber obtiene un lote por su número (se normaliza antes de buscar).
func (m *LotManager) GetByNumber(ctx context.Context, lotNumber string) (*entity.Lot, error) {
	lot, err := m.repos.Lots.GetByNumber(ctx, inventory.NormalizeLotNumber(lotNumber))
	if err != nil {
		return nil, err
	}
	if lot == nil {
		return nil, domain.ErrNotFound
	}
	return lot, nil
}

// ListByItem lista los lotes de un ítem, más recientes primero.
func (m *LotManager) ListByItem(ctx context.Context, itemID string) ([]*entity.Lot, error) {
	return m.repos.Lots.ListByItem(ctx, itemID)
}

// ListAvailableFIFO lista los lotes activos con disponible, más antiguos primero.
func (m *LotManager) ListAvailableFIFO(ctx context.Context, itemID string) ([]*entity.Lot, error) {
	return m.repos.Lots.ListAvailableFIFO(ctx, itemID)
}

// ListExpired lotes activos vencidos a la fecha indicada.
func (m *LotManager) ListExpired(ctx context.Context, asOf time.Time) ([]*entity.Lot, error) {
	return m.repos.Lots.ListExpired(ctx, asOf)
}

// ListExpiringBetween lotes activos que vencen dentro del rango [start, end].
func (m *LotManager) ListExpiringBetween(ctx context.Context, start, end time.Time) ([]*entity.Lot, error) {
	if end.Before(start) {
		return nil, domain.ErrInvalidInput
	}
	return m.repos.Lots.ListExpiringBetween(ctx, start, end)
}

// AggregateAvailable suma del disponible de los lotes activos del ítem.
func (m *LotManager) AggregateAvailable(ctx context.Context, itemID string) (decimal.Decimal, error) {
	return m.repos.Lots.SumAvailable(ctx, itemID)
}

// AggregateTotal suma del total recibido de los lotes activos del ítem.
func (m *LotManager) AggregateTotal(ctx context.Context, itemID string) (decimal.Decimal, error) {
	return m.repos.Lots.SumTotal(ctx, itemID)
}

// UpdateLot edita un lote. El total no puede quedar por debajo de lo ya consumido.
func (m *LotManager) UpdateLot(ctx context.Context, id string, in UpdateLotInput) (*entity.Lot, error) {
	return m.adjust(ctx, id, func(ctx context.Context, repos Repos, lot *entity.Lot) error {
		number := inventory.NormalizeLotNumber(in.LotNumber)
		if number != "" && number != lot.LotNumber {
			other, err := repos.Lots.GetByNumber(ctx, number)
			if err != nil {
				return err
			}
			if other != nil {
				return domain.ErrDuplicateLot
			}
			lot.LotNumber = number
		}
		consumed := lot.ConsumedQuantity()
		if in.TotalQuantity.LessThan(consumed) || !in.TotalQuantity.GreaterThan(decimal.Zero) {
			return fmt.Errorf("total %s menor que lo consumido %s: %w", in.TotalQuantity, consumed, domain.ErrInvalidQuantity)
		}
		if !in.EntryDate.IsZero() {
			lot.EntryDate = in.EntryDate
		}
		lot.ExpirationDate = in.ExpirationDate
		lot.TotalQuantity = in.TotalQuantity
		lot.AvailableQuantity = in.TotalQuantity.Sub(consumed)
		lot.Supplier = in.Supplier
		lot.Notes = in.Notes
		lot.UpdatedAt = time.Now().UTC()
		return repos.Lots.Update(ctx, lot)
	})
}

// DeactivateLot desactiva el lote; deja de participar en FIFO pero sigue siendo resoluble.
func (m *LotManager) DeactivateLot(ctx context.Context, id string) (*entity.Lot, error) {
	lot, err := m.adjust(ctx, id, func(ctx context.Context, repos Repos, lot *entity.Lot) error {
		lot.Status = entity.StatusInactive
		lot.UpdatedAt = time.Now().UTC()
		return repos.Lots.Update(ctx, lot)
	})
	if err != nil {
		return nil, err
	}
	m.log.Info().Str("lot_id", lot.ID).Str("lot_number", lot.LotNumber).Msg("lote desactivado")
	return lot, nil
}
