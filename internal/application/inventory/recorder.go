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
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

// MovementRecorder es el punto de entrada de los movimientos de stock: resuelve lotes (FIFO o
// explícito), costea el movimiento, actualiza lotes y saldos y deja el diario, todo en una transacción.
// Cualquier error revierte todas las patas; no existe aplicación parcial.
type MovementRecorder struct {
	repos             Repos
	txRunner          TxRunner
	locker            KeyLocker
	costing           *CostingEngine
	defaultLocationID string
	log               *logger.Logger
}

// NewMovementRecorder construye el registrador. defaultLocationID se usa cuando el movimiento no trae ubicación.
func NewMovementRecorder(
	repos Repos,
	txRunner TxRunner,
	locker KeyLocker,
	costing *CostingEngine,
	defaultLocationID string,
	log *logger.Logger,
) *MovementRecorder {
	return &MovementRecorder{
		repos:             repos,
		txRunner:          txRunner,
		locker:            locker,
		costing:           costing,
		defaultLocationID: defaultLocationID,
		log:               log.Component("recorder"),
	}
}

// MovementInput entrada para Record.
// Lote: LotID apunta a un lote existente; LotNumber en un ENTRY crea el lote; sin ninguno,
// una salida de un ítem con control de lote se asigna por FIFO.
// Cost es el costo total del movimiento; si falta se usa cantidad x costo promedio ponderado.
type MovementInput struct {
	ItemID           string
	LocationID       string
	LotID            string
	LotNumber        string
	ExpirationDate   *time.Time
	Supplier         string
	Quantity         decimal.Decimal
	Kind             entity.MovementKind
	Cost             *decimal.Decimal
	Taxes            entity.Taxes
	FreightAllocated *decimal.Decimal
	Date             *time.Time
	Reference        string
	Actor            string
	Note             string
}

// TransferInput traslado entre ubicaciones. LotID vacío en un ítem con lotes asigna por FIFO
// según el saldo de cada lote en el origen.
type TransferInput struct {
	ItemID         string
	FromLocationID string
	ToLocationID   string
	LotID          string
	Quantity       decimal.Decimal
	Reference      string
	Actor          string
	Note           string
}

type portion struct {
	lotID     string
	lotNumber string
	qty       decimal.Decimal
}

func (p portion) key(itemID, locationID string) entity.BalanceKey {
	return entity.BalanceKey{ItemID: itemID, LocationID: locationID, LotID: p.lotID}
}

func allocationsOf(plan []portion) []entity.LotAllocation {
	out := make([]entity.LotAllocation, 0, len(plan))
	for _, p := range plan {
		if p.lotID == "" {
			continue
		}
		out = append(out, entity.LotAllocation{LotID: p.lotID, LotNumber: p.lotNumber, Quantity: p.qty})
	}
	return out
}

func singleLot(plan []portion) string {
	if len(plan) == 1 {
		return plan[0].lotID
	}
	return ""
}

// Record valida y aplica un movimiento. Devuelve el movimiento APPLIED o el error que lo rechazó.
func (r *MovementRecorder) Record(ctx context.Context, in MovementInput) (*entity.Movement, error) {
	if in.LocationID == "" {
		in.LocationID = r.defaultLocationID
	}
	mov, purchase, err := r.record(ctx, in)
	if err != nil {
		r.log.Warn().Err(err).Str("item_id", in.ItemID).Str("location_id", in.LocationID).
			Str("kind", string(in.Kind)).Str("status", entity.MovementStatusRejected).Msg("movimiento rechazado")
		return nil, err
	}
	r.log.Info().Str("movement_id", mov.ID).Str("item_id", mov.ItemID).Str("location_id", mov.LocationID).
		Str("kind", string(mov.Kind)).Str("quantity", mov.Quantity.String()).Int("lots", len(mov.Allocations)).
		Msg("movimiento aplicado")
	if purchase {
		// El movimiento ya está confirmado; un fallo aquí deja el ítem pendiente de recálculo.
		_ = r.costing.afterPurchase(ctx, mov.ItemID)
	}
	return mov, nil
}

func (r *MovementRecorder) record(ctx context.Context, in MovementInput) (*entity.Movement, bool, error) {
	if _, err := inventory.Sign(in.Kind); err != nil {
		return nil, false, err
	}
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return nil, false, domain.ErrInvalidQuantity
	}
	item, err := r.resolve(ctx, in.ItemID, in.LocationID)
	if err != nil {
		return nil, false, err
	}
	if !item.LotTracked && (in.LotID != "" || in.LotNumber != "") {
		// Sin control de lote el saldo vive solo en la llave sin lote.
		return nil, false, fmt.Errorf("ítem %s sin control de lote: %w", item.ID, domain.ErrInvalidInput)
	}
	consuming := inventory.IsConsuming(in.Kind)
	creatingLot := in.Kind == entity.MovementKindEntry && in.LotID == "" && in.LotNumber != ""

	var lot *entity.Lot
	if in.LotID != "" || (in.LotNumber != "" && !creatingLot) {
		if lot, err = r.resolveLot(ctx, item.ID, in.LotID, in.LotNumber); err != nil {
			return nil, false, err
		}
	}
	usesLots := item.LotTracked
	if usesLots && !consuming && lot == nil && !creatingLot {
		return nil, false, fmt.Errorf("ítem %s con control de lote: %w", item.ID, domain.ErrInvalidInput)
	}

	totalCost, unitCost, err := r.costFor(ctx, item.ID, in.Cost, in.Quantity)
	if err != nil {
		return nil, false, err
	}

	locks := newHeldLocks(r.locker)
	defer locks.release()
	if usesLots {
		if err := locks.acquire(ctx, lotsLockKey(item.ID)); err != nil {
			return nil, false, err
		}
	}

	var plan []portion
	switch {
	case lot != nil:
		plan = []portion{{lotID: lot.ID, lotNumber: lot.LotNumber, qty: in.Quantity}}
	case creatingLot:
		// El lote y su llave de saldo nacen dentro de la transacción.
	case usesLots:
		if plan, err = r.planFIFO(ctx, item.ID, in.LocationID, in.Quantity); err != nil {
			return nil, false, err
		}
	default:
		plan = []portion{{qty: in.Quantity}}
	}
	keys := make([]string, 0, len(plan))
	for _, p := range plan {
		keys = append(keys, p.key(item.ID, in.LocationID).String())
	}
	if err := locks.acquire(ctx, keys...); err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	date := now
	if in.Date != nil && !in.Date.IsZero() {
		date = in.Date.UTC()
	}
	movementID := uuid.New().String()
	reference := in.Reference
	if reference == "" {
		reference = movementID
	}
	mov := &entity.Movement{
		ID:         movementID,
		Reference:  reference,
		ItemID:     item.ID,
		LocationID: in.LocationID,
		Quantity:   in.Quantity,
		Kind:       in.Kind,
		UnitCost:   unitCost,
		TotalCost:  totalCost,
		Status:     entity.MovementStatusRequested,
		Actor:      in.Actor,
		Note:       in.Note,
		Date:       date,
		CreatedAt:  now,
	}

	purchase := false
	err = r.txRunner.Run(ctx, func(repos Repos) error {
		portions := plan
		if creatingLot {
			created, err := createLotTx(ctx, repos, CreateLotInput{
				ItemID:         item.ID,
				LotNumber:      in.LotNumber,
				EntryDate:      date,
				ExpirationDate: in.ExpirationDate,
				TotalQuantity:  in.Quantity,
				Supplier:       in.Supplier,
				Notes:          in.Note,
			})
			if err != nil {
				return err
			}
			portions = []portion{{lotID: created.ID, lotNumber: created.LotNumber, qty: in.Quantity}}
		} else if usesLots {
			for _, p := range portions {
				if err := adjustLotTx(ctx, repos, in.Kind, p); err != nil {
					return err
				}
			}
		}
		for _, p := range portions {
			_, _, err := applyTx(ctx, repos, ApplyInput{
				ItemID:     item.ID,
				LocationID: in.LocationID,
				LotID:      p.lotID,
				Quantity:   p.qty,
				Kind:       in.Kind,
				MovementID: mov.ID,
				Note:       in.Note,
			})
			if err != nil {
				return err
			}
		}
		if in.Kind == entity.MovementKindEntry && in.Cost != nil {
			_, err := registerCostTx(ctx, repos, CostInput{
				ItemID:           item.ID,
				LotID:            singleLot(portions),
				Kind:             entity.CostKindPurchase,
				Value:            totalCost,
				Quantity:         in.Quantity,
				Taxes:            in.Taxes,
				FreightAllocated: in.FreightAllocated,
				BaseValue:        totalCost,
				CostDate:         &date,
				Actor:            in.Actor,
				Description:      reference,
			})
			if err != nil {
				return err
			}
			purchase = true
		}
		mov.LotID = singleLot(portions)
		mov.Allocations = allocationsOf(portions)
		mov.Status = entity.MovementStatusApplied
		return repos.Movements.Create(ctx, mov)
	})
	if err != nil {
		return nil, false, err
	}
	return mov, purchase, nil
}

// adjustLotTx aplica el efecto del movimiento sobre el disponible del lote.
func adjustLotTx(ctx context.Context, repos Repos, kind entity.MovementKind, p portion) error {
	lot, err := repos.Lots.GetForUpdate(ctx, p.lotID)
	if err != nil {
		return err
	}
	if lot == nil {
		return fmt.Errorf("lote %s: %w", p.lotID, domain.ErrNotFound)
	}
	switch {
	case kind == entity.MovementKindEntry:
		return receiveIntoTx(ctx, repos, lot, p.qty)
	case inventory.IsConsuming(kind):
		if lot.AvailableQuantity.LessThan(p.qty) {
			return fmt.Errorf("lote %s: disponible %s, solicitado %s: %w",
				lot.LotNumber, lot.AvailableQuantity, p.qty, domain.ErrInsufficientStock)
		}
		return reduceAvailableTx(ctx, repos, lot, p.qty)
	default:
		return increaseAvailableTx(ctx, repos, lot, p.qty)
	}
}

// Transfer mueve stock entre ubicaciones: SAIDA en origen y ENTRY en destino con la misma referencia.
// El disponible de los lotes no cambia.
func (r *MovementRecorder) Transfer(ctx context.Context, in TransferInput) (out, inbound *entity.Movement, err error) {
	out, inbound, err = r.transfer(ctx, in)
	if err != nil {
		r.log.Warn().Err(err).Str("item_id", in.ItemID).Str("from", in.FromLocationID).Str("to", in.ToLocationID).
			Str("status", entity.MovementStatusRejected).Msg("traslado rechazado")
		return nil, nil, err
	}
	r.log.Info().Str("reference", out.Reference).Str("item_id", in.ItemID).Str("from", in.FromLocationID).
		Str("to", in.ToLocationID).Str("quantity", in.Quantity.String()).Msg("traslado aplicado")
	return out, inbound, nil
}

func (r *MovementRecorder) transfer(ctx context.Context, in TransferInput) (*entity.Movement, *entity.Movement, error) {
	if in.FromLocationID == "" || in.ToLocationID == "" || in.FromLocationID == in.ToLocationID {
		return nil, nil, domain.ErrInvalidInput
	}
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return nil, nil, domain.ErrInvalidQuantity
	}
	item, err := r.resolve(ctx, in.ItemID, in.FromLocationID)
	if err != nil {
		return nil, nil, err
	}
	if err := r.resolveLocation(ctx, in.ToLocationID); err != nil {
		return nil, nil, err
	}
	if !item.LotTracked && in.LotID != "" {
		return nil, nil, fmt.Errorf("ítem %s sin control de lote: %w", item.ID, domain.ErrInvalidInput)
	}
	var lot *entity.Lot
	if in.LotID != "" {
		if lot, err = r.resolveLot(ctx, item.ID, in.LotID, ""); err != nil {
			return nil, nil, err
		}
	}
	usesLots := item.LotTracked

	totalCost, unitCost, err := r.costFor(ctx, item.ID, nil, in.Quantity)
	if err != nil {
		return nil, nil, err
	}

	locks := newHeldLocks(r.locker)
	defer locks.release()
	if usesLots {
		if err := locks.acquire(ctx, lotsLockKey(item.ID)); err != nil {
			return nil, nil, err
		}
	}
	var plan []portion
	switch {
	case lot != nil:
		plan = []portion{{lotID: lot.ID, lotNumber: lot.LotNumber, qty: in.Quantity}}
	case usesLots:
		if plan, err = r.planFIFO(ctx, item.ID, in.FromLocationID, in.Quantity); err != nil {
			return nil, nil, err
		}
	default:
		plan = []portion{{qty: in.Quantity}}
	}
	keys := make([]string, 0, 2*len(plan))
	for _, p := range plan {
		keys = append(keys, p.key(item.ID, in.FromLocationID).String(), p.key(item.ID, in.ToLocationID).String())
	}
	if err := locks.acquire(ctx, keys...); err != nil {
		return nil, nil, err
	}

	now := time.Now().UTC()
	outID := uuid.New().String()
	reference := in.Reference
	if reference == "" {
		reference = outID
	}
	leg := func(id, locationID string, kind entity.MovementKind) *entity.Movement {
		return &entity.Movement{
			ID:          id,
			Reference:   reference,
			ItemID:      item.ID,
			LocationID:  locationID,
			LotID:       singleLot(plan),
			Quantity:    in.Quantity,
			Kind:        kind,
			UnitCost:    unitCost,
			TotalCost:   totalCost,
			Status:      entity.MovementStatusRequested,
			Allocations: allocationsOf(plan),
			Actor:       in.Actor,
			Note:        in.Note,
			Date:        now,
			CreatedAt:   now,
		}
	}
	outMov := leg(outID, in.FromLocationID, entity.MovementKindOut)
	inMov := leg(uuid.New().String(), in.ToLocationID, entity.MovementKindEntry)

	err = r.txRunner.Run(ctx, func(repos Repos) error {
		for _, p := range plan {
			if _, _, err := applyTx(ctx, repos, ApplyInput{
				ItemID: item.ID, LocationID: in.FromLocationID, LotID: p.lotID, Quantity: p.qty,
				Kind: entity.MovementKindOut, MovementID: outMov.ID, Note: in.Note,
			}); err != nil {
				return err
			}
			if _, _, err := applyTx(ctx, repos, ApplyInput{
				ItemID: item.ID, LocationID: in.ToLocationID, LotID: p.lotID, Quantity: p.qty,
				Kind: entity.MovementKindEntry, MovementID: inMov.ID, Note: in.Note,
			}); err != nil {
				return err
			}
		}
		outMov.Status = entity.MovementStatusApplied
		inMov.Status = entity.MovementStatusApplied
		if err := repos.Movements.Create(ctx, outMov); err != nil {
			return err
		}
		return repos.Movements.Create(ctx, inMov)
	})
	if err != nil {
		return nil, nil, err
	}
	return outMov, inMov, nil
}

// planFIFO arma el plan de consumo tope por el saldo de cada lote en la ubicación.
func (r *MovementRecorder) planFIFO(ctx context.Context, itemID, locationID string, qty decimal.Decimal) ([]portion, error) {
	lots, err := r.repos.Lots.ListAvailableFIFO(ctx, itemID)
	if err != nil {
		return nil, err
	}
	balances, err := r.repos.Balances.ListByItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	atLocation := make(map[string]decimal.Decimal, len(balances))
	for _, b := range balances {
		if b.LocationID == locationID && b.LotID != "" {
			atLocation[b.LotID] = b.Quantity
		}
	}
	allocs, err := inventory.AllocateFIFO(lots, qty, func(l *entity.Lot) decimal.Decimal {
		return atLocation[l.ID]
	})
	if err != nil {
		return nil, fmt.Errorf("ítem %s en %s: %w", itemID, locationID, err)
	}
	plan := make([]portion, 0, len(allocs))
	for _, a := range allocs {
		plan = append(plan, portion{lotID: a.LotID, lotNumber: a.LotNumber, qty: a.Quantity})
	}
	return plan, nil
}

// costFor devuelve costo total y unitario. Sin costo explícito usa el promedio ponderado del ítem.
func (r *MovementRecorder) costFor(ctx context.Context, itemID string, cost *decimal.Decimal, qty decimal.Decimal) (decimal.Decimal, decimal.Decimal, error) {
	var total decimal.Decimal
	if cost != nil {
		if cost.LessThan(decimal.Zero) {
			return decimal.Zero, decimal.Zero, domain.ErrInvalidInput
		}
		total = *cost
	} else {
		avg, err := r.costing.WeightedAverageCost(ctx, itemID)
		if err != nil {
			return decimal.Zero, decimal.Zero, err
		}
		total = avg.Mul(qty).Round(inventory.StoredScale)
	}
	return total, inventory.UnitCost(total, qty), nil
}

func (r *MovementRecorder) resolve(ctx context.Context, itemID, locationID string) (*entity.Item, error) {
	if itemID == "" || locationID == "" {
		return nil, domain.ErrInvalidInput
	}
	item, err := r.repos.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("ítem %s: %w", itemID, domain.ErrNotFound)
	}
	if !item.IsActive() {
		return nil, fmt.Errorf("ítem %s: %w", itemID, domain.ErrInactive)
	}
	if err := r.resolveLocation(ctx, locationID); err != nil {
		return nil, err
	}
	return item, nil
}

func (r *MovementRecorder) resolveLocation(ctx context.Context, locationID string) error {
	loc, err := r.repos.Locations.GetByID(ctx, locationID)
	if err != nil {
		return err
	}
	if loc == nil {
		return fmt.Errorf("ubicación %s: %w", locationID, domain.ErrNotFound)
	}
	if !loc.IsActive() {
		return fmt.Errorf("ubicación %s: %w", locationID, domain.ErrInactive)
	}
	return nil
}

// resolveLot busca por ID o, si no hay ID, por número. El lote debe ser del ítem.
func (r *MovementRecorder) resolveLot(ctx context.Context, itemID, lotID, lotNumber string) (*entity.Lot, error) {
	var (
		lot *entity.Lot
		err error
	)
	if lotID != "" {
		lot, err = r.repos.Lots.GetByID(ctx, lotID)
	} else {
		lot, err = r.repos.Lots.GetByNumber(ctx, inventory.NormalizeLotNumber(lotNumber))
	}
	if err != nil {
		return nil, err
	}
	if lot == nil || lot.ItemID != itemID {
		return nil, fmt.Errorf("lote %s%s: %w", lotID, lotNumber, domain.ErrNotFound)
	}
	return lot, nil
}

// GetMovement obtiene un movimiento por ID.
func (r *MovementRecorder) GetMovement(ctx context.Context, id string) (*entity.Movement, error) {
	mov, err := r.repos.Movements.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if mov == nil {
		return nil, domain.ErrNotFound
	}
	return mov, nil
}

// ListMovements lista movimientos aplicados, más recientes primero.
func (r *MovementRecorder) ListMovements(ctx context.Context, filter repository.MovementFilter) ([]*entity.Movement, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return r.repos.Movements.List(ctx, filter)
}

// MovementJournal entradas de diario que generó un movimiento (una por porción de lote).
func (r *MovementRecorder) MovementJournal(ctx context.Context, movementID string) ([]*entity.JournalEntry, error) {
	return r.repos.Journal.ListByMovement(ctx, movementID)
}
