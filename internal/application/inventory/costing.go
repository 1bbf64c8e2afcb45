package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

// CostingEngine registra entradas de costo y mantiene el costo promedio corrido por ítem.
// El recálculo siempre reprocesa todo el historial de compras del ítem.
type CostingEngine struct {
	repos    Repos
	txRunner TxRunner
	locker   KeyLocker
	log      *logger.Logger
}

// NewCostingEngine construye el motor de costos.
func NewCostingEngine(repos Repos, txRunner TxRunner, locker KeyLocker, log *logger.Logger) *CostingEngine {
	return &CostingEngine{repos: repos, txRunner: txRunner, locker: locker, log: log.Component("costing")}
}

// ShipmentFreight flete total de un embarque y la cantidad total que cubre.
// Se prorratea a la entrada según su cantidad.
type ShipmentFreight struct {
	Total    decimal.Decimal
	Quantity decimal.Decimal
}

// CostInput entrada para RegisterCost.
// FreightAllocated explícito tiene prioridad sobre ShipmentFreight.
type CostInput struct {
	ItemID           string
	LotID            string
	Kind             entity.CostKind
	Value            decimal.Decimal
	Quantity         decimal.Decimal
	Taxes            entity.Taxes
	FreightAllocated *decimal.Decimal
	ShipmentFreight  *ShipmentFreight
	BaseValue        decimal.Decimal
	CostDate         *time.Time
	Actor            string
	Description      string
}

// CostUpdate campos editables de una entrada de costo.
type CostUpdate struct {
	Value            decimal.Decimal
	Quantity         decimal.Decimal
	Taxes            entity.Taxes
	FreightAllocated decimal.Decimal
	BaseValue        decimal.Decimal
	CostDate         *time.Time
	Description      string
}

// RegisterCost persiste la entrada y, si es una compra, recalcula el promedio del ítem.
// Si el recálculo falla la entrada queda guardada: se devuelve junto a un error que envuelve
// ErrRecalculationFailure y el ítem queda marcado para reintento.
func (e *CostingEngine) RegisterCost(ctx context.Context, in CostInput) (*entity.CostEntry, error) {
	var entry *entity.CostEntry
	err := e.txRunner.Run(ctx, func(repos Repos) error {
		var err error
		entry, err = registerCostTx(ctx, repos, in)
		return err
	})
	if err != nil {
		e.log.Warn().Err(err).Str("item_id", in.ItemID).Str("kind", string(in.Kind)).Msg("entrada de costo rechazada")
		return nil, err
	}
	e.log.Info().Str("item_id", entry.ItemID).Str("cost_id", entry.ID).Str("kind", string(entry.Kind)).
		Str("value", entry.Value.String()).Msg("entrada de costo registrada")

	if entry.Kind == entity.CostKindPurchase {
		if err := e.afterPurchase(ctx, entry.ItemID); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// registerCostTx valida y crea la entrada dentro de la transacción del llamador.
// No recalcula: el recálculo corre después del Commit.
func registerCostTx(ctx context.Context, repos Repos, in CostInput) (*entity.CostEntry, error) {
	if in.ItemID == "" || !in.Kind.Valid() {
		return nil, domain.ErrInvalidInput
	}
	if in.Value.LessThan(decimal.Zero) || in.Quantity.LessThan(decimal.Zero) {
		return nil, domain.ErrInvalidQuantity
	}
	item, err := repos.Items.GetByID(ctx, in.ItemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("ítem %s: %w", in.ItemID, domain.ErrNotFound)
	}
	if in.LotID != "" {
		lot, err := repos.Lots.GetByID(ctx, in.LotID)
		if err != nil {
			return nil, err
		}
		if lot == nil || lot.ItemID != in.ItemID {
			return nil, fmt.Errorf("lote %s: %w", in.LotID, domain.ErrNotFound)
		}
	}

	now := time.Now().UTC()
	costDate := now
	if in.CostDate != nil && !in.CostDate.IsZero() {
		costDate = in.CostDate.UTC()
	}
	entry := &entity.CostEntry{
		ID:               uuid.New().String(),
		ItemID:           in.ItemID,
		LotID:            in.LotID,
		Kind:             in.Kind,
		Value:            in.Value,
		Quantity:         in.Quantity,
		UnitCost:         inventory.UnitCost(in.Value, in.Quantity),
		FreightAllocated: freightFor(in),
		BaseValue:        in.BaseValue,
		Taxes:            in.Taxes,
		CostDate:         costDate,
		Actor:            in.Actor,
		Description:      in.Description,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repos.Costs.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func freightFor(in CostInput) decimal.Decimal {
	switch {
	case in.FreightAllocated != nil:
		return *in.FreightAllocated
	case in.ShipmentFreight != nil:
		return inventory.AllocateFreight(in.ShipmentFreight.Total, in.ShipmentFreight.Quantity, in.Quantity)
	case in.Kind == entity.CostKindFreight:
		// Un flete suelto se atribuye completo a la entrada.
		return in.Value
	}
	return decimal.Zero
}

// UpdateCost edita una entrada existente. Si es una compra, recalcula el ítem.
func (e *CostingEngine) UpdateCost(ctx context.Context, id string, upd CostUpdate) (*entity.CostEntry, error) {
	if upd.Value.LessThan(decimal.Zero) || upd.Quantity.LessThan(decimal.Zero) {
		return nil, domain.ErrInvalidQuantity
	}
	current, err := e.repos.Costs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, domain.ErrNotFound
	}
	locks := newHeldLocks(e.locker)
	if err := locks.acquire(ctx, costLockKey(current.ItemID)); err != nil {
		return nil, err
	}
	var entry *entity.CostEntry
	err = e.txRunner.Run(ctx, func(repos Repos) error {
		var err error
		entry, err = repos.Costs.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if entry == nil {
			return domain.ErrNotFound
		}
		entry.Value = upd.Value
		entry.Quantity = upd.Quantity
		entry.UnitCost = inventory.UnitCost(upd.Value, upd.Quantity)
		entry.Taxes = upd.Taxes
		entry.FreightAllocated = upd.FreightAllocated
		entry.BaseValue = upd.BaseValue
		if upd.CostDate != nil && !upd.CostDate.IsZero() {
			entry.CostDate = upd.CostDate.UTC()
		}
		entry.Description = upd.Description
		entry.UpdatedAt = time.Now().UTC()
		return repos.Costs.Update(ctx, entry)
	})
	// El recálculo toma el mismo candado; se libera antes.
	locks.release()
	if err != nil {
		return nil, err
	}
	if entry.Kind == entity.CostKindPurchase {
		if err := e.afterPurchase(ctx, entry.ItemID); err != nil {
			return entry, err
		}
	}
	return entry, nil
}

// afterPurchase recalcula y, si falla, marca el ítem como pendiente. Nunca revierte la entrada.
func (e *CostingEngine) afterPurchase(ctx context.Context, itemID string) error {
	if _, err := e.RecalculateItem(ctx, itemID); err != nil {
		e.markPending(ctx, itemID, err)
		return fmt.Errorf("ítem %s: %w: %w", itemID, domain.ErrRecalculationFailure, err)
	}
	return nil
}

func (e *CostingEngine) markPending(ctx context.Context, itemID string, cause error) {
	e.log.Error().Err(cause).Str("item_id", itemID).Msg("recálculo de costo promedio fallido, ítem marcado para reintento")
	if err := e.repos.Pending.Mark(ctx, itemID, cause.Error()); err != nil {
		e.log.Error().Err(err).Str("item_id", itemID).Msg("no se pudo marcar el ítem como pendiente")
	}
}

// RecalculateItem reprocesa todas las compras del ítem en orden cronológico y reescribe el
// promedio corrido de cada una. Devuelve el promedio final (cero sin compras).
func (e *CostingEngine) RecalculateItem(ctx context.Context, itemID string) (decimal.Decimal, error) {
	if itemID == "" {
		return decimal.Zero, domain.ErrInvalidInput
	}
	locks := newHeldLocks(e.locker)
	if err := locks.acquire(ctx, costLockKey(itemID)); err != nil {
		return decimal.Zero, err
	}
	defer locks.release()

	var final decimal.Decimal
	var updated int
	err := e.txRunner.Run(ctx, func(repos Repos) error {
		entries, err := repos.Costs.ListPurchasesByItem(ctx, itemID)
		if err != nil {
			return err
		}
		var changed []*entity.CostEntry
		changed, final = inventory.RunningAverages(entries)
		for _, c := range changed {
			if err := repos.Costs.UpdateAverageCost(ctx, c.ID, c.AverageCost); err != nil {
				return fmt.Errorf("actualizar promedio de %s: %w", c.ID, err)
			}
		}
		updated = len(changed)
		return repos.Pending.Clear(ctx, itemID)
	})
	if err != nil {
		return decimal.Zero, err
	}
	e.log.Debug().Str("item_id", itemID).Int("updated", updated).Str("average", final.String()).Msg("costo promedio recalculado")
	return final, nil
}

// RecalculateAll recalcula todos los ítems con entradas de costo. Un ítem que falla se marca
// pendiente y no detiene el barrido; los errores se devuelven unidos al final.
func (e *CostingEngine) RecalculateAll(ctx context.Context) (int, error) {
	ids, err := e.repos.Costs.ListItemIDs(ctx)
	if err != nil {
		return 0, err
	}
	return e.recalculateEach(ctx, ids)
}

// RetryPending reintenta los ítems marcados. Un éxito limpia la marca.
func (e *CostingEngine) RetryPending(ctx context.Context) (int, error) {
	ids, err := e.repos.Pending.List(ctx)
	if err != nil {
		return 0, err
	}
	return e.recalculateEach(ctx, ids)
}

func (e *CostingEngine) recalculateEach(ctx context.Context, ids []string) (int, error) {
	var errs []error
	done := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if _, err := e.RecalculateItem(ctx, id); err != nil {
			e.markPending(ctx, id, err)
			errs = append(errs, fmt.Errorf("ítem %s: %w: %w", id, domain.ErrRecalculationFailure, err))
			continue
		}
		done++
	}
	return done, errors.Join(errs...)
}

// WeightedAverageCost promedio ponderado (valor + impuestos) / cantidad del ítem.
// Se usa para costear consumos cuando el llamador no trae costo.
func (e *CostingEngine) WeightedAverageCost(ctx context.Context, itemID string) (decimal.Decimal, error) {
	entries, err := e.repos.Costs.ListByItem(ctx, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	return inventory.WeightedAverage(entries), nil
}

// TotalCost suma de los valores de todas las entradas del ítem.
func (e *CostingEngine) TotalCost(ctx context.Context, itemID string) (decimal.Decimal, error) {
	return e.sumByItem(ctx, itemID, func(c *entity.CostEntry) decimal.Decimal { return c.Value })
}

// TotalCostForLot suma de los valores de las entradas de un lote.
func (e *CostingEngine) TotalCostForLot(ctx context.Context, lotID string) (decimal.Decimal, error) {
	entries, err := e.repos.Costs.ListByLot(ctx, lotID)
	if err != nil {
		return decimal.Zero, err
	}
	return sumEntries(entries, func(c *entity.CostEntry) decimal.Decimal { return c.Value }), nil
}

// TotalTaxes suma de impuestos de todas las entradas del ítem.
func (e *CostingEngine) TotalTaxes(ctx context.Context, itemID string) (decimal.Decimal, error) {
	return e.sumByItem(ctx, itemID, (*entity.CostEntry).TaxTotal)
}

// TotalCostWithFreight suma de valor + impuestos + flete prorrateado.
func (e *CostingEngine) TotalCostWithFreight(ctx context.Context, itemID string) (decimal.Decimal, error) {
	return e.sumByItem(ctx, itemID, (*entity.CostEntry).TotalWithFreight)
}

// TotalFreightAllocated suma del flete prorrateado del ítem.
func (e *CostingEngine) TotalFreightAllocated(ctx context.Context, itemID string) (decimal.Decimal, error) {
	return e.sumByItem(ctx, itemID, func(c *entity.CostEntry) decimal.Decimal { return c.FreightAllocated })
}

func (e *CostingEngine) sumByItem(ctx context.Context, itemID string, f func(*entity.CostEntry) decimal.Decimal) (decimal.Decimal, error) {
	entries, err := e.repos.Costs.ListByItem(ctx, itemID)
	if err != nil {
		return decimal.Zero, err
	}
	return sumEntries(entries, f), nil
}

func sumEntries(entries []*entity.CostEntry, f func(*entity.CostEntry) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, c := range entries {
		total = total.Add(f(c))
	}
	return total
}

// GetCost obtiene una entrada por ID.
func (e *CostingEngine) GetCost(ctx context.Context, id string) (*entity.CostEntry, error) {
	entry, err := e.repos.Costs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, domain.ErrNotFound
	}
	return entry, nil
}

// ListByItem entradas del ítem en orden cronológico.
func (e *CostingEngine) ListByItem(ctx context.Context, itemID string) ([]*entity.CostEntry, error) {
	return e.repos.Costs.ListByItem(ctx, itemID)
}

// ListByLot entradas asociadas a un lote.
func (e *CostingEngine) ListByLot(ctx context.Context, lotID string) ([]*entity.CostEntry, error) {
	return e.repos.Costs.ListByLot(ctx, lotID)
}

// ListByPeriod entradas del ítem con fecha de costo en [from, to].
func (e *CostingEngine) ListByPeriod(ctx context.Context, itemID string, from, to time.Time) ([]*entity.CostEntry, error) {
	if to.Before(from) {
		return nil, domain.ErrInvalidInput
	}
	return e.repos.Costs.ListByPeriod(ctx, itemID, from, to)
}

// ListPending ítems con recálculo pendiente.
func (e *CostingEngine) ListPending(ctx context.Context) ([]string, error) {
	return e.repos.Pending.List(ctx)
}

// TaxPercentage porcentaje de impuestos de la entrada sobre su valor base.
func TaxPercentage(entry *entity.CostEntry) decimal.Decimal {
	return inventory.TaxPercentage(entry.TaxTotal(), entry.BaseValue)
}
