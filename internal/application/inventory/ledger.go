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

// Ledger mantiene el saldo por (ítem, ubicación, lote) y el diario inmutable de cada cambio.
// Es la autoridad final sobre la suficiencia de stock: revalida aunque el llamador ya lo haya hecho.
type Ledger struct {
	repos    Repos
	txRunner TxRunner
	locker   KeyLocker
	log      *logger.Logger
}

// NewLedger construye el ledger de saldos.
func NewLedger(repos Repos, txRunner TxRunner, locker KeyLocker, log *logger.Logger) *Ledger {
	return &Ledger{repos: repos, txRunner: txRunner, locker: locker, log: log.Component("ledger")}
}

// ApplyInput cambio de saldo. Quantity es la magnitud; el signo lo da Kind.
type ApplyInput struct {
	ItemID     string
	LocationID string
	LotID      string
	Quantity   decimal.Decimal
	Kind       entity.MovementKind
	MovementID string
	Note       string
}

func (in ApplyInput) key() entity.BalanceKey {
	return entity.BalanceKey{ItemID: in.ItemID, LocationID: in.LocationID, LotID: in.LotID}
}

// ConsistencyReport resultado de reproducir el diario de una llave.
type ConsistencyReport struct {
	Key        entity.BalanceKey
	Stored     decimal.Decimal
	Replayed   decimal.Decimal
	Entries    int
	Consistent bool
}

// Apply bloquea la llave, lee o crea el saldo, aplica el delta con signo y agrega la entrada
// de diario en la misma transacción. Devuelve el saldo nuevo.
func (l *Ledger) Apply(ctx context.Context, in ApplyInput) (*entity.Balance, error) {
	if err := validateApply(in); err != nil {
		return nil, err
	}
	locks := newHeldLocks(l.locker)
	if err := locks.acquire(ctx, in.key().String()); err != nil {
		return nil, err
	}
	defer locks.release()

	var balance *entity.Balance
	err := l.txRunner.Run(ctx, func(repos Repos) error {
		var err error
		balance, _, err = applyTx(ctx, repos, in)
		return err
	})
	if err != nil {
		l.log.Warn().Err(err).Str("item_id", in.ItemID).Str("location_id", in.LocationID).
			Str("lot_id", in.LotID).Str("kind", string(in.Kind)).Msg("movimiento de saldo rechazado")
		return nil, err
	}
	return balance, nil
}

func validateApply(in ApplyInput) error {
	if in.ItemID == "" || in.LocationID == "" {
		return domain.ErrInvalidInput
	}
	if _, err := inventory.Sign(in.Kind); err != nil {
		return err
	}
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return domain.ErrInvalidQuantity
	}
	return nil
}

// applyTx hace el check-then-act sobre la fila bloqueada. El llamador ya tiene el candado de la llave.
func applyTx(ctx context.Context, repos Repos, in ApplyInput) (*entity.Balance, *entity.JournalEntry, error) {
	if err := validateApply(in); err != nil {
		return nil, nil, err
	}
	delta, err := inventory.SignedDelta(in.Kind, in.Quantity)
	if err != nil {
		return nil, nil, err
	}
	balance, err := repos.Balances.GetForUpdate(ctx, in.key())
	if err != nil {
		return nil, nil, err
	}
	previous := balance.Quantity
	next := previous.Add(delta)
	if next.LessThan(decimal.Zero) {
		return nil, nil, fmt.Errorf("saldo %s, solicitado %s: %w", previous, in.Quantity, domain.ErrInsufficientStock)
	}
	now := time.Now().UTC()
	balance.Quantity = next
	balance.UpdatedAt = now
	if err := repos.Balances.Upsert(ctx, balance); err != nil {
		return nil, nil, err
	}
	entry := &entity.JournalEntry{
		ID:               uuid.New().String(),
		ItemID:           in.ItemID,
		LocationID:       in.LocationID,
		LotID:            in.LotID,
		PreviousQuantity: previous,
		NewQuantity:      next,
		Quantity:         delta,
		Kind:             in.Kind,
		MovementID:       in.MovementID,
		Note:             in.Note,
		CreatedAt:        now,
	}
	if err := repos.Journal.Append(ctx, entry); err != nil {
		return nil, nil, err
	}
	return balance, entry, nil
}

// GetBalance saldo actual de la llave; cero si nunca se movió.
func (l *Ledger) GetBalance(ctx context.Context, itemID, locationID, lotID string) (decimal.Decimal, error) {
	b, err := l.repos.Balances.Get(ctx, entity.BalanceKey{ItemID: itemID, LocationID: locationID, LotID: lotID})
	if err != nil {
		return decimal.Zero, err
	}
	return b.Quantity, nil
}

// ListBalances todos los saldos de un ítem (todas las ubicaciones y lotes).
func (l *Ledger) ListBalances(ctx context.Context, itemID string) ([]*entity.Balance, error) {
	return l.repos.Balances.ListByItem(ctx, itemID)
}

// ListJournal diario por ítem/ubicación/lote/período.
func (l *Ledger) ListJournal(ctx context.Context, filter repository.JournalFilter) ([]*entity.JournalEntry, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return l.repos.Journal.List(ctx, filter)
}

// VerifyConsistency reproduce el diario completo de la llave y lo compara con el saldo guardado.
// No corrige nada: una divergencia se reporta para conciliación manual.
func (l *Ledger) VerifyConsistency(ctx context.Context, itemID, locationID, lotID string) (*ConsistencyReport, error) {
	key := entity.BalanceKey{ItemID: itemID, LocationID: locationID, LotID: lotID}
	// Con la llave bloqueada ningún Apply concurrente puede colarse entre las dos lecturas.
	locks := newHeldLocks(l.locker)
	if err := locks.acquire(ctx, key.String()); err != nil {
		return nil, err
	}
	defer locks.release()

	var report *ConsistencyReport
	err := l.txRunner.Run(ctx, func(repos Repos) error {
		balance, err := repos.Balances.Get(ctx, key)
		if err != nil {
			return err
		}
		entries, err := repos.Journal.ListByKey(ctx, key)
		if err != nil {
			return err
		}
		replayed, err := inventory.Replay(entries)
		if err != nil {
			return err
		}
		report = &ConsistencyReport{
			Key:        key,
			Stored:     balance.Quantity,
			Replayed:   replayed,
			Entries:    len(entries),
			Consistent: balance.Quantity.Equal(replayed),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !report.Consistent {
		l.log.Error().Str("item_id", itemID).Str("location_id", locationID).Str("lot_id", lotID).
			Str("stored", report.Stored.String()).Str("replayed", report.Replayed.String()).
			Msg("saldo diverge del diario")
	}
	return report, nil
}
