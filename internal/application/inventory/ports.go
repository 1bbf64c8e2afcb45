package inventory

import (
	"context"

	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

// Repos agrupa los repositorios del ledger. Fuera de una transacción están atados al pool;
// dentro de TxRunner.Run todos comparten la misma transacción.
type Repos struct {
	Items     repository.ItemRepository
	Locations repository.LocationRepository
	Lots      repository.LotRepository
	Balances  repository.BalanceRepository
	Journal   repository.JournalRepository
	Movements repository.MovementRepository
	Costs     repository.CostEntryRepository
	Pending   repository.RecalcPendingRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error se hace Rollback y nada de lo escrito queda visible.
type TxRunner interface {
	Run(ctx context.Context, fn func(repos Repos) error) error
}

// KeyLocker serializa el trabajo por llave (saldo, lotes de un ítem, costos de un ítem).
// Lock adquiere todas las llaves en orden estable y devuelve la función que las libera.
type KeyLocker interface {
	Lock(ctx context.Context, keys ...string) (unlock func(), err error)
}

// Nombres de llaves de candado.
func lotsLockKey(itemID string) string { return "lots:" + itemID }
func costLockKey(itemID string) string { return "cost:" + itemID }

// heldLocks acumula candados tomados en varias fases y los libera en orden inverso,
// siempre después del Commit.
type heldLocks struct {
	locker  KeyLocker
	unlocks []func()
}

func newHeldLocks(locker KeyLocker) *heldLocks {
	return &heldLocks{locker: locker}
}

func (h *heldLocks) acquire(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	unlock, err := h.locker.Lock(ctx, keys...)
	if err != nil {
		return err
	}
	h.unlocks = append(h.unlocks, unlock)
	return nil
}

func (h *heldLocks) release() {
	for i := len(h.unlocks) - 1; i >= 0; i-- {
		h.unlocks[i]()
	}
	h.unlocks = nil
}
