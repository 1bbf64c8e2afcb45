package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
)

var _ inventory.TxRunner = (*Store)(nil)

// Store almacenamiento en proceso con las mismas garantías transaccionales que el adaptador
// PostgreSQL: dentro de Run las escrituras quedan en un overlay y solo se publican en el Commit.
// Todo lo que devuelve es una copia.
type Store struct {
	mu        sync.RWMutex
	items     map[string]*entity.Item
	locations map[string]*entity.Location
	lots      map[string]*entity.Lot
	balances  map[entity.BalanceKey]*entity.Balance
	journal   []*entity.JournalEntry
	movements []*entity.Movement
	costs     map[string]*entity.CostEntry
	pending   map[string]*pendingMark
	seq       int64
}

type pendingMark struct {
	reason   string
	attempts int
	seq      int64
}

// overlay escrituras pendientes de una transacción. Un pendingMark nil significa "borrado".
type overlay struct {
	items     map[string]*entity.Item
	locations map[string]*entity.Location
	lots      map[string]*entity.Lot
	newLots   map[string]bool
	balances  map[entity.BalanceKey]*entity.Balance
	journal   []*entity.JournalEntry
	movements []*entity.Movement
	costs     map[string]*entity.CostEntry
	pending   map[string]*pendingMark
}

// New construye un Store vacío.
func New() *Store {
	return &Store{
		items:     make(map[string]*entity.Item),
		locations: make(map[string]*entity.Location),
		lots:      make(map[string]*entity.Lot),
		balances:  make(map[entity.BalanceKey]*entity.Balance),
		costs:     make(map[string]*entity.CostEntry),
		pending:   make(map[string]*pendingMark),
	}
}

func newOverlay() *overlay {
	return &overlay{
		items:     make(map[string]*entity.Item),
		locations: make(map[string]*entity.Location),
		lots:      make(map[string]*entity.Lot),
		newLots:   make(map[string]bool),
		balances:  make(map[entity.BalanceKey]*entity.Balance),
		costs:     make(map[string]*entity.CostEntry),
		pending:   make(map[string]*pendingMark),
	}
}

// Run ejecuta fn con repositorios atados a un overlay nuevo. Si fn devuelve error el overlay se descarta.
func (s *Store) Run(ctx context.Context, fn func(repos inventory.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ov := newOverlay()
	if err := fn(s.reposFor(ov)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(ov)
}

// Repos repositorios fuera de transacción: cada escritura se confirma sola.
func (s *Store) Repos() inventory.Repos {
	return s.reposFor(nil)
}

func (s *Store) reposFor(ov *overlay) inventory.Repos {
	return inventory.Repos{
		Items:     &itemRepo{s: s, ov: ov},
		Locations: &locationRepo{s: s, ov: ov},
		Lots:      &lotRepo{s: s, ov: ov},
		Balances:  &balanceRepo{s: s, ov: ov},
		Journal:   &journalRepo{s: s, ov: ov},
		Movements: &movementRepo{s: s, ov: ov},
		Costs:     &costRepo{s: s, ov: ov},
		Pending:   &pendingRepo{s: s, ov: ov},
	}
}

// stage escribe en el overlay de la tx o, sin tx, en uno temporal que se confirma en el acto.
func (s *Store) stage(ov *overlay, fn func(o *overlay)) error {
	if ov != nil {
		fn(ov)
		return nil
	}
	tmp := newOverlay()
	fn(tmp)
	return s.commit(tmp)
}

// commit publica el overlay de forma atómica. Revalida la unicidad de los números de lote
// nuevos contra lo confirmado por otras transacciones.
func (s *Store) commit(ov *overlay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range ov.newLots {
		if _, exists := s.lots[id]; exists {
			return fmt.Errorf("lote %s: %w", id, domain.ErrDuplicateLot)
		}
	}
	numbers := make(map[string]string, len(ov.lots))
	for id, l := range ov.lots {
		if other, ok := numbers[l.LotNumber]; ok && other != id {
			return domain.ErrDuplicateLot
		}
		numbers[l.LotNumber] = id
	}
	for _, l := range s.lots {
		if _, staged := ov.lots[l.ID]; staged {
			continue
		}
		if id, ok := numbers[l.LotNumber]; ok && id != l.ID {
			return domain.ErrDuplicateLot
		}
	}

	for id, it := range ov.items {
		s.items[id] = it
	}
	for id, loc := range ov.locations {
		s.locations[id] = loc
	}
	for id, l := range ov.lots {
		s.lots[id] = l
	}
	for k, b := range ov.balances {
		s.balances[k] = b
	}
	s.journal = append(s.journal, ov.journal...)
	s.movements = append(s.movements, ov.movements...)
	for id, c := range ov.costs {
		s.costs[id] = c
	}
	for itemID, m := range ov.pending {
		if m == nil {
			delete(s.pending, itemID)
			continue
		}
		if prev, ok := s.pending[itemID]; ok {
			m.attempts += prev.attempts
		}
		s.seq++
		m.seq = s.seq
		s.pending[itemID] = m
	}
	return nil
}
