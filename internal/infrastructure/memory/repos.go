package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	domaininv "github.com/jhoicas/inventario-ledger/internal/domain/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
)

var (
	_ repository.ItemRepository          = (*itemRepo)(nil)
	_ repository.LocationRepository      = (*locationRepo)(nil)
	_ repository.LotRepository           = (*lotRepo)(nil)
	_ repository.BalanceRepository       = (*balanceRepo)(nil)
	_ repository.JournalRepository       = (*journalRepo)(nil)
	_ repository.MovementRepository      = (*movementRepo)(nil)
	_ repository.CostEntryRepository     = (*costRepo)(nil)
	_ repository.RecalcPendingRepository = (*pendingRepo)(nil)
)

func copyItem(it *entity.Item) *entity.Item {
	c := *it
	return &c
}

func copyLocation(l *entity.Location) *entity.Location {
	c := *l
	return &c
}

func copyLot(l *entity.Lot) *entity.Lot {
	c := *l
	return &c
}

func copyBalance(b *entity.Balance) *entity.Balance {
	c := *b
	return &c
}

func copyJournal(e *entity.JournalEntry) *entity.JournalEntry {
	c := *e
	return &c
}

func copyCost(e *entity.CostEntry) *entity.CostEntry {
	c := *e
	return &c
}

func copyMovement(m *entity.Movement) *entity.Movement {
	c := *m
	if m.Allocations != nil {
		c.Allocations = append([]entity.LotAllocation(nil), m.Allocations...)
	}
	return &c
}

func page[T any](list []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(list) {
		return nil
	}
	list = list[offset:]
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}

// ── Ítems y ubicaciones ───────────────────────────────────────────────────────

type itemRepo struct {
	s  *Store
	ov *overlay
}

func (r *itemRepo) Create(ctx context.Context, item *entity.Item) error {
	existing, _ := r.GetByID(ctx, item.ID)
	if existing != nil {
		return fmt.Errorf("ítem %s ya existe: %w", item.ID, domain.ErrInvalidInput)
	}
	c := copyItem(item)
	return r.s.stage(r.ov, func(o *overlay) { o.items[c.ID] = c })
}

func (r *itemRepo) GetByID(_ context.Context, id string) (*entity.Item, error) {
	if r.ov != nil {
		if it, ok := r.ov.items[id]; ok {
			return copyItem(it), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if it, ok := r.s.items[id]; ok {
		return copyItem(it), nil
	}
	return nil, nil
}

type locationRepo struct {
	s  *Store
	ov *overlay
}

func (r *locationRepo) Create(ctx context.Context, loc *entity.Location) error {
	existing, _ := r.GetByID(ctx, loc.ID)
	if existing != nil {
		return fmt.Errorf("ubicación %s ya existe: %w", loc.ID, domain.ErrInvalidInput)
	}
	c := copyLocation(loc)
	return r.s.stage(r.ov, func(o *overlay) { o.locations[c.ID] = c })
}

func (r *locationRepo) GetByID(_ context.Context, id string) (*entity.Location, error) {
	if r.ov != nil {
		if l, ok := r.ov.locations[id]; ok {
			return copyLocation(l), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if l, ok := r.s.locations[id]; ok {
		return copyLocation(l), nil
	}
	return nil, nil
}

// ── Lotes ─────────────────────────────────────────────────────────────────────

type lotRepo struct {
	s  *Store
	ov *overlay
}

func (r *lotRepo) get(id string) *entity.Lot {
	if r.ov != nil {
		if l, ok := r.ov.lots[id]; ok {
			return copyLot(l)
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if l, ok := r.s.lots[id]; ok {
		return copyLot(l)
	}
	return nil
}

func (r *lotRepo) all() []*entity.Lot {
	r.s.mu.RLock()
	out := make([]*entity.Lot, 0, len(r.s.lots))
	for id, l := range r.s.lots {
		if r.ov != nil {
			if _, staged := r.ov.lots[id]; staged {
				continue
			}
		}
		out = append(out, copyLot(l))
	}
	r.s.mu.RUnlock()
	if r.ov != nil {
		for _, l := range r.ov.lots {
			out = append(out, copyLot(l))
		}
	}
	return out
}

func (r *lotRepo) Create(ctx context.Context, lot *entity.Lot) error {
	if r.get(lot.ID) != nil {
		return fmt.Errorf("lote %s: %w", lot.ID, domain.ErrDuplicateLot)
	}
	other, _ := r.GetByNumber(ctx, lot.LotNumber)
	if other != nil {
		return domain.ErrDuplicateLot
	}
	c := copyLot(lot)
	return r.s.stage(r.ov, func(o *overlay) {
		o.lots[c.ID] = c
		o.newLots[c.ID] = true
	})
}

func (r *lotRepo) GetByID(_ context.Context, id string) (*entity.Lot, error) {
	return r.get(id), nil
}

func (r *lotRepo) GetForUpdate(_ context.Context, id string) (*entity.Lot, error) {
	return r.get(id), nil
}

func (r *lotRepo) GetByNumber(_ context.Context, lotNumber string) (*entity.Lot, error) {
	for _, l := range r.all() {
		if l.LotNumber == lotNumber {
			return l, nil
		}
	}
	return nil, nil
}

func (r *lotRepo) Update(ctx context.Context, lot *entity.Lot) error {
	if r.get(lot.ID) == nil {
		return domain.ErrNotFound
	}
	other, _ := r.GetByNumber(ctx, lot.LotNumber)
	if other != nil && other.ID != lot.ID {
		return domain.ErrDuplicateLot
	}
	c := copyLot(lot)
	return r.s.stage(r.ov, func(o *overlay) { o.lots[c.ID] = c })
}

func (r *lotRepo) filter(keep func(l *entity.Lot) bool) []*entity.Lot {
	var out []*entity.Lot
	for _, l := range r.all() {
		if keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func (r *lotRepo) ListByItem(_ context.Context, itemID string) ([]*entity.Lot, error) {
	out := r.filter(func(l *entity.Lot) bool { return l.ItemID == itemID })
	domaininv.SortFIFO(out)
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (r *lotRepo) ListAvailableFIFO(_ context.Context, itemID string) ([]*entity.Lot, error) {
	out := r.filter(func(l *entity.Lot) bool {
		return l.ItemID == itemID && l.IsActive() && l.AvailableQuantity.GreaterThan(decimal.Zero)
	})
	domaininv.SortFIFO(out)
	return out, nil
}

func sortByExpiration(lots []*entity.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		a, b := lots[i], lots[j]
		if !a.ExpirationDate.Equal(*b.ExpirationDate) {
			return a.ExpirationDate.Before(*b.ExpirationDate)
		}
		return a.EntryDate.Before(b.EntryDate)
	})
}

func (r *lotRepo) ListExpired(_ context.Context, asOf time.Time) ([]*entity.Lot, error) {
	out := r.filter(func(l *entity.Lot) bool {
		return l.IsActive() && l.ExpirationDate != nil && l.ExpirationDate.Before(asOf)
	})
	sortByExpiration(out)
	return out, nil
}

func (r *lotRepo) ListExpiringBetween(_ context.Context, start, end time.Time) ([]*entity.Lot, error) {
	out := r.filter(func(l *entity.Lot) bool {
		return l.IsActive() && l.ExpirationDate != nil &&
			!l.ExpirationDate.Before(start) && !l.ExpirationDate.After(end)
	})
	sortByExpiration(out)
	return out, nil
}

func (r *lotRepo) SumAvailable(_ context.Context, itemID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range r.filter(func(l *entity.Lot) bool { return l.ItemID == itemID && l.IsActive() }) {
		total = total.Add(l.AvailableQuantity)
	}
	return total, nil
}

func (r *lotRepo) SumTotal(_ context.Context, itemID string) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, l := range r.filter(func(l *entity.Lot) bool { return l.ItemID == itemID && l.IsActive() }) {
		total = total.Add(l.TotalQuantity)
	}
	return total, nil
}

// ── Saldos ────────────────────────────────────────────────────────────────────

type balanceRepo struct {
	s  *Store
	ov *overlay
}

func (r *balanceRepo) Get(_ context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	if r.ov != nil {
		if b, ok := r.ov.balances[key]; ok {
			return copyBalance(b), nil
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if b, ok := r.s.balances[key]; ok {
		return copyBalance(b), nil
	}
	return &entity.Balance{ItemID: key.ItemID, LocationID: key.LocationID, LotID: key.LotID, Quantity: decimal.Zero}, nil
}

func (r *balanceRepo) GetForUpdate(ctx context.Context, key entity.BalanceKey) (*entity.Balance, error) {
	return r.Get(ctx, key)
}

func (r *balanceRepo) Upsert(_ context.Context, balance *entity.Balance) error {
	c := copyBalance(balance)
	return r.s.stage(r.ov, func(o *overlay) { o.balances[c.Key()] = c })
}

func (r *balanceRepo) all() []*entity.Balance {
	r.s.mu.RLock()
	out := make([]*entity.Balance, 0, len(r.s.balances))
	for k, b := range r.s.balances {
		if r.ov != nil {
			if _, staged := r.ov.balances[k]; staged {
				continue
			}
		}
		out = append(out, copyBalance(b))
	}
	r.s.mu.RUnlock()
	if r.ov != nil {
		for _, b := range r.ov.balances {
			out = append(out, copyBalance(b))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ItemID != b.ItemID {
			return a.ItemID < b.ItemID
		}
		if a.LocationID != b.LocationID {
			return a.LocationID < b.LocationID
		}
		return a.LotID < b.LotID
	})
	return out
}

func (r *balanceRepo) ListByItem(_ context.Context, itemID string) ([]*entity.Balance, error) {
	var out []*entity.Balance
	for _, b := range r.all() {
		if b.ItemID == itemID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *balanceRepo) ListAll(_ context.Context) ([]*entity.Balance, error) {
	return r.all(), nil
}

// ── Diario ────────────────────────────────────────────────────────────────────

type journalRepo struct {
	s  *Store
	ov *overlay
}

func (r *journalRepo) Append(_ context.Context, entry *entity.JournalEntry) error {
	c := copyJournal(entry)
	return r.s.stage(r.ov, func(o *overlay) { o.journal = append(o.journal, c) })
}

// entries diario en orden de inserción (confirmado, luego lo de la tx).
func (r *journalRepo) entries(keep func(e *entity.JournalEntry) bool) []*entity.JournalEntry {
	var out []*entity.JournalEntry
	r.s.mu.RLock()
	for _, e := range r.s.journal {
		if keep(e) {
			out = append(out, copyJournal(e))
		}
	}
	r.s.mu.RUnlock()
	if r.ov != nil {
		for _, e := range r.ov.journal {
			if keep(e) {
				out = append(out, copyJournal(e))
			}
		}
	}
	return out
}

func (r *journalRepo) ListByKey(_ context.Context, key entity.BalanceKey) ([]*entity.JournalEntry, error) {
	return r.entries(func(e *entity.JournalEntry) bool { return e.Key() == key }), nil
}

func (r *journalRepo) List(_ context.Context, f repository.JournalFilter) ([]*entity.JournalEntry, error) {
	out := r.entries(func(e *entity.JournalEntry) bool {
		switch {
		case f.ItemID != "" && e.ItemID != f.ItemID:
			return false
		case f.LocationID != "" && e.LocationID != f.LocationID:
			return false
		case f.LotID != nil && e.LotID != *f.LotID:
			return false
		case f.From != nil && e.CreatedAt.Before(*f.From):
			return false
		case f.To != nil && e.CreatedAt.After(*f.To):
			return false
		}
		return true
	})
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return page(out, f.Limit, f.Offset), nil
}

func (r *journalRepo) ListByMovement(_ context.Context, movementID string) ([]*entity.JournalEntry, error) {
	return r.entries(func(e *entity.JournalEntry) bool { return e.MovementID == movementID }), nil
}

// ── Movimientos ───────────────────────────────────────────────────────────────

type movementRepo struct {
	s  *Store
	ov *overlay
}

func (r *movementRepo) Create(_ context.Context, m *entity.Movement) error {
	c := copyMovement(m)
	return r.s.stage(r.ov, func(o *overlay) { o.movements = append(o.movements, c) })
}

func (r *movementRepo) all() []*entity.Movement {
	r.s.mu.RLock()
	out := make([]*entity.Movement, 0, len(r.s.movements))
	for _, m := range r.s.movements {
		out = append(out, copyMovement(m))
	}
	r.s.mu.RUnlock()
	if r.ov != nil {
		for _, m := range r.ov.movements {
			out = append(out, copyMovement(m))
		}
	}
	return out
}

func (r *movementRepo) GetByID(_ context.Context, id string) (*entity.Movement, error) {
	for _, m := range r.all() {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, nil
}

func (r *movementRepo) List(_ context.Context, f repository.MovementFilter) ([]*entity.Movement, error) {
	var out []*entity.Movement
	for _, m := range r.all() {
		switch {
		case f.ItemID != "" && m.ItemID != f.ItemID:
			continue
		case f.LocationID != "" && m.LocationID != f.LocationID:
			continue
		case f.Reference != "" && m.Reference != f.Reference:
			continue
		case f.From != nil && m.Date.Before(*f.From):
			continue
		case f.To != nil && m.Date.After(*f.To):
			continue
		}
		out = append(out, m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), nil
}

// ── Costos ────────────────────────────────────────────────────────────────────

type costRepo struct {
	s  *Store
	ov *overlay
}

func (r *costRepo) get(id string) *entity.CostEntry {
	if r.ov != nil {
		if c, ok := r.ov.costs[id]; ok {
			return copyCost(c)
		}
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if c, ok := r.s.costs[id]; ok {
		return copyCost(c)
	}
	return nil
}

func (r *costRepo) all(keep func(c *entity.CostEntry) bool) []*entity.CostEntry {
	var out []*entity.CostEntry
	r.s.mu.RLock()
	for id, c := range r.s.costs {
		if r.ov != nil {
			if _, staged := r.ov.costs[id]; staged {
				continue
			}
		}
		if keep(c) {
			out = append(out, copyCost(c))
		}
	}
	r.s.mu.RUnlock()
	if r.ov != nil {
		for _, c := range r.ov.costs {
			if keep(c) {
				out = append(out, copyCost(c))
			}
		}
	}
	domaininv.SortChronologically(out)
	return out
}

func (r *costRepo) Create(_ context.Context, entry *entity.CostEntry) error {
	if r.get(entry.ID) != nil {
		return fmt.Errorf("entrada de costo %s ya existe: %w", entry.ID, domain.ErrInvalidInput)
	}
	c := copyCost(entry)
	return r.s.stage(r.ov, func(o *overlay) { o.costs[c.ID] = c })
}

func (r *costRepo) GetByID(_ context.Context, id string) (*entity.CostEntry, error) {
	return r.get(id), nil
}

func (r *costRepo) Update(_ context.Context, entry *entity.CostEntry) error {
	if r.get(entry.ID) == nil {
		return domain.ErrNotFound
	}
	c := copyCost(entry)
	return r.s.stage(r.ov, func(o *overlay) { o.costs[c.ID] = c })
}

func (r *costRepo) UpdateAverageCost(_ context.Context, id string, averageCost decimal.Decimal) error {
	c := r.get(id)
	if c == nil {
		return domain.ErrNotFound
	}
	c.AverageCost = averageCost
	c.UpdatedAt = time.Now().UTC()
	return r.s.stage(r.ov, func(o *overlay) { o.costs[c.ID] = c })
}

func (r *costRepo) ListByItem(_ context.Context, itemID string) ([]*entity.CostEntry, error) {
	return r.all(func(c *entity.CostEntry) bool { return c.ItemID == itemID }), nil
}

func (r *costRepo) ListPurchasesByItem(_ context.Context, itemID string) ([]*entity.CostEntry, error) {
	return r.all(func(c *entity.CostEntry) bool {
		return c.ItemID == itemID && c.Kind == entity.CostKindPurchase
	}), nil
}

func (r *costRepo) ListByLot(_ context.Context, lotID string) ([]*entity.CostEntry, error) {
	return r.all(func(c *entity.CostEntry) bool { return c.LotID != "" && c.LotID == lotID }), nil
}

func (r *costRepo) ListByPeriod(_ context.Context, itemID string, from, to time.Time) ([]*entity.CostEntry, error) {
	return r.all(func(c *entity.CostEntry) bool {
		return c.ItemID == itemID && !c.CostDate.Before(from) && !c.CostDate.After(to)
	}), nil
}

func (r *costRepo) ListItemIDs(_ context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, c := range r.all(func(*entity.CostEntry) bool { return true }) {
		if _, ok := seen[c.ItemID]; ok {
			continue
		}
		seen[c.ItemID] = struct{}{}
		ids = append(ids, c.ItemID)
	}
	sort.Strings(ids)
	return ids, nil
}

// ── Recálculos pendientes ─────────────────────────────────────────────────────

type pendingRepo struct {
	s  *Store
	ov *overlay
}

func (r *pendingRepo) Mark(_ context.Context, itemID, reason string) error {
	return r.s.stage(r.ov, func(o *overlay) {
		attempts := 1
		if prev := o.pending[itemID]; prev != nil {
			attempts += prev.attempts
		}
		o.pending[itemID] = &pendingMark{reason: reason, attempts: attempts}
	})
}

func (r *pendingRepo) Clear(_ context.Context, itemID string) error {
	return r.s.stage(r.ov, func(o *overlay) { o.pending[itemID] = nil })
}

func (r *pendingRepo) List(_ context.Context) ([]string, error) {
	type row struct {
		itemID string
		seq    int64
	}
	var rows []row
	r.s.mu.RLock()
	for id, m := range r.s.pending {
		if r.ov != nil {
			if _, staged := r.ov.pending[id]; staged {
				continue
			}
		}
		rows = append(rows, row{itemID: id, seq: m.seq})
	}
	r.s.mu.RUnlock()
	if r.ov != nil {
		for id, m := range r.ov.pending {
			if m != nil {
				rows = append(rows, row{itemID: id, seq: 1 << 62})
			}
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].seq != rows[j].seq {
			return rows[i].seq < rows[j].seq
		}
		return rows[i].itemID < rows[j].itemID
	})
	ids := make([]string, 0, len(rows))
	for _, rw := range rows {
		ids = append(ids, rw.itemID)
	}
	return ids, nil
}

// Attempts cantidad de intentos fallidos registrados para el ítem (0 si no está pendiente).
func (s *Store) Attempts(itemID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m, ok := s.pending[itemID]; ok {
		return m.attempts
	}
	return 0
}
