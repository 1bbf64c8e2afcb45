package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

const (
	plainItem   = "item-plain"
	trackedItem = "item-tracked"
	mainWH      = "wh-main"
	otherWH     = "wh-other"
)

var errInjected = errors.New("falla inyectada")

type fixture struct {
	ctx    context.Context
	store  *memory.Store
	repos  inventory.Repos
	locker *lock.Local
	svc    *inventory.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	repos := store.Repos()
	now := time.Now().UTC()

	require.NoError(t, repos.Items.Create(ctx, &entity.Item{ID: plainItem, SKU: "P-1", Name: "Tornillo", Status: entity.StatusActive, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repos.Items.Create(ctx, &entity.Item{ID: trackedItem, SKU: "T-1", Name: "Vacuna", LotTracked: true, Status: entity.StatusActive, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repos.Locations.Create(ctx, &entity.Location{ID: mainWH, Name: "Principal", Status: entity.StatusActive, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, repos.Locations.Create(ctx, &entity.Location{ID: otherWH, Name: "Sucursal", Status: entity.StatusActive, CreatedAt: now, UpdatedAt: now}))

	locker := lock.NewLocal()
	return &fixture{
		ctx:    ctx,
		store:  store,
		repos:  repos,
		locker: locker,
		svc:    inventory.NewService(repos, store, locker, mainWH, logger.NewNop()),
	}
}

// withTx arma un servicio cuyo TxRunner envuelve los repos de cada transacción.
func (f *fixture) withTx(wrap func(inventory.Repos) inventory.Repos) *inventory.Service {
	return inventory.NewService(f.repos, hookedTx{inner: f.store, wrap: wrap}, f.locker, mainWH, logger.NewNop())
}

func (f *fixture) balance(t *testing.T, itemID, locationID, lotID string) decimal.Decimal {
	t.Helper()
	q, err := f.svc.Ledger.GetBalance(f.ctx, itemID, locationID, lotID)
	require.NoError(t, err)
	return q
}

func (f *fixture) lot(t *testing.T, id string) *entity.Lot {
	t.Helper()
	l, err := f.svc.Lots.GetLot(f.ctx, id)
	require.NoError(t, err)
	return l
}

type hookedTx struct {
	inner inventory.TxRunner
	wrap  func(inventory.Repos) inventory.Repos
}

func (h hookedTx) Run(ctx context.Context, fn func(repos inventory.Repos) error) error {
	return h.inner.Run(ctx, func(repos inventory.Repos) error {
		return fn(h.wrap(repos))
	})
}

type failingBalances struct {
	repository.BalanceRepository
	location string
}

func (f failingBalances) Upsert(ctx context.Context, b *entity.Balance) error {
	if b.LocationID == f.location {
		return errInjected
	}
	return f.BalanceRepository.Upsert(ctx, b)
}

type failingAverages struct {
	repository.CostEntryRepository
}

func (failingAverages) UpdateAverageCost(context.Context, string, decimal.Decimal) error {
	return errInjected
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dayPtr(y int, m time.Month, d int) *time.Time {
	t := day(y, m, d)
	return &t
}
