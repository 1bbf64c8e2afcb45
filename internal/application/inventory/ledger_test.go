package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/repository"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

func apply(kind entity.MovementKind, qty string) inventory.ApplyInput {
	return inventory.ApplyInput{ItemID: plainItem, LocationID: mainWH, Quantity: dec(qty), Kind: kind}
}

func TestApply_SaldoYDiarioCoinciden(t *testing.T) {
	f := newFixture(t)

	steps := []inventory.ApplyInput{
		apply(entity.MovementKindEntry, "10"),
		apply(entity.MovementKindOut, "3"),
		apply(entity.MovementKindAdjustmentIn, "2.5"),
		apply(entity.MovementKindDevolutionOut, "1"),
		apply(entity.MovementKindDevolutionIn, "0.5"),
		apply(entity.MovementKindAdjustmentOut, "4"),
	}
	for _, s := range steps {
		_, err := f.svc.Ledger.Apply(f.ctx, s)
		require.NoError(t, err)
	}

	assert.True(t, f.balance(t, plainItem, mainWH, "").Equal(dec("5")))

	report, err := f.svc.Ledger.VerifyConsistency(f.ctx, plainItem, mainWH, "")
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Equal(t, len(steps), report.Entries)
	assert.True(t, report.Replayed.Equal(dec("5")))

	journal, err := f.svc.Ledger.ListJournal(f.ctx, repository.JournalFilter{ItemID: plainItem})
	require.NoError(t, err)
	require.Len(t, journal, len(steps))
	// Más recientes primero.
	assert.True(t, journal[0].NewQuantity.Equal(dec("5")))
	for i := 0; i+1 < len(journal); i++ {
		assert.True(t, journal[i].PreviousQuantity.Equal(journal[i+1].NewQuantity), "entrada %d encadena con la anterior", i)
	}
}

func TestApply_StockInsuficienteNoDejaRastro(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ledger.Apply(f.ctx, apply(entity.MovementKindEntry, "2"))
	require.NoError(t, err)

	_, err = f.svc.Ledger.Apply(f.ctx, apply(entity.MovementKindOut, "2.0001"))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	assert.True(t, f.balance(t, plainItem, mainWH, "").Equal(dec("2")))
	journal, err := f.svc.Ledger.ListJournal(f.ctx, repository.JournalFilter{ItemID: plainItem})
	require.NoError(t, err)
	assert.Len(t, journal, 1)

	// Llegar exactamente a cero es válido.
	b, err := f.svc.Ledger.Apply(f.ctx, apply(entity.MovementKindOut, "2"))
	require.NoError(t, err)
	assert.True(t, b.Quantity.IsZero())
}

func TestApply_EntradaInvalida(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Ledger.Apply(f.ctx, apply("TRANSFER", "1"))
	assert.ErrorIs(t, err, domain.ErrInvalidMovementKind)

	_, err = f.svc.Ledger.Apply(f.ctx, apply(entity.MovementKindEntry, "0"))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Ledger.Apply(f.ctx, apply(entity.MovementKindEntry, "-1"))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Ledger.Apply(f.ctx, inventory.ApplyInput{ItemID: plainItem, Quantity: dec("1"), Kind: entity.MovementKindEntry})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestGetBalance_LlaveSinMovimientosEsCero(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.balance(t, plainItem, otherWH, "").IsZero())

	report, err := f.svc.Ledger.VerifyConsistency(f.ctx, plainItem, otherWH, "")
	require.NoError(t, err)
	assert.True(t, report.Consistent)
	assert.Zero(t, report.Entries)
}

func TestListJournal_Filtros(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ledger.Apply(f.ctx, apply(entity.MovementKindEntry, "1"))
	require.NoError(t, err)
	other := apply(entity.MovementKindEntry, "1")
	other.LocationID = otherWH
	_, err = f.svc.Ledger.Apply(f.ctx, other)
	require.NoError(t, err)

	byLocation, err := f.svc.Ledger.ListJournal(f.ctx, repository.JournalFilter{ItemID: plainItem, LocationID: otherWH})
	require.NoError(t, err)
	require.Len(t, byLocation, 1)
	assert.Equal(t, otherWH, byLocation[0].LocationID)

	future := time.Now().Add(time.Hour)
	none, err := f.svc.Ledger.ListJournal(f.ctx, repository.JournalFilter{ItemID: plainItem, From: &future})
	require.NoError(t, err)
	assert.Empty(t, none)

	paged, err := f.svc.Ledger.ListJournal(f.ctx, repository.JournalFilter{ItemID: plainItem, Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, paged, 1)

	balances, err := f.svc.Ledger.ListBalances(f.ctx, plainItem)
	require.NoError(t, err)
	assert.Len(t, balances, 2)
}

func TestReconciler_DetectaDivergencia(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Ledger.Apply(f.ctx, apply(entity.MovementKindEntry, "10"))
	require.NoError(t, err)
	other := apply(entity.MovementKindEntry, "4")
	other.LocationID = otherWH
	_, err = f.svc.Ledger.Apply(f.ctx, other)
	require.NoError(t, err)

	reconciler := inventory.NewReconciler(f.repos, f.svc.Ledger, 0, logger.NewNop())
	drift, err := reconciler.Sweep(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, drift)

	// Escritura directa que se salta el diario.
	require.NoError(t, f.repos.Balances.Upsert(f.ctx, &entity.Balance{
		ItemID: plainItem, LocationID: otherWH, Quantity: dec("7"), UpdatedAt: time.Now(),
	}))

	drift, err = reconciler.Sweep(f.ctx)
	require.NoError(t, err)
	require.Len(t, drift, 1)
	assert.Equal(t, otherWH, drift[0].Key.LocationID)
	assert.True(t, drift[0].Stored.Equal(dec("7")))
	assert.True(t, drift[0].Replayed.Equal(dec("4")))
	assert.False(t, drift[0].Consistent)
}
