package inventory_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/domain"
)

func TestCreateLot_NormalizaYRechazaDuplicados(t *testing.T) {
	f := newFixture(t)

	lot, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{
		ItemID: trackedItem, LotNumber: " l-001 ", TotalQuantity: dec("10"),
	})
	require.NoError(t, err)
	assert.Equal(t, "L-001", lot.LotNumber)
	assert.True(t, lot.AvailableQuantity.Equal(dec("10")))

	// El número es único en todo el sistema, no por ítem.
	_, err = f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{
		ItemID: plainItem, LotNumber: "L-001", TotalQuantity: dec("5"),
	})
	assert.ErrorIs(t, err, domain.ErrDuplicateLot)

	found, err := f.svc.Lots.GetByNumber(f.ctx, "l-001")
	require.NoError(t, err)
	assert.Equal(t, lot.ID, found.ID)
}

func TestCreateLot_EntradaInvalida(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{ItemID: trackedItem, LotNumber: "  ", TotalQuantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{ItemID: trackedItem, LotNumber: "L-1", TotalQuantity: dec("0")})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{ItemID: "no-existe", LotNumber: "L-1", TotalQuantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReduceIncreaseAvailable_RespetaLimites(t *testing.T) {
	f := newFixture(t)
	lot, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{ItemID: trackedItem, LotNumber: "L-1", TotalQuantity: dec("10")})
	require.NoError(t, err)

	got, err := f.svc.Lots.ReduceAvailable(f.ctx, lot.ID, dec("4"))
	require.NoError(t, err)
	assert.True(t, got.AvailableQuantity.Equal(dec("6")))

	_, err = f.svc.Lots.ReduceAvailable(f.ctx, lot.ID, dec("7"))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	_, err = f.svc.Lots.IncreaseAvailable(f.ctx, lot.ID, dec("5"))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity, "no puede superar el total")

	_, err = f.svc.Lots.ReduceAvailable(f.ctx, lot.ID, dec("0"))
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	got, err = f.svc.Lots.IncreaseAvailable(f.ctx, lot.ID, dec("4"))
	require.NoError(t, err)
	assert.True(t, got.AvailableQuantity.Equal(dec("10")))

	// Un rechazo no deja rastro en el lote.
	assert.True(t, f.lot(t, lot.ID).AvailableQuantity.Equal(dec("10")))
}

func TestSelectForConsumption_FIFO(t *testing.T) {
	f := newFixture(t)
	older, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{
		ItemID: trackedItem, LotNumber: "B", EntryDate: day(2024, 1, 1), TotalQuantity: dec("10"),
	})
	require.NoError(t, err)
	newer, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{
		ItemID: trackedItem, LotNumber: "A", EntryDate: day(2024, 2, 1), TotalQuantity: dec("10"),
	})
	require.NoError(t, err)

	plan, err := f.svc.Lots.SelectForConsumption(f.ctx, trackedItem, dec("15"))
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, older.ID, plan[0].LotID)
	assert.True(t, plan[0].Quantity.Equal(dec("10")))
	assert.Equal(t, newer.ID, plan[1].LotID)
	assert.True(t, plan[1].Quantity.Equal(dec("5")))

	// Solo lectura: nada se reservó.
	assert.True(t, f.lot(t, older.ID).AvailableQuantity.Equal(dec("10")))

	_, err = f.svc.Lots.SelectForConsumption(f.ctx, trackedItem, dec("21"))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestSelectForConsumption_IncluyeLotesVencidos(t *testing.T) {
	f := newFixture(t)
	expired, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{
		ItemID: trackedItem, LotNumber: "VENCIDO", EntryDate: day(2024, 1, 1), TotalQuantity: dec("4"),
		ExpirationDate: dayPtr(2024, 1, 15),
	})
	require.NoError(t, err)
	fresh, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{
		ItemID: trackedItem, LotNumber: "FRESCO", EntryDate: day(2024, 2, 1), TotalQuantity: dec("4"),
	})
	require.NoError(t, err)
	require.True(t, expired.IsExpired(time.Now()))

	plan, err := f.svc.Lots.SelectForConsumption(f.ctx, trackedItem, dec("6"))
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, expired.ID, plan[0].LotID)
	assert.True(t, plan[0].Quantity.Equal(dec("4")))
	assert.Equal(t, fresh.ID, plan[1].LotID)
	assert.True(t, plan[1].Quantity.Equal(dec("2")))
}

func TestUpdateLot_TotalNoBajaDeLoConsumido(t *testing.T) {
	f := newFixture(t)
	lot, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{ItemID: trackedItem, LotNumber: "L-1", TotalQuantity: dec("10")})
	require.NoError(t, err)
	_, err = f.svc.Lots.ReduceAvailable(f.ctx, lot.ID, dec("6"))
	require.NoError(t, err)

	_, err = f.svc.Lots.UpdateLot(f.ctx, lot.ID, inventory.UpdateLotInput{TotalQuantity: dec("5")})
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)

	got, err := f.svc.Lots.UpdateLot(f.ctx, lot.ID, inventory.UpdateLotInput{TotalQuantity: dec("8"), Supplier: "Acme"})
	require.NoError(t, err)
	assert.True(t, got.TotalQuantity.Equal(dec("8")))
	assert.True(t, got.AvailableQuantity.Equal(dec("2")))
	assert.Equal(t, "Acme", got.Supplier)
}

func TestUpdateLot_RenombrarADuplicado(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{ItemID: trackedItem, LotNumber: "L-1", TotalQuantity: dec("1")})
	require.NoError(t, err)
	other, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{ItemID: trackedItem, LotNumber: "L-2", TotalQuantity: dec("1")})
	require.NoError(t, err)

	_, err = f.svc.Lots.UpdateLot(f.ctx, other.ID, inventory.UpdateLotInput{LotNumber: "l-1", TotalQuantity: dec("1")})
	assert.ErrorIs(t, err, domain.ErrDuplicateLot)
}

func TestDeactivateLot_SaleDeFIFO(t *testing.T) {
	f := newFixture(t)
	lot, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{ItemID: trackedItem, LotNumber: "L-1", TotalQuantity: dec("3")})
	require.NoError(t, err)

	_, err = f.svc.Lots.DeactivateLot(f.ctx, lot.ID)
	require.NoError(t, err)

	lots, err := f.svc.Lots.ListAvailableFIFO(f.ctx, trackedItem)
	require.NoError(t, err)
	assert.Empty(t, lots)

	// Sigue siendo resoluble por ID.
	got := f.lot(t, lot.ID)
	assert.False(t, got.IsActive())
}

func TestListExpired_YExpiringBetween(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{
		ItemID: trackedItem, LotNumber: "VIEJO", TotalQuantity: dec("1"), ExpirationDate: dayPtr(2024, 1, 10),
	})
	require.NoError(t, err)
	_, err = f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{
		ItemID: trackedItem, LotNumber: "NUEVO", TotalQuantity: dec("1"), ExpirationDate: dayPtr(2024, 3, 10),
	})
	require.NoError(t, err)
	_, err = f.svc.Lots.CreateLot(f.ctx, inventory.CreateLotInput{ItemID: trackedItem, LotNumber: "SIN-FECHA", TotalQuantity: dec("1")})
	require.NoError(t, err)

	expired, err := f.svc.Lots.ListExpired(f.ctx, day(2024, 2, 1))
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "VIEJO", expired[0].LotNumber)

	soon, err := f.svc.Lots.ListExpiringBetween(f.ctx, day(2024, 3, 1), day(2024, 3, 31))
	require.NoError(t, err)
	require.Len(t, soon, 1)
	assert.Equal(t, "NUEVO", soon[0].LotNumber)

	_, err = f.svc.Lots.ListExpiringBetween(f.ctx, day(2024, 3, 31), day(2024, 3, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	available, err := f.svc.Lots.AggregateAvailable(f.ctx, trackedItem)
	require.NoError(t, err)
	assert.True(t, available.Equal(dec("3")))
}
