package inventory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
)

func lot(id string, entry time.Time, available string) *entity.Lot {
	return &entity.Lot{
		ID:                id,
		ItemID:            "item-1",
		LotNumber:         "L-" + id,
		EntryDate:         entry,
		TotalQuantity:     dec(available),
		AvailableQuantity: dec(available),
		Status:            entity.StatusActive,
	}
}

var (
	jan = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	feb = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	mar = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
)

// A (enero, 10) y B (febrero, 10): consumir 15 toma 10 de A y 5 de B.
func TestAllocateFIFO_AgotaElLoteMasAntiguoPrimero(t *testing.T) {
	lots := []*entity.Lot{lot("b", feb, "10"), lot("a", jan, "10")}

	plan, err := inventory.AllocateFIFO(lots, dec("15"), nil)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, "a", plan[0].LotID)
	assert.True(t, dec("10").Equal(plan[0].Quantity))
	assert.Equal(t, "b", plan[1].LotID)
	assert.True(t, dec("5").Equal(plan[1].Quantity))
}

func TestAllocateFIFO_Insuficiente(t *testing.T) {
	lots := []*entity.Lot{lot("a", jan, "10"), lot("b", feb, "10")}
	_, err := inventory.AllocateFIFO(lots, dec("25"), nil)
	assert.True(t, errors.Is(err, domain.ErrInsufficientStock))
}

func TestAllocateFIFO_IgnoraInactivosYAgotados(t *testing.T) {
	inactive := lot("a", jan, "10")
	inactive.Status = entity.StatusInactive
	empty := lot("b", feb, "10")
	empty.AvailableQuantity = decimal.Zero
	live := lot("c", mar, "10")

	plan, err := inventory.AllocateFIFO([]*entity.Lot{inactive, empty, live}, dec("4"), nil)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, "c", plan[0].LotID)
}

func TestAllocateFIFO_VencidoNoSeExcluye(t *testing.T) {
	expired := lot("a", jan, "10")
	exp := jan.AddDate(0, 0, 5)
	expired.ExpirationDate = &exp
	require.True(t, expired.IsExpired(feb))

	plan, err := inventory.AllocateFIFO([]*entity.Lot{expired}, dec("3"), nil)
	require.NoError(t, err)
	assert.Equal(t, "a", plan[0].LotID)
}

func TestAllocateFIFO_RespetaTope(t *testing.T) {
	lots := []*entity.Lot{lot("a", jan, "10"), lot("b", feb, "10")}
	capAt := map[string]decimal.Decimal{"a": dec("2"), "b": dec("10")}

	plan, err := inventory.AllocateFIFO(lots, dec("7"), func(l *entity.Lot) decimal.Decimal { return capAt[l.ID] })
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.True(t, dec("2").Equal(plan[0].Quantity))
	assert.True(t, dec("5").Equal(plan[1].Quantity))
}

func TestAllocateFIFO_CantidadInvalida(t *testing.T) {
	_, err := inventory.AllocateFIFO(nil, decimal.Zero, nil)
	assert.True(t, errors.Is(err, domain.ErrInvalidQuantity))
}
