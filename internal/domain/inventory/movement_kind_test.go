package inventory_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/internal/domain"
	"github.com/jhoicas/inventario-ledger/internal/domain/entity"
	"github.com/jhoicas/inventario-ledger/internal/domain/inventory"
)

func TestSign(t *testing.T) {
	cases := []struct {
		kind entity.MovementKind
		want int
	}{
		{entity.MovementKindEntry, 1},
		{entity.MovementKindAdjustmentIn, 1},
		{entity.MovementKindDevolutionIn, 1},
		{entity.MovementKindOut, -1},
		{entity.MovementKindAdjustmentOut, -1},
		{entity.MovementKindDevolutionOut, -1},
	}
	for _, tc := range cases {
		got, err := inventory.Sign(tc.kind)
		require.NoError(t, err, tc.kind)
		assert.Equal(t, tc.want, got, tc.kind)
	}

	_, err := inventory.Sign("TRANSFER")
	assert.True(t, errors.Is(err, domain.ErrInvalidMovementKind))
}

func TestReplay(t *testing.T) {
	entries := []*entity.JournalEntry{
		{Kind: entity.MovementKindEntry, Quantity: dec("10")},
		{Kind: entity.MovementKindOut, Quantity: dec("-3")},
		{Kind: entity.MovementKindAdjustmentIn, Quantity: dec("1.5")},
		{Kind: entity.MovementKindDevolutionOut, Quantity: dec("-0.5")},
	}
	got, err := inventory.Replay(entries)
	require.NoError(t, err)
	assert.True(t, dec("8").Equal(got), "got %s", got)
}

func TestNormalizeLotNumber(t *testing.T) {
	assert.Equal(t, "L-001", inventory.NormalizeLotNumber("  l-001 "))
	assert.Equal(t, "AÇÚCAR-7", inventory.NormalizeLotNumber("açúcar-7"))
}
