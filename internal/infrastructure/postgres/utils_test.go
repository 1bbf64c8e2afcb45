package postgres

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsUniqueViolation(t *testing.T) {
	wrapped := fmt.Errorf("insert lot: %w", &pgconn.PgError{Code: "23505"})
	assert.True(t, isUniqueViolation(wrapped))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23514"}))
	assert.False(t, isUniqueViolation(errors.New("connection reset")))
}

func TestIsNoRows(t *testing.T) {
	assert.True(t, isNoRows(fmt.Errorf("get lot: %w", pgx.ErrNoRows)))
	assert.False(t, isNoRows(errors.New("otro")))
}

func TestNullString(t *testing.T) {
	assert.Nil(t, nullString(""))
	require.NotNil(t, nullString("L-1"))
	assert.Equal(t, "L-1", fromNullString(nullString("L-1")))
	assert.Equal(t, "", fromNullString(nil))
}

func TestMigrations_CreanTodasLasColecciones(t *testing.T) {
	names, err := fs.Glob(migrationsFS, "migrations/*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	var schema strings.Builder
	for _, name := range names {
		body, err := migrationsFS.ReadFile(name)
		require.NoError(t, err)
		schema.Write(body)
	}
	for _, table := range []string{
		"items", "locations", "lots", "stock_balances", "stock_journal",
		"stock_movements", "cost_entries", "cost_recalc_pending",
	} {
		assert.Contains(t, schema.String(), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
	}
}
