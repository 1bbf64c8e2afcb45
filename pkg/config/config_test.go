package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/pkg/config"
)

func TestLoad_ValoresPorDefecto(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StoreBackendPostgres, cfg.Store.Backend)
	assert.Equal(t, config.LockBackendLocal, cfg.Store.LockBackend)
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, time.Minute, cfg.Ledger.RecalcRetryInterval)
	assert.Empty(t, cfg.Ledger.DefaultLocationID, "la ubicación por defecto nunca es una constante oculta")
	assert.Equal(t, int32(25), cfg.DB.MaxConns)
	assert.Equal(t, int32(2), cfg.DB.MinConns)
	assert.Equal(t, time.Hour, cfg.DB.MaxConnLifetime)
	assert.False(t, cfg.DB.DialIPv4)
}

func TestLoad_PoolDesdeVariablesDeEntorno(t *testing.T) {
	t.Setenv("DB_MAX_CONNS", "8")
	t.Setenv("DB_MIN_CONNS", "1")
	t.Setenv("DB_MAX_CONN_IDLE_MINUTES", "5")
	t.Setenv("DB_DIAL_IPV4", "true")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, int32(8), cfg.DB.MaxConns)
	assert.Equal(t, int32(1), cfg.DB.MinConns)
	assert.Equal(t, 5*time.Minute, cfg.DB.MaxConnIdleTime)
	assert.True(t, cfg.DB.DialIPv4)

	t.Setenv("DB_MIN_CONNS", "9")
	_, err = config.Load()
	assert.Error(t, err, "mínimo por encima del máximo")
}

func TestLoad_DesdeVariablesDeEntorno(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_ADDRESS", "redis:6379")
	t.Setenv("LEDGER_DEFAULT_LOCATION_ID", "loc-central")
	t.Setenv("RECALC_RETRY_INTERVAL_SECONDS", "5")
	t.Setenv("DB_MIGRATE", "false")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.StoreBackendMemory, cfg.Store.Backend)
	assert.Equal(t, config.LockBackendRedis, cfg.Store.LockBackend)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, "loc-central", cfg.Ledger.DefaultLocationID)
	assert.Equal(t, 5*time.Second, cfg.Ledger.RecalcRetryInterval)
	assert.False(t, cfg.Store.Migrate)
}

func TestLoad_BackendDesconocido(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")
	_, err := config.Load()
	assert.Error(t, err)
}

func TestDBConfig_DSNEscapaPassword(t *testing.T) {
	c := config.DBConfig{Host: "db", Port: 5432, User: "ledger", Password: "p@ss/word", DBName: "inv", SSLMode: "disable"}
	assert.Equal(t, "postgres://ledger:p%40ss%2Fword@db:5432/inv?sslmode=disable", c.DSN())

	c.DatabaseURL = "postgres://x@y/z"
	assert.Equal(t, "postgres://x@y/z", c.ConnectionString())
}
