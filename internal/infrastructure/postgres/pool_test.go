package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/pkg/config"
)

func TestBuildPoolConfig_AplicaTamanoYTiempos(t *testing.T) {
	cfg := config.DBConfig{
		Host: "db", Port: 5432, User: "ledger", Password: "secret", DBName: "inv", SSLMode: "disable",
		MaxConns:          8,
		MinConns:          1,
		MaxConnLifetime:   10 * time.Minute,
		MaxConnIdleTime:   time.Minute,
		HealthCheckPeriod: 15 * time.Second,
	}
	pc, err := buildPoolConfig(cfg)
	require.NoError(t, err)

	assert.Equal(t, int32(8), pc.MaxConns)
	assert.Equal(t, int32(1), pc.MinConns)
	assert.Equal(t, 10*time.Minute, pc.MaxConnLifetime)
	assert.Equal(t, time.Minute, pc.MaxConnIdleTime)
	assert.Equal(t, 15*time.Second, pc.HealthCheckPeriod)
	assert.Equal(t, "db", pc.ConnConfig.Host)
	assert.Equal(t, "inv", pc.ConnConfig.Database)
	assert.NotNil(t, pc.AfterConnect, "registra el codec decimal")
}

func TestBuildPoolConfig_DatabaseURLYDialIPv4(t *testing.T) {
	cfg := config.DBConfig{DatabaseURL: "postgres://u:p@pg.internal:6543/ledger?sslmode=disable"}
	pc, err := buildPoolConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "pg.internal", pc.ConnConfig.Host)
	assert.Equal(t, uint16(6543), pc.ConnConfig.Port)

	cfg.DialIPv4 = true
	pc, err = buildPoolConfig(cfg)
	require.NoError(t, err)
	require.NotNil(t, pc.ConnConfig.DialFunc)

	// Una dirección IPv6 literal no es marcable por tcp4.
	_, err = pc.ConnConfig.DialFunc(context.Background(), "tcp", "[::1]:5432")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tcp4")
}

func TestBuildPoolConfig_DSNInvalido(t *testing.T) {
	_, err := buildPoolConfig(config.DBConfig{DatabaseURL: "postgres://%zz"})
	assert.Error(t, err)
}
