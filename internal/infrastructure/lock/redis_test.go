package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

func newTestRedis(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, ttl, logger.NewNop()), mr
}

func TestRedis_LockYUnlock(t *testing.T) {
	r, mr := newTestRedis(t, 30*time.Second)
	ctx := context.Background()

	unlock, err := r.Lock(ctx, "balance:i:b:", "lots:i", "balance:i:b:")
	require.NoError(t, err)
	assert.True(t, mr.Exists(keyPrefix+"lots:i"))
	assert.True(t, mr.Exists(keyPrefix+"balance:i:b:"))
	assert.Len(t, mr.Keys(), 2, "llaves repetidas se toman una vez")

	unlock()
	assert.Empty(t, mr.Keys())
	unlock() // idempotente
}

func TestRedis_LlaveOcupadaRespetaElContexto(t *testing.T) {
	r, _ := newTestRedis(t, 30*time.Second)
	held, err := r.Lock(context.Background(), "lots:i")
	require.NoError(t, err)
	defer held()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = r.Lock(ctx, "lots:i")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
}

func TestRedis_FalloParcialLiberaLoObtenido(t *testing.T) {
	r, mr := newTestRedis(t, 30*time.Second)
	held, err := r.Lock(context.Background(), "b")
	require.NoError(t, err)
	defer held()

	// "a" se obtiene primero por orden; al fallar "b" debe soltarse.
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = r.Lock(ctx, "b", "a")
	require.Error(t, err)
	assert.False(t, mr.Exists(keyPrefix+"a"))
	assert.True(t, mr.Exists(keyPrefix+"b"))
}

func TestRedis_ExpiraSiElDuenoNoLibera(t *testing.T) {
	r, mr := newTestRedis(t, time.Second)
	stale, err := r.Lock(context.Background(), "lots:i")
	require.NoError(t, err)

	mr.FastForward(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	fresh, err := r.Lock(ctx, "lots:i")
	require.NoError(t, err)

	// El dueño anterior ya no puede borrar el candado del nuevo.
	stale()
	assert.True(t, mr.Exists(keyPrefix+"lots:i"))
	fresh()
	assert.False(t, mr.Exists(keyPrefix+"lots:i"))
}
