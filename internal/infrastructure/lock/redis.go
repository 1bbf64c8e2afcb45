package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"

	"github.com/jhoicas/inventario-ledger/pkg/config"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

const (
	keyPrefix     = "inventario-ledger:lock:"
	retryInterval = 25 * time.Millisecond
)

// Redis candados distribuidos por llave para varias instancias sobre la misma base.
// El TTL acota cuánto puede sobrevivir un candado si la instancia muere sin liberarlo;
// debe superar la duración de la transacción más larga.
type Redis struct {
	client *redislock.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisClient abre la conexión y verifica con PING.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Address, err)
	}
	return rdb, nil
}

// NewRedis construye el locker sobre un cliente ya conectado.
func NewRedis(rdb redislock.RedisClient, ttl time.Duration, log *logger.Logger) *Redis {
	return &Redis{client: redislock.New(rdb), ttl: ttl, log: log.Component("redis_lock")}
}

// Lock obtiene las llaves en orden lexicográfico reintentando hasta que ctx expire.
func (r *Redis) Lock(ctx context.Context, keys ...string) (func(), error) {
	ordered := normalizeKeys(keys)
	held := make([]*redislock.Lock, 0, len(ordered))
	for _, k := range ordered {
		l, err := r.client.Obtain(ctx, keyPrefix+k, r.ttl, &redislock.Options{
			RetryStrategy: redislock.LinearBackoff(retryInterval),
		})
		if err != nil {
			r.releaseAll(held)
			if errors.Is(err, redislock.ErrNotObtained) && ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("obtener candado %s: %w", k, err)
		}
		held = append(held, l)
	}
	var once sync.Once
	return func() { once.Do(func() { r.releaseAll(held) }) }, nil
}

func (r *Redis) releaseAll(held []*redislock.Lock) {
	// Se libera con un contexto propio: el del llamador puede estar cancelado.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(held) - 1; i >= 0; i-- {
		if err := held[i].Release(ctx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.log.Warn().Err(err).Str("key", held[i].Key()).Msg("no se pudo liberar el candado")
		}
	}
}
