package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/inventario-ledger/internal/application/inventory"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/lock"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/inventario-ledger/internal/infrastructure/postgres"
	apphttp "github.com/jhoicas/inventario-ledger/internal/interfaces/http"
	"github.com/jhoicas/inventario-ledger/pkg/config"
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:   cfg.App.Env,
		Level: cfg.App.LogLevel,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("app", cfg.App.Name).
		Str("store", cfg.Store.Backend).
		Str("locks", cfg.Store.LockBackend).
		Msg("iniciando ledger de inventario")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := make(map[string]apphttp.Checker)

	var (
		repos    inventory.Repos
		txRunner inventory.TxRunner
	)
	switch cfg.Store.Backend {
	case config.StoreBackendMemory:
		// Solo para desarrollo: el estado se pierde al reiniciar.
		store := memory.New()
		repos, txRunner = store.Repos(), store
		log.Warn().Msg("almacenamiento en memoria, los datos no persisten")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a PostgreSQL")
		}
		defer pool.Close()
		if cfg.Store.Migrate {
			applied, err := postgres.Migrate(ctx, pool)
			if err != nil {
				log.Fatal().Err(err).Msg("migraciones")
			}
			log.Info().Strs("applied", applied).Msg("esquema al día")
		}
		repos, txRunner = postgres.NewRepos(pool), postgres.NewTxRunner(pool)
		checks["postgres"] = pool.Ping
	}

	var locker inventory.KeyLocker
	switch cfg.Store.LockBackend {
	case config.LockBackendRedis:
		rdb, err := lock.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("conexión a Redis")
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.Redis.LockTTL, log)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	default:
		locker = lock.NewLocal()
	}

	svc := inventory.NewService(repos, txRunner, locker, cfg.Ledger.DefaultLocationID, log)
	worker := inventory.NewRecalcWorker(svc.Costing, cfg.Ledger.RecalcRetryInterval, log)
	reconciler := inventory.NewReconciler(repos, svc.Ledger, cfg.Ledger.ReconcileInterval, log)

	app := apphttp.NewApp(cfg.App.Name)
	apphttp.Router(app, apphttp.RouterDeps{AppName: cfg.App.Name, Checks: checks})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return worker.Run(gctx) })
	g.Go(func() error { return reconciler.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr()).Msg("servidor HTTP escuchando")
		return app.Listen(cfg.HTTP.Addr())
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("señal de apagado recibida, cerrando servidor...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return app.ShutdownWithContext(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("apagado con error")
	}
	log.Info().Msg("aplicación detenida")
}
