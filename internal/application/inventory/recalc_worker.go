package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

// RecalcWorker reintenta periódicamente los ítems cuyo recálculo de costo promedio falló.
type RecalcWorker struct {
	costing  *CostingEngine
	interval time.Duration
	log      *logger.Logger
}

// NewRecalcWorker construye el worker. interval <= 0 usa 30s.
func NewRecalcWorker(costing *CostingEngine, interval time.Duration, log *logger.Logger) *RecalcWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RecalcWorker{costing: costing, interval: interval, log: log.Component("recalc_worker")}
}

// Run bloquea hasta que ctx se cancele. Devuelve nil al apagarse.
func (w *RecalcWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.interval).Msg("worker de recálculo iniciado")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("worker de recálculo detenido")
			return nil
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

// Tick procesa una pasada de pendientes.
func (w *RecalcWorker) Tick(ctx context.Context) {
	done, err := w.costing.RetryPending(ctx)
	if err != nil {
		w.log.Error().Err(err).Int("recovered", done).Msg("reintento de recálculo incompleto")
		return
	}
	if done > 0 {
		w.log.Info().Int("recovered", done).Msg("ítems pendientes recalculados")
	}
}
