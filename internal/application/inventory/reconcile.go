package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

// Reconciler recorre todos los saldos y verifica que coincidan con su diario.
// Solo reporta: las divergencias quedan para conciliación manual.
type Reconciler struct {
	repos    Repos
	ledger   *Ledger
	interval time.Duration
	log      *logger.Logger
}

// NewReconciler construye el barrido. interval <= 0 usa 1h.
func NewReconciler(repos Repos, ledger *Ledger, interval time.Duration, log *logger.Logger) *Reconciler {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Reconciler{repos: repos, ledger: ledger, interval: interval, log: log.Component("reconciler")}
}

// Sweep verifica cada llave con saldo y devuelve las que divergen.
func (r *Reconciler) Sweep(ctx context.Context) ([]*ConsistencyReport, error) {
	balances, err := r.repos.Balances.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var drift []*ConsistencyReport
	for _, b := range balances {
		if err := ctx.Err(); err != nil {
			return drift, err
		}
		report, err := r.ledger.VerifyConsistency(ctx, b.ItemID, b.LocationID, b.LotID)
		if err != nil {
			r.log.Error().Err(err).Str("key", b.Key().String()).Msg("no se pudo verificar el saldo")
			continue
		}
		if !report.Consistent {
			drift = append(drift, report)
		}
	}
	r.log.Info().Int("checked", len(balances)).Int("drift", len(drift)).Msg("conciliación terminada")
	return drift, nil
}

// Run ejecuta Sweep cada intervalo hasta que ctx se cancele.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil && ctx.Err() == nil {
				r.log.Error().Err(err).Msg("barrido de conciliación fallido")
			}
		}
	}
}
