package inventory

import (
	"github.com/jhoicas/inventario-ledger/pkg/logger"
)

// Service agrupa los componentes del núcleo sobre el mismo almacenamiento y candados.
type Service struct {
	Lots     *LotManager
	Ledger   *Ledger
	Costing  *CostingEngine
	Recorder *MovementRecorder
}

// NewService arma los componentes. defaultLocationID viene de configuración.
func NewService(repos Repos, txRunner TxRunner, locker KeyLocker, defaultLocationID string, log *logger.Logger) *Service {
	costing := NewCostingEngine(repos, txRunner, locker, log)
	return &Service{
		Lots:     NewLotManager(repos, txRunner, locker, log),
		Ledger:   NewLedger(repos, txRunner, locker, log),
		Costing:  costing,
		Recorder: NewMovementRecorder(repos, txRunner, locker, costing, defaultLocationID, log),
	}
}
