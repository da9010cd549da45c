package billing

import (
	"context"

	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

// StockLedger integra facturación con inventario dentro de la misma transacción.
// Plan lee y valida los ítems; el caller escribe su documento y luego aplica el plan.
type StockLedger interface {
	Plan(tx repository.Tx, companyID string, deltas map[string]int64, alsoRead ...string) (*inventory.StockPlan, error)
}

// ChangePublisher publica los cambios confirmados (implementado por feed.Publisher).
type ChangePublisher interface {
	Created(ctx context.Context, companyID, collection, id string)
	Updated(ctx context.Context, companyID string, refs ...feed.Ref)
	Deleted(ctx context.Context, companyID, collection, id string)
}
