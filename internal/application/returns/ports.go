package returns

import (
	"context"

	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
)

// StockLedger lectura/validación de ítems y aplicación de deltas en la transacción del caller.
type StockLedger interface {
	Plan(tx repository.Tx, companyID string, deltas map[string]int64, alsoRead ...string) (*inventory.StockPlan, error)
}

// ChangePublisher publica los cambios confirmados (implementado por feed.Publisher).
type ChangePublisher interface {
	Created(ctx context.Context, companyID, collection, id string)
	Updated(ctx context.Context, companyID string, refs ...feed.Ref)
	Deleted(ctx context.Context, companyID, collection, id string)
}
