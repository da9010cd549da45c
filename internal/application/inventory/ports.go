package inventory

import (
	"context"

	"github.com/jhoicas/pos-ledger/internal/application/feed"
)

// ChangePublisher publica los cambios confirmados (implementado por feed.Publisher).
type ChangePublisher interface {
	Created(ctx context.Context, companyID, collection, id string)
	Updated(ctx context.Context, companyID string, refs ...feed.Ref)
}
