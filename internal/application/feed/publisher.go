// Package feed publica cambios de documentos después de cada commit.
package feed

import (
	"context"
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// Publisher envuelve un ChangeNotifier. Un fallo al publicar se registra como warning y nunca
// invalida la operación ya confirmada.
type Publisher struct {
	notifier repository.ChangeNotifier
	log      *logger.Logger
	now      func() time.Time
}

// NewPublisher construye el publicador. notifier nil equivale a NoopNotifier.
func NewPublisher(notifier repository.ChangeNotifier, log *logger.Logger) *Publisher {
	if notifier == nil {
		notifier = repository.NoopNotifier{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Publisher{notifier: notifier, log: log, now: time.Now}
}

// Created publica la creación de un documento.
func (p *Publisher) Created(ctx context.Context, companyID, collection, id string) {
	p.Publish(ctx, companyID, repository.ChangeCreated, Ref{collection, id})
}

// Updated publica la modificación de uno o más documentos.
func (p *Publisher) Updated(ctx context.Context, companyID string, refs ...Ref) {
	p.Publish(ctx, companyID, repository.ChangeUpdated, refs...)
}

// Deleted publica el borrado de un documento.
func (p *Publisher) Deleted(ctx context.Context, companyID, collection, id string) {
	p.Publish(ctx, companyID, repository.ChangeDeleted, Ref{collection, id})
}

// Ref referencia a un documento.
type Ref struct {
	Collection string
	ID         string
}

// Items referencias a los ítems cuyos deltas se aplicaron.
func Items(collection string, ids []string) []Ref {
	refs := make([]Ref, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, Ref{collection, id})
	}
	return refs
}

// Publish envía un cambio por referencia con la misma marca de tiempo.
func (p *Publisher) Publish(ctx context.Context, companyID string, op repository.ChangeOp, refs ...Ref) {
	if len(refs) == 0 {
		return
	}
	at := p.now().UTC()
	changes := make([]repository.Change, 0, len(refs))
	for _, r := range refs {
		changes = append(changes, repository.Change{
			Collection: r.Collection,
			ID:         r.ID,
			Op:         op,
			CompanyID:  companyID,
			At:         at,
		})
	}
	if err := p.notifier.Publish(ctx, changes...); err != nil {
		p.log.Warn().Err(err).
			Str("company_id", companyID).
			Str("op", string(op)).
			Int("changes", len(changes)).
			Msg("no se pudo publicar el cambio")
	}
}
