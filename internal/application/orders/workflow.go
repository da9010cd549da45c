// Package orders avanza los pedidos de clientes por su secuencia fija de etapas.
package orders

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/ledger"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// ChangePublisher publica los cambios confirmados.
type ChangePublisher interface {
	Created(ctx context.Context, companyID, collection, id string)
	Updated(ctx context.Context, companyID string, refs ...feed.Ref)
}

// Workflow Upcoming -> Confirmed -> Packed & Dispatched -> Completed.
type Workflow struct {
	store     repository.DocumentStore
	publisher ChangePublisher
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewWorkflow construye el flujo de pedidos.
func NewWorkflow(store repository.DocumentStore, publisher ChangePublisher, log *logger.Logger) *Workflow {
	if log == nil {
		log = logger.Nop()
	}
	return &Workflow{
		store:     store,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// CreateOrder registra el pedido en la primera etapa.
func (w *Workflow) CreateOrder(ctx context.Context, companyID, userID string, in dto.CreateOrderRequest) (*dto.OrderResponse, error) {
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	if in.TotalAmount.IsNegative() {
		return nil, domain.NewValidation("totalAmount", "no puede ser negativo")
	}

	now := w.now()
	order := entity.Order{
		ID:              w.newID(),
		CustomerName:    in.CustomerName,
		CustomerNumber:  strings.TrimSpace(in.CustomerNumber),
		Items:           orderLines(in.Items),
		TotalAmount:     in.TotalAmount,
		Status:          ledger.StageUpcoming,
		StatusUpdatedAt: now,
		CompanyID:       companyID,
		UserID:          userID,
		CreatedAt:       now,
	}
	err := w.store.RunTransaction(ctx, func(tx repository.Tx) error {
		return tx.Set(entity.CollectionOrders, order.ID, &order)
	})
	if err != nil {
		return nil, err
	}
	w.log.Info().Str("order_id", order.ID).Str("company_id", companyID).Msg("pedido creado")
	w.publisher.Created(ctx, companyID, entity.CollectionOrders, order.ID)
	return toOrderResponse(&order), nil
}

// GetOrder lee un pedido.
func (w *Workflow) GetOrder(ctx context.Context, companyID, id string) (*dto.OrderResponse, error) {
	var order entity.Order
	if err := w.store.Get(ctx, entity.CollectionOrders, id, &order); err != nil {
		return nil, err
	}
	if order.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	order.ID = id
	return toOrderResponse(&order), nil
}

// Advance mueve el pedido a la etapa siguiente. En la última etapa no escribe nada y
// devuelve advanced=false. Una etapa guardada desconocida es un error de validación.
func (w *Workflow) Advance(ctx context.Context, companyID, userID, id string) (*dto.AdvanceOrderResponse, error) {
	now := w.now()
	var order entity.Order
	var advanced bool
	err := w.store.RunTransaction(ctx, func(tx repository.Tx) error {
		var current entity.Order
		if err := tx.Get(entity.CollectionOrders, id, &current); err != nil {
			return err
		}
		if current.CompanyID != companyID {
			return domain.ErrForbidden
		}
		current.ID = id
		next, terminal, err := ledger.NextStage(current.Status)
		if err != nil {
			return err
		}
		if terminal {
			order, advanced = current, false
			return nil
		}
		if err := tx.Update(entity.CollectionOrders, id, map[string]any{
			"status":          next,
			"statusUpdatedAt": now,
		}); err != nil {
			return err
		}
		current.Status = next
		current.StatusUpdatedAt = now
		order, advanced = current, true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if advanced {
		w.log.Info().Str("order_id", id).Str("status", order.Status).Str("user_id", userID).Msg("pedido avanzado")
		w.publisher.Updated(ctx, companyID, feed.Ref{Collection: entity.CollectionOrders, ID: id})
	} else {
		w.log.Debug().Str("order_id", id).Msg("pedido ya completado")
	}
	return &dto.AdvanceOrderResponse{Order: *toOrderResponse(&order), Advanced: advanced}, nil
}

func orderLines(lines []dto.InvoiceLineRequest) []entity.InvoiceLine {
	if len(lines) == 0 {
		return nil
	}
	out := make([]entity.InvoiceLine, 0, len(lines))
	for _, l := range lines {
		line := entity.InvoiceLine{ItemID: l.ItemID, Name: strings.TrimSpace(l.Name), Quantity: l.Quantity}
		if l.UnitPrice != nil {
			p := *l.UnitPrice
			line.MRP = &p
		}
		out = append(out, line)
	}
	return out
}

func toOrderResponse(o *entity.Order) *dto.OrderResponse {
	return &dto.OrderResponse{
		ID:              o.ID,
		CustomerName:    o.CustomerName,
		CustomerNumber:  o.CustomerNumber,
		TotalAmount:     o.TotalAmount,
		Status:          o.Status,
		StatusUpdatedAt: o.StatusUpdatedAt,
		CreatedAt:       o.CreatedAt,
	}
}
