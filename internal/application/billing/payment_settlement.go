package billing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// PaymentSettlement registra abonos contra el saldo pendiente de una factura.
type PaymentSettlement struct {
	store     repository.DocumentStore
	publisher ChangePublisher
	log       *logger.Logger
	now       func() time.Time
}

// NewPaymentSettlement construye el caso de uso.
func NewPaymentSettlement(store repository.DocumentStore, publisher ChangePublisher, log *logger.Logger) *PaymentSettlement {
	if log == nil {
		log = logger.Nop()
	}
	return &PaymentSettlement{
		store:     store,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SettlePayment mueve amount de "due" al método indicado. Si el saldo quedaría negativo devuelve
// *domain.ExcessPaymentError y no escribe nada. totalAmount no cambia.
func (s *PaymentSettlement) SettlePayment(ctx context.Context, companyID, userID string, t entity.InvoiceType, id string, in dto.SettlePaymentRequest) (*dto.InvoiceResponse, error) {
	if !t.Valid() {
		return nil, domain.NewValidation("type", "tipo de factura inválido")
	}
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	if !in.Amount.GreaterThan(decimal.Zero) {
		return nil, domain.NewValidation("amount", "debe ser mayor que cero")
	}

	now := s.now()
	collection := t.Collection()
	var inv *entity.Invoice
	err := s.store.RunTransaction(ctx, func(tx repository.Tx) error {
		current, err := loadInvoice(tx, companyID, t, id)
		if err != nil {
			return err
		}
		next, err := current.Payment().Settle(in.Amount, in.Method)
		if err != nil {
			return err
		}
		doc := *current
		doc.SetPayment(next)
		doc.UpdatedAt = &now
		// Un solo Update con el mapa completo: due y el método cambian juntos.
		if err := tx.Update(collection, id, map[string]any{
			"paymentMethods": doc.PaymentMethods,
			"totalAmount":    doc.TotalAmount,
			"updatedAt":      now,
		}); err != nil {
			return err
		}
		inv = &doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("invoice_id", id).
		Str("type", string(t)).
		Str("method", in.Method).
		Str("amount", in.Amount.String()).
		Str("due", inv.Payment().Due.String()).
		Str("user_id", userID).
		Msg("abono registrado")
	s.publisher.Updated(ctx, companyID, feed.Ref{Collection: collection, ID: id})
	return toInvoiceResponse(inv), nil
}
