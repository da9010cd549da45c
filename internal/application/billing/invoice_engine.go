package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/ledger"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

// defaultLineName nombre de línea cuando ni la petición ni el catálogo lo tienen.
const defaultLineName = "N/A"

// InvoiceEngine crea, edita y borra ventas (Credit) y compras (Debit). Cada operación escribe el
// documento y los deltas de stock en una sola transacción; una edición aplica solo la diferencia.
type InvoiceEngine struct {
	store     repository.DocumentStore
	stock     StockLedger
	publisher ChangePublisher
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewInvoiceEngine construye el motor de facturas.
func NewInvoiceEngine(store repository.DocumentStore, stock StockLedger, publisher ChangePublisher, log *logger.Logger) *InvoiceEngine {
	if log == nil {
		log = logger.Nop()
	}
	return &InvoiceEngine{
		store:     store,
		stock:     stock,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// CreateInvoice guarda la factura y aplica -qty (venta) o +qty (compra) por ítem.
func (e *InvoiceEngine) CreateInvoice(ctx context.Context, companyID, userID string, t entity.InvoiceType, in dto.CreateInvoiceRequest) (*dto.InvoiceResponse, error) {
	if !t.Valid() {
		return nil, domain.NewValidation("type", "tipo de factura inválido")
	}
	if err := validateLines(in.Items); err != nil {
		return nil, err
	}
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	payment := ledger.NewPaymentState(in.PaymentMethods)
	if err := payment.Validate(); err != nil {
		return nil, err
	}

	// id y reloj fuera del closure: un reintento reescribe el mismo documento.
	id := e.newID()
	now := e.now()
	collection := t.Collection()
	newLines := requestStockLines(in.Items)
	deltas := ledger.ComputeDelta(nil, newLines, t.StockSign())

	var inv *entity.Invoice
	err := e.store.RunTransaction(ctx, func(tx repository.Tx) error {
		plan, err := e.stock.Plan(tx, companyID, deltas)
		if err != nil {
			return err
		}
		doc := &entity.Invoice{
			ID:          id,
			Type:        t,
			PartyName:   strings.TrimSpace(in.PartyName),
			PartyNumber: strings.TrimSpace(in.PartyNumber),
			Items:       buildLines(t, in.Items, plan),
			CompanyID:   companyID,
			UserID:      userID,
			CreatedAt:   now,
		}
		doc.SetPayment(payment)
		if err := tx.Set(collection, id, doc); err != nil {
			return err
		}
		if err := plan.Apply(tx); err != nil {
			return err
		}
		inv = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("invoice_id", id).
		Str("type", string(t)).
		Str("company_id", companyID).
		Int("items", len(deltas)).
		Msg("factura creada")
	e.publisher.Created(ctx, companyID, collection, id)
	e.publisher.Updated(ctx, companyID, feed.Items(entity.CollectionItems, ledger.SortedIDs(deltas))...)
	return toInvoiceResponse(inv), nil
}

// EditInvoice reemplaza las líneas (y opcionalmente paymentMethods) aplicando solo el delta neto
// entre las líneas guardadas y las nuevas.
func (e *InvoiceEngine) EditInvoice(ctx context.Context, companyID, userID string, t entity.InvoiceType, id string, in dto.EditInvoiceRequest) (*dto.InvoiceResponse, error) {
	if !t.Valid() {
		return nil, domain.NewValidation("type", "tipo de factura inválido")
	}
	if err := validateLines(in.Items); err != nil {
		return nil, err
	}
	if err := dto.Validate(in); err != nil {
		return nil, err
	}
	var replacement *ledger.PaymentState
	if in.PaymentMethods != nil {
		if len(in.PaymentMethods) == 0 {
			return nil, domain.NewValidation("paymentMethods", "no puede estar vacío; omítelo para conservar el pago")
		}
		p := ledger.NewPaymentState(in.PaymentMethods)
		if err := p.Validate(); err != nil {
			return nil, err
		}
		replacement = &p
	}

	now := e.now()
	collection := t.Collection()
	newLines := requestStockLines(in.Items)

	var inv *entity.Invoice
	var touched []string
	err := e.store.RunTransaction(ctx, func(tx repository.Tx) error {
		old, err := loadInvoice(tx, companyID, t, id)
		if err != nil {
			return err
		}
		if err := checkReturned(old, newLines); err != nil {
			return err
		}
		deltas := ledger.ComputeDelta(old.StockLines(), newLines, t.StockSign())
		// Los ítems sin cambio de cantidad también se leen para validar empresa y rellenar nombre/precio.
		plan, err := e.stock.Plan(tx, companyID, deltas, lineIDs(in.Items)...)
		if err != nil {
			return err
		}
		doc := *old
		doc.Items = buildLines(t, in.Items, plan)
		if in.PartyName != nil {
			doc.PartyName = strings.TrimSpace(*in.PartyName)
		}
		if in.PartyNumber != nil {
			doc.PartyNumber = strings.TrimSpace(*in.PartyNumber)
		}
		payment := old.Payment()
		if replacement != nil {
			payment = *replacement
		}
		doc.SetPayment(payment)
		doc.UpdatedAt = &now
		if err := tx.Set(collection, id, &doc); err != nil {
			return err
		}
		if err := plan.Apply(tx); err != nil {
			return err
		}
		inv = &doc
		touched = plan.ItemIDs()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("invoice_id", id).
		Str("type", string(t)).
		Strs("items_changed", touched).
		Msg("factura editada")
	e.publisher.Updated(ctx, companyID, append(
		[]feed.Ref{{Collection: collection, ID: id}},
		feed.Items(entity.CollectionItems, touched)...,
	)...)
	return toInvoiceResponse(inv), nil
}

// DeleteInvoice revierte los deltas de todas las líneas guardadas y borra la factura.
// Falla con ErrHasReturns mientras queden devoluciones enlazadas.
func (e *InvoiceEngine) DeleteInvoice(ctx context.Context, companyID, userID string, t entity.InvoiceType, id string) error {
	if !t.Valid() {
		return domain.NewValidation("type", "tipo de factura inválido")
	}
	collection := t.Collection()
	var touched []string
	err := e.store.RunTransaction(ctx, func(tx repository.Tx) error {
		old, err := loadInvoice(tx, companyID, t, id)
		if err != nil {
			return err
		}
		if old.HasReturns() {
			return fmt.Errorf("factura %s: %w", id, domain.ErrHasReturns)
		}
		deltas := ledger.ComputeDelta(old.StockLines(), nil, t.StockSign())
		plan, err := e.stock.Plan(tx, companyID, deltas)
		if err != nil {
			return err
		}
		if err := tx.Delete(collection, id); err != nil {
			return err
		}
		if err := plan.Apply(tx); err != nil {
			return err
		}
		touched = plan.ItemIDs()
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info().
		Str("invoice_id", id).
		Str("type", string(t)).
		Str("user_id", userID).
		Msg("factura eliminada")
	e.publisher.Deleted(ctx, companyID, collection, id)
	e.publisher.Updated(ctx, companyID, feed.Items(entity.CollectionItems, touched)...)
	return nil
}

// GetInvoice lee la factura; el estado Paid/Unpaid se deriva en la respuesta.
func (e *InvoiceEngine) GetInvoice(ctx context.Context, companyID string, t entity.InvoiceType, id string) (*dto.InvoiceResponse, error) {
	if !t.Valid() {
		return nil, domain.NewValidation("type", "tipo de factura inválido")
	}
	var inv entity.Invoice
	if err := e.store.Get(ctx, t.Collection(), id, &inv); err != nil {
		return nil, err
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	inv.ID = id
	inv.Type = t
	return toInvoiceResponse(&inv), nil
}

func loadInvoice(tx repository.Tx, companyID string, t entity.InvoiceType, id string) (*entity.Invoice, error) {
	var inv entity.Invoice
	if err := tx.Get(t.Collection(), id, &inv); err != nil {
		return nil, err
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	inv.ID = id
	inv.Type = t
	return &inv, nil
}

// validateLines reglas que el validador de structs no cubre (decimales).
func validateLines(lines []dto.InvoiceLineRequest) error {
	for i, l := range lines {
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return domain.NewValidation(lineField(i, "unitPrice"), "no puede ser negativo")
		}
	}
	return nil
}

func lineField(i int, name string) string {
	return "items[" + strconv.Itoa(i) + "]." + name
}

func requestStockLines(lines []dto.InvoiceLineRequest) []ledger.Line {
	out := make([]ledger.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, ledger.Line{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return out
}

func lineIDs(lines []dto.InvoiceLineRequest) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.ItemID)
	}
	return out
}

// buildLines arma las líneas persistidas. Precio omitido o cero toma el del catálogo según el tipo;
// nombre vacío toma el del ítem.
func buildLines(t entity.InvoiceType, lines []dto.InvoiceLineRequest, plan *inventory.StockPlan) []entity.InvoiceLine {
	out := make([]entity.InvoiceLine, 0, len(lines))
	for _, l := range lines {
		item := plan.Item(l.ItemID)
		name := strings.TrimSpace(l.Name)
		var price decimal.Decimal
		if l.UnitPrice != nil {
			price = *l.UnitPrice
		}
		if item != nil {
			if name == "" {
				name = item.Name
			}
			if price.IsZero() {
				price = item.PriceFor(t)
			}
		}
		if name == "" {
			name = defaultLineName
		}
		line := entity.InvoiceLine{ItemID: l.ItemID, Name: name, Quantity: l.Quantity}
		p := price
		if t == entity.InvoiceTypeDebit {
			line.PurchasePrice = &p
		} else {
			line.MRP = &p
		}
		out = append(out, line)
	}
	return out
}

// checkReturned exige que cada ítem conserve al menos las unidades ya devueltas.
func checkReturned(inv *entity.Invoice, newLines []ledger.Line) error {
	qty := ledger.Quantities(newLines)
	for _, itemID := range ledger.SortedIDs(inv.ReturnedItems) {
		if returned := inv.ReturnedItems[itemID]; qty[itemID] < returned {
			return domain.NewValidation("items",
				"el ítem "+itemID+" tiene "+strconv.FormatInt(returned, 10)+" unidades devueltas")
		}
	}
	return nil
}

func toInvoiceResponse(inv *entity.Invoice) *dto.InvoiceResponse {
	payment := inv.Payment()
	items := make([]dto.InvoiceLineResponse, 0, len(inv.Items))
	for _, l := range inv.Items {
		price := l.UnitPrice()
		items = append(items, dto.InvoiceLineResponse{
			ItemID:    l.ItemID,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: price,
			Amount:    price.Mul(decimal.NewFromInt(l.Quantity)),
		})
	}
	return &dto.InvoiceResponse{
		ID:             inv.ID,
		Type:           string(inv.Type),
		PartyName:      inv.PartyName,
		PartyNumber:    inv.PartyNumber,
		Items:          items,
		PaymentMethods: payment.Map(),
		TotalAmount:    inv.TotalAmount,
		Due:            payment.Due,
		Status:         string(payment.Status()),
		ReturnedItems:  inv.ReturnedItems,
		CreatedAt:      inv.CreatedAt,
		UpdatedAt:      inv.UpdatedAt,
	}
}
