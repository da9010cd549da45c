// Package returns implementa las devoluciones de venta y de compra con ediciones diferenciales.
package returns

import (
	"context"
	"errors"
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

const defaultLineName = "N/A"

// Engine devoluciones. sourceType es el tipo de la factura que se revierte: Credit (venta) suma
// stock, Debit (compra) lo descuenta.
type Engine struct {
	store     repository.DocumentStore
	stock     StockLedger
	publisher ChangePublisher
	log       *logger.Logger
	now       func() time.Time
	newID     func() string
}

// NewEngine construye el motor de devoluciones.
func NewEngine(store repository.DocumentStore, stock StockLedger, publisher ChangePublisher, log *logger.Logger) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		store:     store,
		stock:     stock,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     func() string { return uuid.New().String() },
	}
}

// CreateReturn guarda la devolución y aplica su delta de stock. Con originalInvoiceId cada línea
// debe existir en la factura origen y toma su precio unitario; la suma de todas las devoluciones
// enlazadas no supera la cantidad facturada (returnedItems de la factura lleva la cuenta).
func (e *Engine) CreateReturn(ctx context.Context, companyID, userID string, sourceType entity.InvoiceType, in dto.CreateReturnRequest) (*dto.ReturnResponse, error) {
	if !sourceType.Valid() {
		return nil, domain.NewValidation("sourceType", "tipo de devolución inválido")
	}
	if err := validateLines(in.ReturnItems); err != nil {
		return nil, err
	}
	if err := dto.Validate(in); err != nil {
		return nil, err
	}

	id := e.newID()
	now := e.now()
	collection := sourceType.ReturnCollection()
	originalID := strings.TrimSpace(in.OriginalInvoiceID)
	newLines := requestStockLines(in.ReturnItems)
	deltas := ledger.ComputeDelta(nil, newLines, sourceType.ReturnStockSign())

	var ret *entity.ReturnInvoice
	err := e.store.RunTransaction(ctx, func(tx repository.Tx) error {
		original, err := loadOriginal(tx, companyID, sourceType, originalID)
		if err != nil {
			return err
		}
		plan, err := e.stock.Plan(tx, companyID, deltas)
		if err != nil {
			return err
		}
		lines, err := buildLines(sourceType, in.ReturnItems, original, nil, plan)
		if err != nil {
			return err
		}
		doc := &entity.ReturnInvoice{
			ID:          id,
			SourceType:  sourceType,
			PartyName:   strings.TrimSpace(in.PartyName),
			ReturnItems: lines,
			VoucherNo:   strings.TrimSpace(in.VoucherNo),
			CompanyID:   companyID,
			UserID:      userID,
			CreatedAt:   now,
		}
		if doc.PartyName == "" && original != nil {
			doc.PartyName = original.PartyName
		}
		doc.SetOriginalInvoiceID(originalID)
		doc.TotalReturnAmount = totalAmount(lines)
		if err := tx.Set(collection, id, doc); err != nil {
			return err
		}
		if err := recordReturned(tx, original, nil, ledger.Quantities(newLines)); err != nil {
			return err
		}
		if err := plan.Apply(tx); err != nil {
			return err
		}
		ret = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("return_id", id).
		Str("source_type", string(sourceType)).
		Str("original_invoice_id", originalID).
		Str("total", ret.TotalReturnAmount.String()).
		Msg("devolución creada")
	e.publisher.Created(ctx, companyID, collection, id)
	e.publisher.Updated(ctx, companyID, append(
		originalRefs(sourceType, originalID),
		feed.Items(entity.CollectionItems, ledger.SortedIDs(deltas))...,
	)...)
	return toReturnResponse(ret), nil
}

// EditReturn reemplaza las líneas aplicando solo la diferencia contra la devolución guardada.
// La factura origen es la registrada al crear.
func (e *Engine) EditReturn(ctx context.Context, companyID, userID string, sourceType entity.InvoiceType, id string, in dto.EditReturnRequest) (*dto.ReturnResponse, error) {
	if !sourceType.Valid() {
		return nil, domain.NewValidation("sourceType", "tipo de devolución inválido")
	}
	if err := validateLines(in.ReturnItems); err != nil {
		return nil, err
	}
	if err := dto.Validate(in); err != nil {
		return nil, err
	}

	now := e.now()
	collection := sourceType.ReturnCollection()
	newLines := requestStockLines(in.ReturnItems)

	var ret *entity.ReturnInvoice
	var touched []string
	err := e.store.RunTransaction(ctx, func(tx repository.Tx) error {
		old, err := loadReturn(tx, companyID, sourceType, id)
		if err != nil {
			return err
		}
		original, err := loadOriginal(tx, companyID, sourceType, old.OriginalInvoiceID())
		if err != nil {
			return err
		}
		deltas := ledger.ComputeDelta(old.StockLines(), newLines, sourceType.ReturnStockSign())
		plan, err := e.stock.Plan(tx, companyID, deltas, lineIDs(in.ReturnItems)...)
		if err != nil {
			return err
		}
		oldQty := ledger.Quantities(old.StockLines())
		lines, err := buildLines(sourceType, in.ReturnItems, original, oldQty, plan)
		if err != nil {
			return err
		}
		doc := *old
		doc.ReturnItems = lines
		doc.TotalReturnAmount = totalAmount(lines)
		if in.PartyName != nil {
			doc.PartyName = strings.TrimSpace(*in.PartyName)
		}
		if in.VoucherNo != nil {
			doc.VoucherNo = strings.TrimSpace(*in.VoucherNo)
		}
		doc.UpdatedAt = &now
		if err := tx.Set(collection, id, &doc); err != nil {
			return err
		}
		if err := recordReturned(tx, original, oldQty, ledger.Quantities(newLines)); err != nil {
			return err
		}
		if err := plan.Apply(tx); err != nil {
			return err
		}
		ret = &doc
		touched = plan.ItemIDs()
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.log.Info().
		Str("return_id", id).
		Str("source_type", string(sourceType)).
		Strs("items_changed", touched).
		Str("user_id", userID).
		Msg("devolución editada")
	e.publisher.Updated(ctx, companyID, append(
		append([]feed.Ref{{Collection: collection, ID: id}}, originalRefs(sourceType, ret.OriginalInvoiceID())...),
		feed.Items(entity.CollectionItems, touched)...,
	)...)
	return toReturnResponse(ret), nil
}

// DeleteReturn revierte el delta registrado, descuenta sus unidades de la factura origen y borra
// la devolución. Si la factura origen ya no existe solo se borra la devolución.
func (e *Engine) DeleteReturn(ctx context.Context, companyID, userID string, sourceType entity.InvoiceType, id string) error {
	if !sourceType.Valid() {
		return domain.NewValidation("sourceType", "tipo de devolución inválido")
	}
	collection := sourceType.ReturnCollection()
	var touched []string
	var originalID string
	err := e.store.RunTransaction(ctx, func(tx repository.Tx) error {
		old, err := loadReturn(tx, companyID, sourceType, id)
		if err != nil {
			return err
		}
		original, err := loadOriginal(tx, companyID, sourceType, old.OriginalInvoiceID())
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		plan, err := e.stock.Plan(tx, companyID, ledger.ComputeDelta(old.StockLines(), nil, sourceType.ReturnStockSign()))
		if err != nil {
			return err
		}
		if err := tx.Delete(collection, id); err != nil {
			return err
		}
		if err := recordReturned(tx, original, ledger.Quantities(old.StockLines()), nil); err != nil {
			return err
		}
		if err := plan.Apply(tx); err != nil {
			return err
		}
		touched = plan.ItemIDs()
		if original != nil {
			originalID = original.ID
		}
		return nil
	})
	if err != nil {
		return err
	}

	e.log.Info().Str("return_id", id).Str("source_type", string(sourceType)).Str("user_id", userID).Msg("devolución eliminada")
	e.publisher.Deleted(ctx, companyID, collection, id)
	e.publisher.Updated(ctx, companyID, append(
		originalRefs(sourceType, originalID),
		feed.Items(entity.CollectionItems, touched)...,
	)...)
	return nil
}

// GetReturn lee una devolución.
func (e *Engine) GetReturn(ctx context.Context, companyID string, sourceType entity.InvoiceType, id string) (*dto.ReturnResponse, error) {
	if !sourceType.Valid() {
		return nil, domain.NewValidation("sourceType", "tipo de devolución inválido")
	}
	var ret entity.ReturnInvoice
	if err := e.store.Get(ctx, sourceType.ReturnCollection(), id, &ret); err != nil {
		return nil, err
	}
	if ret.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	ret.ID = id
	ret.SourceType = sourceType
	return toReturnResponse(&ret), nil
}

func loadReturn(tx repository.Tx, companyID string, sourceType entity.InvoiceType, id string) (*entity.ReturnInvoice, error) {
	var ret entity.ReturnInvoice
	if err := tx.Get(sourceType.ReturnCollection(), id, &ret); err != nil {
		return nil, err
	}
	if ret.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	ret.ID = id
	ret.SourceType = sourceType
	return &ret, nil
}

// loadOriginal lee la factura origen; nil sin error si la devolución es libre.
func loadOriginal(tx repository.Tx, companyID string, sourceType entity.InvoiceType, id string) (*entity.Invoice, error) {
	if id == "" {
		return nil, nil
	}
	var inv entity.Invoice
	if err := tx.Get(sourceType.Collection(), id, &inv); err != nil {
		return nil, err
	}
	if inv.CompanyID != companyID {
		return nil, domain.ErrForbidden
	}
	inv.ID = id
	inv.Type = sourceType
	return &inv, nil
}

// buildLines arma las líneas persistidas y aplica el tope contra la factura origen. except son las
// unidades de la devolución que se está editando, ya contadas en returnedItems.
func buildLines(sourceType entity.InvoiceType, lines []dto.ReturnLineRequest, original *entity.Invoice, except map[string]int64, plan *inventory.StockPlan) ([]entity.ReturnLine, error) {
	var originalQty map[string]int64
	originalLine := map[string]entity.InvoiceLine{}
	if original != nil {
		originalQty = ledger.Quantities(original.StockLines())
		for _, l := range original.Items {
			if _, ok := originalLine[l.ItemID]; !ok {
				originalLine[l.ItemID] = l
			}
		}
		returned := ledger.Quantities(requestStockLines(lines))
		for i, l := range lines {
			if _, ok := originalQty[l.OriginalItemID]; !ok {
				return nil, domain.NewValidation(lineField(i, "originalItemId"), "no está en la factura origen")
			}
			if limit := original.Returnable(l.OriginalItemID, except); returned[l.OriginalItemID] > limit {
				return nil, domain.NewValidation(lineField(i, "quantity"),
					"supera la cantidad pendiente de devolver en la factura origen ("+strconv.FormatInt(limit, 10)+")")
			}
		}
	}

	out := make([]entity.ReturnLine, 0, len(lines))
	for _, l := range lines {
		name := strings.TrimSpace(l.Name)
		var price decimal.Decimal
		if src, ok := originalLine[l.OriginalItemID]; ok {
			price = src.UnitPrice()
			if name == "" {
				name = src.Name
			}
		} else if l.UnitPrice != nil {
			price = *l.UnitPrice
		}
		if item := plan.Item(l.OriginalItemID); item != nil {
			if name == "" {
				name = item.Name
			}
			if original == nil && price.IsZero() {
				price = item.PriceFor(sourceType)
			}
		}
		if name == "" {
			name = defaultLineName
		}
		out = append(out, entity.ReturnLine{
			OriginalItemID: l.OriginalItemID,
			Name:           name,
			Quantity:       l.Quantity,
			UnitPrice:      price,
			Amount:         price.Mul(decimal.NewFromInt(l.Quantity)),
		})
	}
	return out, nil
}

// recordReturned actualiza returnedItems de la factura origen en la misma transacción.
func recordReturned(tx repository.Tx, original *entity.Invoice, remove, add map[string]int64) error {
	if original == nil {
		return nil
	}
	return tx.Update(original.Type.Collection(), original.ID, map[string]any{
		"returnedItems": original.ReturnedAfter(remove, add),
	})
}

func originalRefs(sourceType entity.InvoiceType, id string) []feed.Ref {
	if id == "" {
		return nil
	}
	return []feed.Ref{{Collection: sourceType.Collection(), ID: id}}
}

func totalAmount(lines []entity.ReturnLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Amount)
	}
	return total
}

func validateLines(lines []dto.ReturnLineRequest) error {
	for i, l := range lines {
		if l.UnitPrice != nil && l.UnitPrice.IsNegative() {
			return domain.NewValidation(lineField(i, "unitPrice"), "no puede ser negativo")
		}
	}
	return nil
}

func lineField(i int, name string) string {
	return "returnItems[" + strconv.Itoa(i) + "]." + name
}

func requestStockLines(lines []dto.ReturnLineRequest) []ledger.Line {
	out := make([]ledger.Line, 0, len(lines))
	for _, l := range lines {
		out = append(out, ledger.Line{ItemID: l.OriginalItemID, Quantity: l.Quantity})
	}
	return out
}

func lineIDs(lines []dto.ReturnLineRequest) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.OriginalItemID)
	}
	return out
}

func toReturnResponse(r *entity.ReturnInvoice) *dto.ReturnResponse {
	items := make([]dto.ReturnLineResponse, 0, len(r.ReturnItems))
	for _, l := range r.ReturnItems {
		items = append(items, dto.ReturnLineResponse{
			OriginalItemID: l.OriginalItemID,
			Name:           l.Name,
			Quantity:       l.Quantity,
			UnitPrice:      l.UnitPrice,
			Amount:         l.Amount,
		})
	}
	return &dto.ReturnResponse{
		ID:                r.ID,
		SourceType:        string(r.SourceType),
		PartyName:         r.PartyName,
		OriginalInvoiceID: r.OriginalInvoiceID(),
		VoucherNo:         r.VoucherNo,
		ReturnItems:       items,
		TotalReturnAmount: r.TotalReturnAmount,
		CreatedAt:         r.CreatedAt,
		UpdatedAt:         r.UpdatedAt,
	}
}
