package returns_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-ledger/internal/application/billing"
	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/application/returns"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/repository"
	"github.com/jhoicas/pos-ledger/internal/infrastructure/memory"
	"github.com/jhoicas/pos-ledger/pkg/logger"
)

const (
	companyA = "company-a"
	companyB = "company-b"
	userA    = "user-a"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store    *memory.DocumentStore
	invoices *billing.InvoiceEngine
	settle   *billing.PaymentSettlement
	returns  *returns.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.NewDocumentStore()
	l := inventory.NewLedger(false)
	pub := feed.NewPublisher(nil, logger.Nop())
	return &fixture{
		store:    s,
		invoices: billing.NewInvoiceEngine(s, l, pub, logger.Nop()),
		settle:   billing.NewPaymentSettlement(s, pub, logger.Nop()),
		returns:  returns.NewEngine(s, l, pub, logger.Nop()),
	}
}

func (f *fixture) seedItem(t *testing.T, id string, stock int64) {
	t.Helper()
	item := entity.Item{
		CompanyID:     companyA,
		Name:          "Ítem " + id,
		MRP:           dec("50"),
		PurchasePrice: dec("30"),
		Stock:         stock,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, f.store.RunTransaction(context.Background(), func(tx repository.Tx) error {
		return tx.Set(entity.CollectionItems, id, &item)
	}))
}

func (f *fixture) stock(t *testing.T, id string) int64 {
	t.Helper()
	var item entity.Item
	require.NoError(t, f.store.Get(context.Background(), entity.CollectionItems, id, &item))
	return item.Stock
}

func (f *fixture) sale(t *testing.T, itemID string, qty int64, price string) *dto.InvoiceResponse {
	t.Helper()
	p := dec(price)
	inv, err := f.invoices.CreateInvoice(context.Background(), companyA, userA, entity.InvoiceTypeCredit, dto.CreateInvoiceRequest{
		PartyName:      "Cliente",
		Items:          []dto.InvoiceLineRequest{{ItemID: itemID, Quantity: qty, UnitPrice: &p}},
		PaymentMethods: map[string]decimal.Decimal{"cash": dec("100"), "due": dec("50")},
	})
	require.NoError(t, err)
	return inv
}

func returnLines(itemID string, qty int64) []dto.ReturnLineRequest {
	return []dto.ReturnLineRequest{{OriginalItemID: itemID, Quantity: qty}}
}

// Recorrido completo: venta 3 (10 -> 7), abono, excedente rechazado, edición a 5 (-> 5),
// devolución de 2 (-> 7) y edición de la devolución a 4 (-> 5).
func TestEscenario_VentaAbonoEdicionDevolucion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	inv := f.sale(t, "x", 3, "50")
	assert.Equal(t, int64(7), f.stock(t, "x"))
	assert.Equal(t, "Unpaid", inv.Status)

	paid, err := f.settle.SettlePayment(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID, dto.SettlePaymentRequest{Amount: dec("50"), Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, "Paid", paid.Status)
	_, err = f.settle.SettlePayment(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID, dto.SettlePaymentRequest{Amount: dec("10"), Method: "cash"})
	assert.ErrorIs(t, err, domain.ErrExcessPayment)
	assert.Equal(t, int64(7), f.stock(t, "x"))

	_, err = f.invoices.EditInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID, dto.EditInvoiceRequest{
		Items: []dto.InvoiceLineRequest{{ItemID: "x", Quantity: 5}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.stock(t, "x"))

	ret, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{
		OriginalInvoiceID: inv.ID,
		ReturnItems:       returnLines("x", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.stock(t, "x"))
	assert.Equal(t, inv.ID, ret.OriginalInvoiceID)
	assert.Equal(t, "Cliente", ret.PartyName, "partyName vacío toma el de la factura origen")

	edited, err := f.returns.EditReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, ret.ID, dto.EditReturnRequest{
		ReturnItems: returnLines("x", 4),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.stock(t, "x"))
	assert.True(t, edited.TotalReturnAmount.Equal(dec("200")), "4 × 50")
}

// q1 -> q2 -> q3 deja el mismo stock que crear directamente con q3.
func TestDevolucion_EdicionesIndependientesDelCamino(t *testing.T) {
	ctx := context.Background()

	direct := newFixture(t)
	direct.seedItem(t, "x", 10)
	_, err := direct.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{ReturnItems: returnLines("x", 3)})
	require.NoError(t, err)

	edited := newFixture(t)
	edited.seedItem(t, "x", 10)
	ret, err := edited.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{ReturnItems: returnLines("x", 1)})
	require.NoError(t, err)
	for _, q := range []int64{6, 3} {
		_, err := edited.returns.EditReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, ret.ID, dto.EditReturnRequest{ReturnItems: returnLines("x", q)})
		require.NoError(t, err)
	}

	assert.Equal(t, direct.stock(t, "x"), edited.stock(t, "x"))
	assert.Equal(t, int64(13), edited.stock(t, "x"))
}

func TestDevolucion_TopeYPrecioDeLaFacturaOrigen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)
	f.seedItem(t, "y", 10)
	inv := f.sale(t, "x", 3, "42.50")

	_, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{
		OriginalInvoiceID: inv.ID, ReturnItems: returnLines("x", 4),
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "returnItems[0].quantity", ve.Field)

	_, err = f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{
		OriginalInvoiceID: inv.ID, ReturnItems: returnLines("y", 1),
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "returnItems[0].originalItemId", ve.Field)
	assert.Equal(t, int64(10), f.stock(t, "y"))

	other := dec("1")
	ret, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{
		OriginalInvoiceID: inv.ID,
		ReturnItems:       []dto.ReturnLineRequest{{OriginalItemID: "x", Quantity: 2, UnitPrice: &other}},
	})
	require.NoError(t, err)
	assert.True(t, ret.ReturnItems[0].UnitPrice.Equal(dec("42.50")), "el precio se copia de la factura origen")
	assert.True(t, ret.TotalReturnAmount.Equal(dec("85")))

	// Editar por encima de la factura origen también se rechaza y no mueve stock.
	_, err = f.returns.EditReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, ret.ID, dto.EditReturnRequest{ReturnItems: returnLines("x", 5)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, int64(9), f.stock(t, "x"))

	_, err = f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{
		OriginalInvoiceID: "ghost", ReturnItems: returnLines("x", 1),
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDevolucionLibre_PrecioDeCatalogoSegunTipo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	sr, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{ReturnItems: returnLines("x", 2)})
	require.NoError(t, err)
	assert.True(t, sr.ReturnItems[0].UnitPrice.Equal(dec("50")), "devolución de venta usa mrp")
	assert.Equal(t, "Ítem x", sr.ReturnItems[0].Name)
	assert.Equal(t, int64(12), f.stock(t, "x"))

	pr, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeDebit, dto.CreateReturnRequest{ReturnItems: returnLines("x", 3)})
	require.NoError(t, err)
	assert.True(t, pr.ReturnItems[0].UnitPrice.Equal(dec("30")), "devolución de compra usa purchasePrice")
	assert.True(t, pr.TotalReturnAmount.Equal(dec("90")))
	assert.Equal(t, int64(9), f.stock(t, "x"))

	var stored entity.ReturnInvoice
	require.NoError(t, f.store.Get(ctx, entity.CollectionPurchaseReturns, pr.ID, &stored))
	assert.Empty(t, stored.OriginalPurchaseID)
}

func TestDevolucionDeCompra_StockInsuficiente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 1)
	_, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeDebit, dto.CreateReturnRequest{ReturnItems: returnLines("x", 2)})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(1), f.stock(t, "x"))
}

func TestDevolucion_BorrarRevierte(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)
	ret, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{ReturnItems: returnLines("x", 4)})
	require.NoError(t, err)
	assert.Equal(t, int64(14), f.stock(t, "x"))

	assert.ErrorIs(t, f.returns.DeleteReturn(ctx, companyB, userA, entity.InvoiceTypeCredit, ret.ID), domain.ErrForbidden)
	require.NoError(t, f.returns.DeleteReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, ret.ID))
	assert.Equal(t, int64(10), f.stock(t, "x"))

	_, err = f.returns.GetReturn(ctx, companyA, entity.InvoiceTypeCredit, ret.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Varias devoluciones contra la misma venta no devuelven en total más de lo vendido.
func TestDevolucion_TopeAcumuladoEntreDevoluciones(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)
	inv := f.sale(t, "x", 3, "50")

	first, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{
		OriginalInvoiceID: inv.ID, ReturnItems: returnLines("x", 2),
	})
	require.NoError(t, err)

	_, err = f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{
		OriginalInvoiceID: inv.ID, ReturnItems: returnLines("x", 2),
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "returnItems[0].quantity", ve.Field)
	assert.Contains(t, ve.Reason, "(1)")
	assert.Equal(t, int64(9), f.stock(t, "x"))

	second, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{
		OriginalInvoiceID: inv.ID, ReturnItems: returnLines("x", 1),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(10), f.stock(t, "x"))

	got, err := f.invoices.GetInvoice(ctx, companyA, entity.InvoiceTypeCredit, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"x": 3}, got.ReturnedItems)

	// La edición descuenta sus propias unidades: 2 -> 3 supera lo pendiente, 2 -> 1 no.
	_, err = f.returns.EditReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, first.ID, dto.EditReturnRequest{ReturnItems: returnLines("x", 3)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.returns.EditReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, first.ID, dto.EditReturnRequest{ReturnItems: returnLines("x", 1)})
	require.NoError(t, err)
	assert.Equal(t, int64(9), f.stock(t, "x"))

	require.NoError(t, f.returns.DeleteReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, second.ID))
	got, err = f.invoices.GetInvoice(ctx, companyA, entity.InvoiceTypeCredit, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"x": 1}, got.ReturnedItems)
	assert.Equal(t, int64(8), f.stock(t, "x"))
}

// Venta 5 (10 -> 5), devolución 2 (-> 7): la venta no se borra ni baja de 2 mientras la devolución exista.
func TestVenta_ConDevolucionesNoSeBorra(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)
	inv := f.sale(t, "x", 5, "50")

	ret, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{
		OriginalInvoiceID: inv.ID, ReturnItems: returnLines("x", 2),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.stock(t, "x"))

	err = f.invoices.DeleteInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID)
	assert.ErrorIs(t, err, domain.ErrHasReturns)
	assert.Equal(t, int64(7), f.stock(t, "x"))

	_, err = f.invoices.EditInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID, dto.EditInvoiceRequest{
		Items: []dto.InvoiceLineRequest{{ItemID: "x", Quantity: 1}},
	})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items", ve.Field)
	assert.Equal(t, int64(7), f.stock(t, "x"))

	// Editar la venta conserva returnedItems.
	_, err = f.invoices.EditInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID, dto.EditInvoiceRequest{
		Items: []dto.InvoiceLineRequest{{ItemID: "x", Quantity: 4}},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(8), f.stock(t, "x"))
	assert.ErrorIs(t, f.invoices.DeleteInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID), domain.ErrHasReturns)

	require.NoError(t, f.returns.DeleteReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, ret.ID))
	assert.Equal(t, int64(6), f.stock(t, "x"))
	require.NoError(t, f.invoices.DeleteInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID))
	assert.Equal(t, int64(10), f.stock(t, "x"))
}

func TestDevolucion_Validacion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceTypeCredit, dto.CreateReturnRequest{ReturnItems: returnLines("x", 0)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	_, err = f.returns.CreateReturn(ctx, companyA, userA, entity.InvoiceType(""), dto.CreateReturnRequest{ReturnItems: returnLines("x", 1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
