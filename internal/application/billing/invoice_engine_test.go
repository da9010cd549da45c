package billing_test

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/pos-ledger/internal/application/billing"
	"github.com/jhoicas/pos-ledger/internal/application/dto"
	"github.com/jhoicas/pos-ledger/internal/application/feed"
	"github.com/jhoicas/pos-ledger/internal/application/inventory"
	"github.com/jhoicas/pos-ledger/internal/domain"
	"github.com/jhoicas/pos-ledger/internal/domain/entity"
	"github.com/jhoicas/pos-ledger/internal/domain/ledger"
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
	store      *memory.DocumentStore
	engine     *billing.InvoiceEngine
	settlement *billing.PaymentSettlement
}

func newFixture(t *testing.T, opts ...memory.Option) *fixture {
	t.Helper()
	s := memory.NewDocumentStore(opts...)
	pub := feed.NewPublisher(nil, logger.Nop())
	return &fixture{
		store:      s,
		engine:     billing.NewInvoiceEngine(s, inventory.NewLedger(false), pub, logger.Nop()),
		settlement: billing.NewPaymentSettlement(s, pub, logger.Nop()),
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

func saleRequest(itemID string, qty int64, payment map[string]string) dto.CreateInvoiceRequest {
	pm := make(map[string]decimal.Decimal, len(payment))
	for k, v := range payment {
		pm[k] = dec(v)
	}
	return dto.CreateInvoiceRequest{
		PartyName:      "Cliente",
		Items:          []dto.InvoiceLineRequest{{ItemID: itemID, Quantity: qty}},
		PaymentMethods: pm,
	}
}

func editLines(pairs ...any) []dto.InvoiceLineRequest {
	var out []dto.InvoiceLineRequest
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, dto.InvoiceLineRequest{ItemID: pairs[i].(string), Quantity: int64(pairs[i+1].(int))})
	}
	return out
}

// Venta de 3 con {cash:100, due:50}: stock 10 -> 7, Unpaid; abono de 50 -> Paid;
// abono extra de 10 -> ExcessPaymentError sin cambios.
func TestVenta_CrearAbonarExcedente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	inv, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit,
		saleRequest("x", 3, map[string]string{"cash": "100", "due": "50"}))
	require.NoError(t, err)
	assert.Equal(t, int64(7), f.stock(t, "x"))
	assert.Equal(t, string(ledger.StatusUnpaid), inv.Status)
	assert.True(t, inv.TotalAmount.Equal(dec("150")))
	assert.True(t, inv.Due.Equal(dec("50")))

	paid, err := f.settlement.SettlePayment(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID,
		dto.SettlePaymentRequest{Amount: dec("50"), Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, string(ledger.StatusPaid), paid.Status)
	assert.True(t, paid.Due.IsZero())
	assert.True(t, paid.PaymentMethods["cash"].Equal(dec("150")))
	assert.True(t, paid.TotalAmount.Equal(dec("150")), "el abono no cambia el total")

	_, err = f.settlement.SettlePayment(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID,
		dto.SettlePaymentRequest{Amount: dec("10"), Method: "cash"})
	require.Error(t, err)
	var excess *domain.ExcessPaymentError
	require.True(t, errors.As(err, &excess))
	assert.True(t, excess.Due.IsZero())

	got, err := f.engine.GetInvoice(ctx, companyA, entity.InvoiceTypeCredit, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Due.IsZero())
	assert.True(t, got.PaymentMethods["cash"].Equal(dec("150")))
	assert.Equal(t, int64(7), f.stock(t, "x"))
}

// Editar la venta de 3 a 5 aplica solo -2.
func TestVenta_EditarAplicaDiferencia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	inv, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit,
		saleRequest("x", 3, map[string]string{"cash": "150", "due": "0"}))
	require.NoError(t, err)

	edited, err := f.engine.EditInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID,
		dto.EditInvoiceRequest{Items: editLines("x", 5)})
	require.NoError(t, err)
	assert.Equal(t, int64(5), f.stock(t, "x"))
	require.Len(t, edited.Items, 1)
	assert.Equal(t, int64(5), edited.Items[0].Quantity)
	assert.NotNil(t, edited.UpdatedAt)
	assert.Equal(t, string(ledger.StatusPaid), edited.Status, "sin paymentMethods se conserva el estado de pago")
}

func TestVenta_EditarReemplazaPagos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	inv, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit,
		saleRequest("x", 1, map[string]string{"cash": "50"}))
	require.NoError(t, err)
	assert.Equal(t, string(ledger.StatusPaid), inv.Status)

	edited, err := f.engine.EditInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID, dto.EditInvoiceRequest{
		Items:          editLines("x", 2),
		PaymentMethods: map[string]decimal.Decimal{"cash": dec("50"), "due": dec("50")},
	})
	require.NoError(t, err)
	assert.Equal(t, string(ledger.StatusUnpaid), edited.Status)
	assert.True(t, edited.TotalAmount.Equal(dec("100")))

	_, err = f.engine.EditInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID, dto.EditInvoiceRequest{
		Items:          editLines("x", 2),
		PaymentMethods: map[string]decimal.Decimal{"due": dec("-1")},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVenta_EditarConPagosVacioNoLiquida(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	inv, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit,
		saleRequest("x", 3, map[string]string{"cash": "100", "due": "50"}))
	require.NoError(t, err)

	// "paymentMethods": {} llega como mapa vacío no nil.
	_, err = f.engine.EditInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID, dto.EditInvoiceRequest{
		Items:          editLines("x", 3),
		PaymentMethods: map[string]decimal.Decimal{},
	})
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "paymentMethods", verr.Field)

	got, err := f.engine.GetInvoice(ctx, companyA, entity.InvoiceTypeCredit, inv.ID)
	require.NoError(t, err)
	assert.True(t, got.Due.Equal(dec("50")))
	assert.True(t, got.TotalAmount.Equal(dec("150")))
	assert.Equal(t, string(ledger.StatusUnpaid), got.Status)
	assert.Equal(t, int64(7), f.stock(t, "x"))
}

func TestVenta_EditarCambiaItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "a", 10)
	f.seedItem(t, "b", 10)
	f.seedItem(t, "c", 10)

	req := saleRequest("a", 2, map[string]string{"cash": "1"})
	req.Items = append(req.Items, dto.InvoiceLineRequest{ItemID: "b", Quantity: 3})
	inv, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, req)
	require.NoError(t, err)

	// a sin cambio, b removido (revierte 3), c agregado (descuenta 4).
	_, err = f.engine.EditInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID,
		dto.EditInvoiceRequest{Items: editLines("a", 2, "c", 4)})
	require.NoError(t, err)
	assert.Equal(t, int64(8), f.stock(t, "a"))
	assert.Equal(t, int64(10), f.stock(t, "b"))
	assert.Equal(t, int64(6), f.stock(t, "c"))
}

func TestVenta_BorrarRevierteStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	inv, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit,
		saleRequest("x", 4, map[string]string{"due": "200"}))
	require.NoError(t, err)
	assert.Equal(t, int64(6), f.stock(t, "x"))

	require.NoError(t, f.engine.DeleteInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID))
	assert.Equal(t, int64(10), f.stock(t, "x"))

	_, err = f.engine.GetInvoice(ctx, companyA, entity.InvoiceTypeCredit, inv.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, f.engine.DeleteInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID), domain.ErrNotFound)
}

func TestCompra_SumaStockYUsaPrecioDeCompra(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 1)

	req := saleRequest("x", 5, map[string]string{"bank": "150"})
	req.PartyName = "Proveedor"
	inv, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeDebit, req)
	require.NoError(t, err)
	assert.Equal(t, int64(6), f.stock(t, "x"))
	assert.Equal(t, string(entity.InvoiceTypeDebit), inv.Type)
	require.Len(t, inv.Items, 1)
	assert.True(t, inv.Items[0].UnitPrice.Equal(dec("30")), "precio omitido toma purchasePrice")
	assert.Equal(t, "Ítem x", inv.Items[0].Name, "nombre omitido toma el del ítem")

	var stored entity.Invoice
	require.NoError(t, f.store.Get(ctx, entity.CollectionPurchases, inv.ID, &stored))
	require.NotNil(t, stored.Items[0].PurchasePrice)
	assert.Nil(t, stored.Items[0].MRP)

	// La venta usa mrp.
	sale, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, saleRequest("x", 1, map[string]string{"cash": "50"}))
	require.NoError(t, err)
	assert.True(t, sale.Items[0].UnitPrice.Equal(dec("50")))
}

func TestVenta_StockInsuficienteNoEscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 2)

	_, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit,
		saleRequest("x", 3, map[string]string{"cash": "1"}))
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(2), f.stock(t, "x"))
}

func TestVenta_ItemAusenteAborta(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	req := saleRequest("x", 1, map[string]string{"cash": "1"})
	req.Items = append(req.Items, dto.InvoiceLineRequest{ItemID: "ghost", Quantity: 1})
	_, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, req)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, int64(10), f.stock(t, "x"))
}

func TestVenta_Validacion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	cases := []struct {
		name string
		req  dto.CreateInvoiceRequest
	}{
		{"sin líneas", dto.CreateInvoiceRequest{PaymentMethods: map[string]decimal.Decimal{"cash": dec("1")}}},
		{"cantidad cero", saleRequest("x", 0, map[string]string{"cash": "1"})},
		{"sin pagos", dto.CreateInvoiceRequest{Items: editLines("x", 1)}},
		{"due negativo", saleRequest("x", 1, map[string]string{"due": "-5"})},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, c.req)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}

	neg := dec("-1")
	req := saleRequest("x", 1, map[string]string{"cash": "1"})
	req.Items[0].UnitPrice = &neg
	_, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, req)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "items[0].unitPrice", ve.Field)

	_, err = f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceType("Other"), saleRequest("x", 1, map[string]string{"cash": "1"}))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, int64(10), f.stock(t, "x"))
}

func TestVenta_OtraEmpresaProhibido(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.seedItem(t, "x", 10)

	inv, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, saleRequest("x", 1, map[string]string{"cash": "1"}))
	require.NoError(t, err)

	_, err = f.engine.GetInvoice(ctx, companyB, entity.InvoiceTypeCredit, inv.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.engine.EditInvoice(ctx, companyB, userA, entity.InvoiceTypeCredit, inv.ID, dto.EditInvoiceRequest{Items: editLines("x", 2)})
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.ErrorIs(t, f.engine.DeleteInvoice(ctx, companyB, userA, entity.InvoiceTypeCredit, inv.ID), domain.ErrForbidden)
	_, err = f.engine.CreateInvoice(ctx, companyB, userA, entity.InvoiceTypeCredit, saleRequest("x", 1, map[string]string{"cash": "1"}))
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, int64(9), f.stock(t, "x"))
}

// Tras cualquier secuencia de crear/editar, el delta neto es el del estado final; borrar deja cero.
func TestVenta_DeltaNetoIgualAlEstadoFinal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		f.seedItem(t, id, 1000)
	}
	rnd := rand.New(rand.NewSource(7))
	randomLines := func() []dto.InvoiceLineRequest {
		var out []dto.InvoiceLineRequest
		for _, id := range ids {
			if rnd.Intn(3) == 0 {
				continue
			}
			out = append(out, dto.InvoiceLineRequest{ItemID: id, Quantity: int64(1 + rnd.Intn(9))})
		}
		if len(out) == 0 {
			out = append(out, dto.InvoiceLineRequest{ItemID: "a", Quantity: 1})
		}
		return out
	}

	first := randomLines()
	inv, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit,
		dto.CreateInvoiceRequest{Items: first, PaymentMethods: map[string]decimal.Decimal{"cash": dec("1")}})
	require.NoError(t, err)

	final := first
	for i := 0; i < 20; i++ {
		final = randomLines()
		_, err := f.engine.EditInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID, dto.EditInvoiceRequest{Items: final})
		require.NoError(t, err)
	}
	want := map[string]int64{}
	for _, l := range final {
		want[l.ItemID] += l.Quantity
	}
	for _, id := range ids {
		assert.Equal(t, 1000-want[id], f.stock(t, id), "ítem %s", id)
	}

	require.NoError(t, f.engine.DeleteInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit, inv.ID))
	for _, id := range ids {
		assert.Equal(t, int64(1000), f.stock(t, id), "ítem %s", id)
	}
}

// Ventas concurrentes sobre el mismo ítem: ninguna se pierde y el stock nunca queda negativo.
func TestVenta_ConcurrenciaSinVentasPerdidas(t *testing.T) {
	f := newFixture(t, memory.WithMaxAttempts(200), memory.WithBackoff(0))
	ctx := context.Background()
	f.seedItem(t, "x", 20)

	const n = 30
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, insufficient := 0, 0
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.CreateInvoice(ctx, companyA, userA, entity.InvoiceTypeCredit,
				saleRequest("x", 1, map[string]string{"cash": "50"}))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrInsufficientStock):
				insufficient++
			default:
				t.Errorf("error inesperado: %v", err)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, ok)
	assert.Equal(t, 10, insufficient)
	assert.Equal(t, int64(0), f.stock(t, "x"))
}
