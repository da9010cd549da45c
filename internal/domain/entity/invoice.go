package entity

import (
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// InvoiceType tipo de factura: Credit = venta, Debit = compra.
type InvoiceType string

const (
	InvoiceTypeCredit InvoiceType = "Credit"
	InvoiceTypeDebit  InvoiceType = "Debit"
)

// Colecciones de facturas y devoluciones.
const (
	CollectionSales           = "sales"
	CollectionPurchases       = "purchases"
	CollectionSalesReturns    = "salesReturns"
	CollectionPurchaseReturns = "purchaseReturns"
)

// Valid indica si el tipo es Credit o Debit.
func (t InvoiceType) Valid() bool {
	return t == InvoiceTypeCredit || t == InvoiceTypeDebit
}

// Collection colección donde se guardan las facturas de este tipo.
func (t InvoiceType) Collection() string {
	if t == InvoiceTypeDebit {
		return CollectionPurchases
	}
	return CollectionSales
}

// ReturnCollection colección de las devoluciones de este tipo.
func (t InvoiceType) ReturnCollection() string {
	if t == InvoiceTypeDebit {
		return CollectionPurchaseReturns
	}
	return CollectionSalesReturns
}

// StockSign efecto de la factura sobre el stock: la venta descuenta, la compra suma.
func (t InvoiceType) StockSign() ledger.Sign {
	if t == InvoiceTypeDebit {
		return ledger.Increase
	}
	return ledger.Decrease
}

// ReturnStockSign efecto de una devolución: opuesto al de la factura que revierte.
func (t InvoiceType) ReturnStockSign() ledger.Sign {
	return t.StockSign().Reverse()
}

// InvoiceLine línea persistida. El precio unitario va en "mrp" (venta) o "purchasePrice" (compra).
type InvoiceLine struct {
	ItemID        string           `json:"id"`
	Name          string           `json:"name"`
	Quantity      int64            `json:"quantity"`
	MRP           *decimal.Decimal `json:"mrp,omitempty"`
	PurchasePrice *decimal.Decimal `json:"purchasePrice,omitempty"`
}

// UnitPrice precio unitario registrado en la línea.
func (l InvoiceLine) UnitPrice() decimal.Decimal {
	if l.MRP != nil {
		return *l.MRP
	}
	if l.PurchasePrice != nil {
		return *l.PurchasePrice
	}
	return decimal.Zero
}

// Invoice documento de venta (sales/{id}) o compra (purchases/{id}).
// El estado Paid/Unpaid no se guarda: se deriva de paymentMethods.due en cada lectura.
type Invoice struct {
	ID             string                     `json:"-"`
	Type           InvoiceType                `json:"-"`
	PartyName      string                     `json:"partyName"`
	PartyNumber    string                     `json:"partyNumber,omitempty"`
	Items          []InvoiceLine              `json:"items"`
	PaymentMethods map[string]decimal.Decimal `json:"paymentMethods"`
	TotalAmount    decimal.Decimal            `json:"totalAmount"`
	ReturnedItems  map[string]int64           `json:"returnedItems,omitempty"`
	CompanyID      string                     `json:"companyId"`
	UserID         string                     `json:"userId"`
	CreatedAt      time.Time                  `json:"createdAt"`
	UpdatedAt      *time.Time                 `json:"updatedAt,omitempty"`
}

// StockLines vista de las líneas para el cálculo de deltas.
func (inv *Invoice) StockLines() []ledger.Line {
	lines := make([]ledger.Line, 0, len(inv.Items))
	for _, l := range inv.Items {
		lines = append(lines, ledger.Line{ItemID: l.ItemID, Quantity: l.Quantity})
	}
	return lines
}

// Payment estado de pago tipado a partir de paymentMethods.
func (inv *Invoice) Payment() ledger.PaymentState {
	return ledger.NewPaymentState(inv.PaymentMethods)
}

// SetPayment reemplaza paymentMethods y recalcula totalAmount en la misma escritura.
func (inv *Invoice) SetPayment(p ledger.PaymentState) {
	inv.PaymentMethods = p.Map()
	inv.TotalAmount = p.Total()
}

// Status Paid si due == 0, Unpaid si due > 0.
func (inv *Invoice) Status() ledger.Status {
	return inv.Payment().Status()
}

// HasReturns indica si alguna devolución enlazada sigue registrada contra la factura.
func (inv *Invoice) HasReturns() bool {
	for _, q := range inv.ReturnedItems {
		if q > 0 {
			return true
		}
	}
	return false
}

// Returnable cantidad de itemID que aún puede devolverse, sin contar las unidades de except.
func (inv *Invoice) Returnable(itemID string, except map[string]int64) int64 {
	sold := ledger.Quantities(inv.StockLines())[itemID]
	already := inv.ReturnedItems[itemID] - except[itemID]
	if already < 0 {
		already = 0
	}
	return sold - already
}

// ReturnedAfter cantidades devueltas tras quitar remove y sumar add; omite los ceros.
func (inv *Invoice) ReturnedAfter(remove, add map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(inv.ReturnedItems)+len(add))
	for id, q := range inv.ReturnedItems {
		out[id] = q - remove[id]
	}
	for id, q := range add {
		out[id] += q
	}
	for id, q := range out {
		if q <= 0 {
			delete(out, id)
		}
	}
	return out
}
