package entity

import (
	"time"

	"github.com/jhoicas/pos-ledger/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

// ReturnLine línea de devolución; Amount = Quantity × UnitPrice.
type ReturnLine struct {
	OriginalItemID string          `json:"originalItemId"`
	Name           string          `json:"name"`
	Quantity       int64           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Amount         decimal.Decimal `json:"amount"`
}

// ReturnInvoice devolución de venta (salesReturns/{id}) o de compra (purchaseReturns/{id}).
// SourceType es el tipo de la factura que se revierte.
type ReturnInvoice struct {
	ID                 string          `json:"-"`
	SourceType         InvoiceType     `json:"-"`
	PartyName          string          `json:"partyName"`
	ReturnItems        []ReturnLine    `json:"returnItems"`
	TotalReturnAmount  decimal.Decimal `json:"totalReturnAmount"`
	OriginalSaleID     string          `json:"originalSaleId,omitempty"`
	OriginalPurchaseID string          `json:"originalPurchaseId,omitempty"`
	VoucherNo          string          `json:"voucherNo,omitempty"`
	CompanyID          string          `json:"companyId"`
	UserID             string          `json:"userId"`
	CreatedAt          time.Time       `json:"createdAt"`
	UpdatedAt          *time.Time      `json:"updatedAt,omitempty"`
}

// OriginalInvoiceID factura origen según el tipo (vacío si la devolución es libre).
func (r *ReturnInvoice) OriginalInvoiceID() string {
	if r.SourceType == InvoiceTypeDebit {
		return r.OriginalPurchaseID
	}
	return r.OriginalSaleID
}

// SetOriginalInvoiceID guarda la referencia en originalSaleId u originalPurchaseId.
func (r *ReturnInvoice) SetOriginalInvoiceID(id string) {
	if r.SourceType == InvoiceTypeDebit {
		r.OriginalPurchaseID = id
		r.OriginalSaleID = ""
		return
	}
	r.OriginalSaleID = id
	r.OriginalPurchaseID = ""
}

// StockLines vista de las líneas para el cálculo de deltas.
func (r *ReturnInvoice) StockLines() []ledger.Line {
	lines := make([]ledger.Line, 0, len(r.ReturnItems))
	for _, l := range r.ReturnItems {
		lines = append(lines, ledger.Line{ItemID: l.OriginalItemID, Quantity: l.Quantity})
	}
	return lines
}
