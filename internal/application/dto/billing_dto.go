package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceLineRequest línea de venta o compra. UnitPrice nil toma el precio de catálogo
// (mrp en ventas, purchasePrice en compras). Name vacío toma el nombre del ítem.
type InvoiceLineRequest struct {
	ItemID    string           `json:"id" validate:"required"`
	Name      string           `json:"name"`
	Quantity  int64            `json:"quantity" validate:"gt=0"`
	UnitPrice *decimal.Decimal `json:"unitPrice,omitempty"`
}

// CreateInvoiceRequest cuerpo para crear una venta o compra.
// PaymentMethods incluye la clave "due" con el saldo pendiente.
type CreateInvoiceRequest struct {
	PartyName      string                     `json:"partyName"`
	PartyNumber    string                     `json:"partyNumber"`
	Items          []InvoiceLineRequest       `json:"items" validate:"required,min=1,dive"`
	PaymentMethods map[string]decimal.Decimal `json:"paymentMethods" validate:"required,min=1"`
}

// EditInvoiceRequest cuerpo para editar una factura. PaymentMethods nil conserva el estado de pago actual.
type EditInvoiceRequest struct {
	PartyName      *string                    `json:"partyName,omitempty"`
	PartyNumber    *string                    `json:"partyNumber,omitempty"`
	Items          []InvoiceLineRequest       `json:"items" validate:"required,min=1,dive"`
	PaymentMethods map[string]decimal.Decimal `json:"paymentMethods,omitempty"`
}

// SettlePaymentRequest abono sobre el saldo pendiente.
type SettlePaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Method string          `json:"method" validate:"required"`
}

// InvoiceLineResponse línea en respuestas.
type InvoiceLineResponse struct {
	ItemID    string          `json:"id"`
	Name      string          `json:"name"`
	Quantity  int64           `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Amount    decimal.Decimal `json:"amount"`
}

// InvoiceResponse factura con estado derivado.
type InvoiceResponse struct {
	ID             string                     `json:"id"`
	Type           string                     `json:"type"`
	PartyName      string                     `json:"partyName"`
	PartyNumber    string                     `json:"partyNumber,omitempty"`
	Items          []InvoiceLineResponse      `json:"items"`
	PaymentMethods map[string]decimal.Decimal `json:"paymentMethods"`
	TotalAmount    decimal.Decimal            `json:"totalAmount"`
	Due            decimal.Decimal            `json:"due"`
	Status         string                     `json:"status"`
	ReturnedItems  map[string]int64           `json:"returnedItems,omitempty"`
	CreatedAt      time.Time                  `json:"createdAt"`
	UpdatedAt      *time.Time                 `json:"updatedAt,omitempty"`
}
