package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReturnLineRequest ítem devuelto. Con factura origen el precio se copia de ella;
// sin factura origen UnitPrice nil toma el precio de catálogo.
type ReturnLineRequest struct {
	OriginalItemID string           `json:"originalItemId" validate:"required"`
	Name           string           `json:"name"`
	Quantity       int64            `json:"quantity" validate:"gt=0"`
	UnitPrice      *decimal.Decimal `json:"unitPrice,omitempty"`
}

// CreateReturnRequest cuerpo para crear una devolución de venta o compra.
type CreateReturnRequest struct {
	PartyName         string              `json:"partyName"`
	OriginalInvoiceID string              `json:"originalInvoiceId"`
	VoucherNo         string              `json:"voucherNo"`
	ReturnItems       []ReturnLineRequest `json:"returnItems" validate:"required,min=1,dive"`
}

// EditReturnRequest reemplaza las líneas de la devolución; la factura origen no cambia.
type EditReturnRequest struct {
	PartyName   *string             `json:"partyName,omitempty"`
	VoucherNo   *string             `json:"voucherNo,omitempty"`
	ReturnItems []ReturnLineRequest `json:"returnItems" validate:"required,min=1,dive"`
}

// ReturnLineResponse línea de devolución en respuestas.
type ReturnLineResponse struct {
	OriginalItemID string          `json:"originalItemId"`
	Name           string          `json:"name"`
	Quantity       int64           `json:"quantity"`
	UnitPrice      decimal.Decimal `json:"unitPrice"`
	Amount         decimal.Decimal `json:"amount"`
}

// ReturnResponse devolución.
type ReturnResponse struct {
	ID                string               `json:"id"`
	SourceType        string               `json:"sourceType"`
	PartyName         string               `json:"partyName"`
	OriginalInvoiceID string               `json:"originalInvoiceId,omitempty"`
	VoucherNo         string               `json:"voucherNo,omitempty"`
	ReturnItems       []ReturnLineResponse `json:"returnItems"`
	TotalReturnAmount decimal.Decimal      `json:"totalReturnAmount"`
	CreatedAt         time.Time            `json:"createdAt"`
	UpdatedAt         *time.Time           `json:"updatedAt,omitempty"`
}
