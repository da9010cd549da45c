package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest pedido de cliente; inicia en Upcoming.
type CreateOrderRequest struct {
	CustomerName   string               `json:"customerName" validate:"required"`
	CustomerNumber string               `json:"customerNumber"`
	Items          []InvoiceLineRequest `json:"items" validate:"dive"`
	TotalAmount    decimal.Decimal      `json:"totalAmount"`
}

// OrderResponse pedido con su etapa actual.
type OrderResponse struct {
	ID              string          `json:"id"`
	CustomerName    string          `json:"customerName"`
	CustomerNumber  string          `json:"customerNumber,omitempty"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"`
	StatusUpdatedAt time.Time       `json:"statusUpdatedAt"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// AdvanceOrderResponse resultado de avanzar un pedido. Advanced=false si ya estaba en la última etapa.
type AdvanceOrderResponse struct {
	Order    OrderResponse `json:"order"`
	Advanced bool          `json:"advanced"`
}
