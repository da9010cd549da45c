package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionOrders colección de pedidos de clientes.
const CollectionOrders = "orders"

// Order pedido de cliente que avanza por las etapas de ledger.OrderStages.
type Order struct {
	ID              string          `json:"-"`
	CustomerName    string          `json:"customerName"`
	CustomerNumber  string          `json:"customerNumber,omitempty"`
	Items           []InvoiceLine   `json:"items,omitempty"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Status          string          `json:"status"`
	StatusUpdatedAt time.Time       `json:"statusUpdatedAt"`
	CompanyID       string          `json:"companyId"`
	UserID          string          `json:"userId"`
	CreatedAt       time.Time       `json:"createdAt"`
}
