package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateItemRequest alta de un ítem de catálogo.
type CreateItemRequest struct {
	Name            string          `json:"name" validate:"required"`
	MRP             decimal.Decimal `json:"mrp"`
	PurchasePrice   decimal.Decimal `json:"purchasePrice"`
	TaxRate         decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Stock           int64           `json:"stock" validate:"gte=0"`
	RestockQuantity int64           `json:"restockQuantity" validate:"gte=0"`
	ItemGroupID     string          `json:"itemGroupId"`
	IsListed        bool            `json:"isListed"`
	Barcode         string          `json:"barcode"`
	ImageURL        string          `json:"imageUrl"`
}

// AdjustStockRequest ajuste manual de stock; Delta distinto de cero.
type AdjustStockRequest struct {
	Delta  int64  `json:"delta" validate:"required"`
	Reason string `json:"reason"`
}

// ItemResponse ítem con alerta de reposición.
type ItemResponse struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	MRP             decimal.Decimal `json:"mrp"`
	PurchasePrice   decimal.Decimal `json:"purchasePrice"`
	TaxRate         decimal.Decimal `json:"tax"`
	Discount        decimal.Decimal `json:"discount"`
	Stock           int64           `json:"stock"`
	RestockQuantity int64           `json:"restockQuantity"`
	NeedsRestock    bool            `json:"needsRestock"`
	ItemGroupID     string          `json:"itemGroupId"`
	IsListed        bool            `json:"isListed"`
	Barcode         string          `json:"barcode,omitempty"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// StockAdjustmentResponse ajuste aplicado.
type StockAdjustmentResponse struct {
	ID         string    `json:"id"`
	ItemID     string    `json:"itemId"`
	Delta      int64     `json:"delta"`
	StockAfter int64     `json:"stockAfter"`
	Reason     string    `json:"reason,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}
