package entity

import "time"

// CollectionStockAdjustments registro de ajustes manuales de stock.
const CollectionStockAdjustments = "stockAdjustments"

// StockAdjustment ajuste manual (conteo físico, merma, etc.). Delta positivo suma, negativo resta.
type StockAdjustment struct {
	ID         string    `json:"-"`
	ItemID     string    `json:"itemId"`
	Delta      int64     `json:"delta"`
	StockAfter int64     `json:"stockAfter"`
	Reason     string    `json:"reason,omitempty"`
	CompanyID  string    `json:"companyId"`
	UserID     string    `json:"userId"`
	CreatedAt  time.Time `json:"createdAt"`
}
