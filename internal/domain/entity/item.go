package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// CollectionItems colección del catálogo de ítems.
const CollectionItems = "items"

// Item representa un SKU del catálogo. Stock solo se modifica con incrementos atómicos
// dentro de una transacción (nunca leer-modificar-escribir fuera de ella).
type Item struct {
	ID              string          `json:"-"`
	CompanyID       string          `json:"companyId"`
	Name            string          `json:"name"`
	MRP             decimal.Decimal `json:"mrp"`           // precio de venta
	PurchasePrice   decimal.Decimal `json:"purchasePrice"` // precio de compra
	TaxRate         decimal.Decimal `json:"tax"`           // porcentaje
	Discount        decimal.Decimal `json:"discount"`      // porcentaje
	Stock           int64           `json:"stock"`
	RestockQuantity int64           `json:"restockQuantity"` // umbral de alerta
	ItemGroupID     string          `json:"itemGroupId"`
	IsListed        bool            `json:"isListed"`
	Barcode         string          `json:"barcode,omitempty"`
	ImageURL        string          `json:"imageUrl,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// PriceFor precio de catálogo que corresponde al tipo de documento: MRP en ventas, precio de compra en compras.
func (i *Item) PriceFor(t InvoiceType) decimal.Decimal {
	if t == InvoiceTypeDebit {
		return i.PurchasePrice
	}
	return i.MRP
}

// NeedsRestock alerta de reposición.
func (i *Item) NeedsRestock() bool {
	return i.Stock <= i.RestockQuantity
}
