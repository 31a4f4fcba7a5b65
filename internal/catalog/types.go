package catalog

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/money"
)

// ProductStatus marks whether a product may be sold.
type ProductStatus string

const (
	StatusActive   ProductStatus = "active"
	StatusInactive ProductStatus = "inactive"
)

// Product is a read-only catalog entry owned by the remote backend.
type Product struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	SKU           string              `json:"sku"`
	Barcode       string              `json:"barcode"`
	Price         decimal.Decimal     `json:"price"`
	CostPrice     decimal.Decimal     `json:"costPrice"`
	Stock         decimal.Decimal     `json:"stock"`
	UnitOfMeasure money.UnitOfMeasure `json:"unitOfMeasure"`
	Status        ProductStatus       `json:"status"`
	CategoryID    string              `json:"categoryId"`
}

// Customer is a read-only customer record with an available store-credit balance.
type Customer struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Phone       string          `json:"phone"`
	Email       string          `json:"email"`
	StoreCredit decimal.Decimal `json:"storeCredit"`
}

// Category groups products for display purposes.
type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProductDraft is a prefilled creation form produced by an external barcode
// lookup. Stock, price and cost start zeroed; category is left unset for the
// operator to choose.
type ProductDraft struct {
	Name          string              `json:"name"`
	SKU           string              `json:"sku"`
	Barcode       string              `json:"barcode"`
	Price         decimal.Decimal     `json:"price"`
	CostPrice     decimal.Decimal     `json:"costPrice"`
	Stock         decimal.Decimal     `json:"stock"`
	UnitOfMeasure money.UnitOfMeasure `json:"unitOfMeasure"`
	CategoryID    string              `json:"categoryId"`
}
