package backend

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleStatus is the backend's payment status for a submitted sale.
type SaleStatus string

const (
	SalePaid   SaleStatus = "paid"
	SaleUnpaid SaleStatus = "unpaid"
)

// SaleItem is one line of the submitted sale payload.
type SaleItem struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	SKU       string          `json:"sku"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	CostPrice decimal.Decimal `json:"costPrice"`
}

// PaymentRecord captures a settled payment attached to a paid sale.
type PaymentRecord struct {
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
	Reference string          `json:"reference"`
	PaidAt    time.Time       `json:"paidAt"`
}

// Sale is the payload submitted to the backend. The backend owns validation
// and persistence; this client's responsibility ends at the single submission.
type Sale struct {
	ClientRef     string          `json:"clientRef"`
	CustomerID    string          `json:"customerId,omitempty"`
	Items         []SaleItem      `json:"items"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Tax           decimal.Decimal `json:"tax"`
	CreditApplied decimal.Decimal `json:"creditApplied"`
	Total         decimal.Decimal `json:"total"`
	AmountPaid    decimal.Decimal `json:"amountPaid"`
	PaymentStatus SaleStatus      `json:"paymentStatus"`
	DueDate       *time.Time      `json:"dueDate,omitempty"`
	Payments      []PaymentRecord `json:"payments"`
}

// SaleRecord is the persisted sale returned on successful submission.
type SaleRecord struct {
	ID        string    `json:"id"`
	Number    string    `json:"number"`
	CreatedAt time.Time `json:"createdAt"`
	Sale
}

// PaymentCustomer identifies the paying customer for a mobile-money charge.
type PaymentCustomer struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
}

// InitiateResponse carries the gateway reference obtained before any
// confirmation UI is shown.
type InitiateResponse struct {
	Status string `json:"status"`
	Data   struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// ChargeResponse reports whether a direct mobile-money charge was accepted.
type ChargeResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// VerifyResponse reports the settlement state of an in-flight charge.
type VerifyResponse struct {
	Status  string `json:"status"`
	Pending bool   `json:"pending"`
	Message string `json:"message"`
}

// CancelResponse acknowledges a best-effort upstream cancel request.
type CancelResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
