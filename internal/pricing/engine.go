package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/cart"
)

// Inputs are the sale-level adjustments applied on top of the cart lines.
type Inputs struct {
	// Discount is a flat amount taken off the subtotal, clamped to [0, subtotal].
	Discount decimal.Decimal
	// TaxBps is the tax rate in basis points (1000 = 10%).
	TaxBps int
	// RequestedCredit is the store credit the operator asked to apply. It is
	// clamped so credit can never drive the total negative.
	RequestedCredit decimal.Decimal
}

// Snapshot aggregates the derived totals for the active sale. It has no
// identity of its own and is recomputed from current state on every change.
type Snapshot struct {
	Subtotal          decimal.Decimal `json:"subtotal"`
	Discount          decimal.Decimal `json:"discount"`
	Tax               decimal.Decimal `json:"tax"`
	TotalBeforeCredit decimal.Decimal `json:"totalBeforeCredit"`
	AppliedCredit     decimal.Decimal `json:"appliedCredit"`
	Total             decimal.Decimal `json:"total"`
}

// Compute derives the pricing snapshot for the given lines and inputs. Pure:
// same inputs always yield the same snapshot.
func Compute(lines []cart.Line, in Inputs) Snapshot {
	var subtotal decimal.Decimal
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			continue
		}
		subtotal = subtotal.Add(l.Subtotal())
	}

	discount := in.Discount
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}

	taxable := subtotal.Sub(discount)
	if taxable.IsNegative() {
		taxable = decimal.Zero
	}
	tax := decimal.Zero
	if in.TaxBps > 0 {
		tax = taxable.Mul(decimal.New(int64(in.TaxBps), -4)).Round(2)
	}

	beforeCredit := taxable.Add(tax)
	credit := in.RequestedCredit
	if credit.IsNegative() {
		credit = decimal.Zero
	}
	if credit.GreaterThan(beforeCredit) {
		credit = beforeCredit
	}

	return Snapshot{
		Subtotal:          subtotal,
		Discount:          discount,
		Tax:               tax,
		TotalBeforeCredit: beforeCredit,
		AppliedCredit:     credit,
		Total:             beforeCredit.Sub(credit),
	}
}
