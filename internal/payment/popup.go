package payment

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/backend"
)

// PopupRequest is the payload handed to the external payment widget.
type PopupRequest struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Channel   string
	Customer  backend.PaymentCustomer
}

// PopupCallbacks is the widget's callback contract. OnSuccess and
// OnConfirmationPending both feed the same pending-verification entry point;
// OnClose means the operator dismissed the widget without completing.
type PopupCallbacks struct {
	OnSuccess             func(reference string)
	OnConfirmationPending func(reference string)
	OnClose               func()
}

// PopupLauncher abstracts the external payment widget SDK. Only the callback
// contract is in scope; the widget itself runs outside this process.
type PopupLauncher interface {
	Open(ctx context.Context, req PopupRequest, cb PopupCallbacks) error
}
