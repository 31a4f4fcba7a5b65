package httpapi

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/payment"
)

// PopupBridge implements the payment widget contract over HTTP. Open
// publishes a notice telling the front-end to mount the widget; the widget's
// terminal state comes back through Complete.
type PopupBridge struct {
	Notices *events.Bus
	Logger  zerolog.Logger

	mu      sync.Mutex
	pending map[string]payment.PopupCallbacks
}

// Open registers the callbacks and asks the front-end to show the widget.
func (b *PopupBridge) Open(_ context.Context, req payment.PopupRequest, cb payment.PopupCallbacks) error {
	b.mu.Lock()
	if b.pending == nil {
		b.pending = map[string]payment.PopupCallbacks{}
	}
	b.pending[req.Reference] = cb
	b.mu.Unlock()

	return b.Notices.Publish(events.Notice{
		Severity: events.SeverityInfo,
		Code:     events.CodePaymentPending,
		Message:  "Complete the payment in the window",
		Data: map[string]string{
			"reference": req.Reference,
			"amount":    req.Amount.StringFixed(2),
			"currency":  req.Currency,
			"channel":   req.Channel,
			"phone":     req.Customer.Phone,
		},
	})
}

// Complete dispatches the widget outcome to the registered callbacks. It
// reports false when no widget is pending for the reference.
func (b *PopupBridge) Complete(reference, status string) bool {
	b.mu.Lock()
	cb, ok := b.pending[reference]
	if ok {
		delete(b.pending, reference)
	}
	b.mu.Unlock()
	if !ok {
		return false
	}

	switch status {
	case "success":
		if cb.OnSuccess != nil {
			cb.OnSuccess(reference)
		}
	case "pending":
		if cb.OnConfirmationPending != nil {
			cb.OnConfirmationPending(reference)
		}
	default:
		if cb.OnClose != nil {
			cb.OnClose()
		}
	}
	b.Logger.Debug().Str("reference", reference).Str("status", status).Msg("payment window result")
	return true
}
