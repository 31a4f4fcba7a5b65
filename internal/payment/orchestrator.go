package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/backend"
)

// ManualReference is the sentinel reference recorded when the operator
// asserts the payment was already received out-of-band, bypassing
// verification entirely.
const ManualReference = "manual-confirmation"

var (
	// ErrChargeRejected means the direct carrier charge was not accepted;
	// callers fall back to the popup flow with the same reference.
	ErrChargeRejected = errors.New("payment: direct charge rejected")
	// ErrNoReference indicates an operation that requires an initiated session.
	ErrNoReference = errors.New("payment: session has no reference")
)

// Gateway is the backend's payment surface, satisfied by backend.Client.
type Gateway interface {
	Verifier
	InitiatePayment(ctx context.Context, amount decimal.Decimal, currency string, customer backend.PaymentCustomer) (backend.InitiateResponse, error)
	ChargeMobileMoney(ctx context.Context, amount decimal.Decimal, reference, phone, operator string) (backend.ChargeResponse, error)
	CancelPayment(ctx context.Context, reference string) (backend.CancelResponse, error)
}

// Session is the ephemeral state of one in-flight mobile-money payment. It is
// created once a reference is obtained and destroyed when the transaction
// finalizes or is cancelled.
type Session struct {
	Reference string
	Method    Method
	Amount    decimal.Decimal
	Customer  backend.PaymentCustomer

	pollCtx    context.Context
	cancelPoll context.CancelFunc
	cancelled  atomic.Bool
}

// Cancelled reports whether the operator cancelled this session.
func (s *Session) Cancelled() bool {
	return s.cancelled.Load()
}

// Orchestrator drives the mobile-money confirmation protocol: initiate,
// direct-charge or popup, then bounded verification polling.
type Orchestrator struct {
	Gateway     Gateway
	Popup       PopupLauncher
	Currency    string
	MaxAttempts int
	Interval    time.Duration
	Logger      zerolog.Logger
}

// Begin obtains a gateway reference for the payment before any confirmation
// UI is presented.
func (o *Orchestrator) Begin(ctx context.Context, method Method, amount decimal.Decimal, customer backend.PaymentCustomer) (*Session, error) {
	if o == nil || o.Gateway == nil {
		return nil, errors.New("payment: orchestrator not configured")
	}
	resp, err := o.Gateway.InitiatePayment(ctx, amount, o.Currency, customer)
	if err != nil {
		return nil, fmt.Errorf("obtain payment reference: %w", err)
	}
	reference := strings.TrimSpace(resp.Data.Reference)
	if reference == "" {
		return nil, errors.New("payment: gateway returned empty reference")
	}
	pollCtx, cancel := context.WithCancel(context.Background())
	sess := &Session{
		Reference:  reference,
		Method:     method,
		Amount:     amount,
		Customer:   customer,
		pollCtx:    pollCtx,
		cancelPoll: cancel,
	}
	o.Logger.Info().Str("reference", reference).Str("method", method.Kind.String()).Msg("payment initiated")
	return sess, nil
}

// DirectCharge attempts to bill the customer's phone directly, inferring the
// carrier from the number. A rejected charge returns ErrChargeRejected so the
// caller can fall back to the popup flow with the same reference.
func (o *Orchestrator) DirectCharge(ctx context.Context, sess *Session) error {
	if sess == nil || sess.Reference == "" {
		return ErrNoReference
	}
	carrier := CarrierFor(sess.Customer.Phone)
	resp, err := o.Gateway.ChargeMobileMoney(ctx, sess.Amount, sess.Reference, sess.Customer.Phone, string(carrier))
	if err != nil {
		chargeTotal.WithLabelValues(string(carrier), "error").Inc()
		return fmt.Errorf("charge mobile money: %w", err)
	}
	if !chargeAccepted(resp.Status) {
		chargeTotal.WithLabelValues(string(carrier), "rejected").Inc()
		return fmt.Errorf("%w: %s", ErrChargeRejected, resp.Message)
	}
	chargeTotal.WithLabelValues(string(carrier), "accepted").Inc()
	o.Logger.Info().Str("reference", sess.Reference).Str("carrier", string(carrier)).Msg("direct charge accepted")
	return nil
}

// LaunchPopup opens the external payment widget for the session's reference.
func (o *Orchestrator) LaunchPopup(ctx context.Context, sess *Session, cb PopupCallbacks) error {
	if sess == nil || sess.Reference == "" {
		return ErrNoReference
	}
	if o.Popup == nil {
		return errors.New("payment: popup launcher not configured")
	}
	return o.Popup.Open(ctx, PopupRequest{
		Reference: sess.Reference,
		Amount:    sess.Amount,
		Currency:  o.Currency,
		Channel:   sess.Method.Kind.String(),
		Customer:  sess.Customer,
	}, cb)
}

// AwaitVerification polls the gateway until the charge settles, fails, times
// out, or the operator cancels.
func (o *Orchestrator) AwaitVerification(ctx context.Context, sess *Session) PollResult {
	if sess == nil || sess.Reference == "" {
		return PollResult{Outcome: PollFailed, Message: ErrNoReference.Error()}
	}
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sess.pollCtx, cancel)
	defer stop()

	result := Poller{
		Verifier:    o.Gateway,
		MaxAttempts: o.MaxAttempts,
		Interval:    o.Interval,
		Logger:      o.Logger,
	}.Run(pollCtx, sess.Reference)

	if sess.Cancelled() {
		result.Outcome = PollCancelled
	}
	return result
}

// Cancel halts polling immediately and notifies the backend asynchronously.
// Cancellation is complete the instant the local poll stops; the upstream
// cancel is best-effort and may not prevent money movement.
func (o *Orchestrator) Cancel(sess *Session) {
	if sess == nil || !sess.cancelled.CompareAndSwap(false, true) {
		return
	}
	sess.cancelPoll()
	reference := sess.Reference
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := o.Gateway.CancelPayment(ctx, reference); err != nil {
			o.Logger.Warn().Err(err).Str("reference", reference).Msg("upstream cancel failed")
			return
		}
		o.Logger.Info().Str("reference", reference).Msg("upstream charge cancelled")
	}()
}

func chargeAccepted(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "accepted", "ok", "pending":
		return true
	default:
		return false
	}
}
