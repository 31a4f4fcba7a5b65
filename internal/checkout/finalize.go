package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/backend"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/payment"
)

// SaleKind distinguishes an immediately paid sale from an invoice.
type SaleKind string

const (
	SalePaid    SaleKind = "paid"
	SaleInvoice SaleKind = "invoice"
)

// ProcessTransaction validates, builds and submits the sale. A paid sale uses
// the current payment session's reference when one exists; cash sales require
// enough cash received. On success the receipt is surfaced (paid only) and
// all sale state is cleared. Failure leaves the cart intact with no retry.
func (s *Session) ProcessTransaction(ctx context.Context, kind SaleKind) (backend.SaleRecord, error) {
	reference := ""
	methodName := ""
	s.mu.Lock()
	if s.paySession != nil {
		reference = s.paySession.Reference
	}
	if s.methodSelected {
		methodName = s.method.Name
	}
	s.mu.Unlock()
	return s.finalize(ctx, kind, methodName, reference)
}

func (s *Session) finalize(ctx context.Context, kind SaleKind, methodName, reference string) (backend.SaleRecord, error) {
	if !s.submitting.TryAcquire() {
		return backend.SaleRecord{}, ErrSubmissionInFlight
	}
	defer s.submitting.Release()

	s.mu.Lock()
	if s.cart.IsEmpty() {
		s.mu.Unlock()
		return backend.SaleRecord{}, ErrCartEmpty
	}
	if kind == SaleInvoice && s.customerID == "" {
		s.mu.Unlock()
		return backend.SaleRecord{}, ErrCustomerRequired
	}
	snapshot := s.totalsLocked()
	if kind == SalePaid && s.methodSelected && s.method.Kind == payment.KindCash {
		if s.cashReceived.LessThan(snapshot.Total) {
			s.mu.Unlock()
			return backend.SaleRecord{}, ErrInsufficientCash
		}
	}
	lines := s.cart.Lines()
	customerID := s.customerID
	s.mu.Unlock()

	sale := backend.Sale{
		ClientRef:     uuid.NewString(),
		CustomerID:    customerID,
		Subtotal:      snapshot.Subtotal,
		Discount:      snapshot.Discount,
		Tax:           snapshot.Tax,
		CreditApplied: snapshot.AppliedCredit,
		Total:         snapshot.Total,
		Payments:      []backend.PaymentRecord{},
	}
	sale.Items = make([]backend.SaleItem, 0, len(lines))
	for _, l := range lines {
		sale.Items = append(sale.Items, backend.SaleItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			SKU:       l.SKU,
			Quantity:  l.Quantity,
			UnitPrice: l.Price,
			CostPrice: l.CostPrice,
		})
	}

	switch kind {
	case SalePaid:
		sale.PaymentStatus = backend.SalePaid
		sale.AmountPaid = snapshot.Total
		sale.Payments = append(sale.Payments, backend.PaymentRecord{
			Amount:    snapshot.Total,
			Method:    methodName,
			Reference: reference,
			PaidAt:    s.now(),
		})
	case SaleInvoice:
		sale.PaymentStatus = backend.SaleUnpaid
		sale.AmountPaid = decimal.Zero
		due := s.now().AddDate(0, 0, s.invoiceDueDays)
		sale.DueDate = &due
	default:
		return backend.SaleRecord{}, fmt.Errorf("checkout: unknown sale kind %q", kind)
	}

	record, err := s.backend.SubmitSale(ctx, sale)
	if err != nil {
		_ = s.notices.Publish(events.Notice{
			Severity: events.SeverityError,
			Code:     events.CodeSaleFailed,
			Message:  "Sale could not be submitted",
			Data:     map[string]string{"error": err.Error()},
		})
		return backend.SaleRecord{}, err
	}

	if kind == SalePaid {
		_ = s.notices.Publish(events.Notice{
			Severity: events.SeveritySuccess,
			Code:     events.CodeSaleCompleted,
			Message:  "Sale completed: " + money.FormatAmount(record.Total, s.currency),
			Data:     record,
		})
	}
	s.ClearSale()
	s.logger.Info().
		Str("saleId", record.ID).
		Str("kind", string(kind)).
		Str("total", snapshot.Total.StringFixed(2)).
		Msg("sale finalized")
	return record, nil
}

// BeginMobileMoneyPayment obtains a gateway reference and opens the
// confirmation choice (direct charge vs. manual confirmation).
func (s *Session) BeginMobileMoneyPayment(ctx context.Context, contact backend.PaymentCustomer) (*payment.Session, error) {
	s.mu.Lock()
	if !s.methodSelected || s.method.Kind != payment.KindMobileMoney {
		s.mu.Unlock()
		return nil, ErrNoPaymentMethod
	}
	method := s.method
	total := s.totalsLocked().Total
	s.mu.Unlock()

	sess, err := s.payments.Begin(ctx, method, total, contact)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.paySession = sess
	s.mu.Unlock()
	_ = s.notices.Publish(events.Notice{
		Severity: events.SeverityInfo,
		Code:     events.CodePaymentChoice,
		Message:  "Choose how to confirm the mobile-money payment",
		Data:     map[string]string{"reference": sess.Reference},
	})
	return sess, nil
}

// ConfirmDirectCharge attempts the direct carrier charge, falling back to the
// popup widget on any charge failure, then awaits verification and finalizes.
// The popup reuses the reference already obtained, so a transport error on the
// charge never strands the payment session.
func (s *Session) ConfirmDirectCharge(ctx context.Context) error {
	sess := s.paymentSession()
	if sess == nil {
		return payment.ErrNoReference
	}
	err := s.payments.DirectCharge(ctx, sess)
	if err != nil {
		if !errors.Is(err, payment.ErrChargeRejected) {
			_ = s.notices.Publish(events.Notice{
				Severity: events.SeverityWarning,
				Code:     events.CodePaymentFailed,
				Message:  "Direct charge failed, opening confirmation window",
				Data:     map[string]string{"reference": sess.Reference, "detail": err.Error()},
			})
		}
		return s.payments.LaunchPopup(ctx, sess, payment.PopupCallbacks{
			OnSuccess: func(string) {
				go s.awaitAndFinalize(context.Background(), sess)
			},
			OnConfirmationPending: func(string) {
				go s.awaitAndFinalize(context.Background(), sess)
			},
			OnClose: func() {
				_ = s.notices.Publish(events.Notice{
					Severity: events.SeverityInfo,
					Code:     events.CodePaymentCancelled,
					Message:  "Payment window closed",
				})
			},
		})
	}
	s.awaitAndFinalize(ctx, sess)
	return nil
}

// ConfirmManual finalizes immediately with the manual-confirmation sentinel:
// the operator asserts the payment was already received out-of-band.
func (s *Session) ConfirmManual(ctx context.Context) (backend.SaleRecord, error) {
	s.mu.Lock()
	methodName := s.method.Name
	s.mu.Unlock()
	return s.finalize(ctx, SalePaid, methodName, payment.ManualReference)
}

// CancelPayment halts verification polling. The backend is notified
// asynchronously; local cancellation is complete immediately.
func (s *Session) CancelPayment() {
	sess := s.paymentSession()
	if sess == nil {
		return
	}
	s.payments.Cancel(sess)
	_ = s.notices.Publish(events.Notice{
		Severity: events.SeverityInfo,
		Code:     events.CodePaymentCancelled,
		Message:  "Payment verification cancelled",
		Data:     map[string]string{"reference": sess.Reference},
	})
}

func (s *Session) paymentSession() *payment.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paySession
}

func (s *Session) awaitAndFinalize(ctx context.Context, sess *payment.Session) {
	_ = s.notices.Publish(events.Notice{
		Severity: events.SeverityInfo,
		Code:     events.CodePaymentPending,
		Message:  "Awaiting payment confirmation",
		Data:     map[string]string{"reference": sess.Reference},
	})
	result := s.payments.AwaitVerification(ctx, sess)
	switch result.Outcome {
	case payment.PollVerified:
		_ = s.notices.Publish(events.Notice{
			Severity: events.SeveritySuccess,
			Code:     events.CodePaymentVerified,
			Message:  "Payment confirmed",
			Data:     map[string]string{"reference": sess.Reference},
		})
		if _, err := s.finalize(ctx, SalePaid, sess.Method.Name, sess.Reference); err != nil && !errors.Is(err, ErrSubmissionInFlight) {
			s.logger.Error().Err(err).Str("reference", sess.Reference).Msg("finalize after verification failed")
		}
	case payment.PollFailed:
		_ = s.notices.Publish(events.Notice{
			Severity: events.SeverityError,
			Code:     events.CodePaymentFailed,
			Message:  "Payment verification failed",
			Data:     map[string]string{"reference": sess.Reference, "detail": result.Message},
		})
	case payment.PollTimedOut:
		// explicitly neither success nor failure: the sale stays open for
		// later reconciliation
		_ = s.notices.Publish(events.Notice{
			Severity: events.SeverityWarning,
			Code:     events.CodePaymentTimeout,
			Message:  "Payment not confirmed in time; check the gateway later",
			Data:     map[string]string{"reference": sess.Reference},
		})
	case payment.PollCancelled:
		// cancellation notice already published by CancelPayment
	}
}
