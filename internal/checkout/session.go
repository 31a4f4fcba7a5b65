// Package checkout owns the live state of one register: the active cart, held
// sales, sale-level adjustments and the in-flight payment session. All state
// is exclusively owned by the session; nothing else mutates it.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/backend"
	"github.com/noah-isme/pos-terminal/internal/cart"
	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/held"
	"github.com/noah-isme/pos-terminal/internal/money"
	"github.com/noah-isme/pos-terminal/internal/payment"
	"github.com/noah-isme/pos-terminal/internal/pricing"
)

var (
	// ErrCartNotEmpty blocks recalling a held sale over an active cart.
	ErrCartNotEmpty = errors.New("checkout: active cart is not empty")
	// ErrCustomerRequired is returned for invoice sales and credit operations
	// without a selected customer.
	ErrCustomerRequired = errors.New("checkout: a customer must be selected")
	// ErrSubmissionInFlight means a submission is already running; the
	// duplicate call is dropped silently at the UI edge.
	ErrSubmissionInFlight = errors.New("checkout: submission already in flight")
	// ErrInsufficientCash blocks finalizing a cash sale before enough cash
	// has been received.
	ErrInsufficientCash = errors.New("checkout: cash received is less than total")
	// ErrCartEmpty blocks processing a transaction with nothing in the cart.
	ErrCartEmpty = errors.New("checkout: cart is empty")
	// ErrNoPaymentMethod means no payment method has been selected yet.
	ErrNoPaymentMethod = errors.New("checkout: no payment method selected")
)

// Operator is the explicit session context the checkout core is constructed
// with. It is initialised on login and cleared on logout; the core never
// reaches into ambient storage.
type Operator struct {
	ID         string
	Name       string
	TerminalID string
	StoreID    string
}

// CustomerSource resolves selected customers from the catalog snapshot.
type CustomerSource interface {
	CustomerByID(id string) (catalog.Customer, bool)
}

// SaleBackend posts the finished sale to the backend.
type SaleBackend interface {
	SubmitSale(ctx context.Context, sale backend.Sale) (backend.SaleRecord, error)
}

// Config carries the sale-level settings the session derives totals from.
type Config struct {
	TaxBps         int
	Currency       string
	InvoiceDueDays int
}

// Session is the checkout core for one terminal.
type Session struct {
	operator  Operator
	customers CustomerSource
	backend   SaleBackend
	payments  *payment.Orchestrator
	notices   *events.Bus
	logger    zerolog.Logger
	now       func() time.Time

	taxBps         int
	currency       string
	invoiceDueDays int

	mu              sync.Mutex
	cart            *cart.Store
	held            *held.List
	discount        decimal.Decimal
	customerID      string
	creditApplied   bool
	requestedCredit decimal.Decimal
	cashReceived    decimal.Decimal
	method          payment.Method
	methodSelected  bool
	paySession      *payment.Session

	submitting inflightGuard
}

// NewSession wires a checkout session for the given operator.
func NewSession(op Operator, customers CustomerSource, saleBackend SaleBackend, payments *payment.Orchestrator, notices *events.Bus, cfg Config, logger zerolog.Logger, now func() time.Time) *Session {
	if now == nil {
		now = time.Now
	}
	dueDays := cfg.InvoiceDueDays
	if dueDays <= 0 {
		dueDays = 30
	}
	return &Session{
		operator:       op,
		customers:      customers,
		backend:        saleBackend,
		payments:       payments,
		notices:        notices,
		logger:         logger.With().Str("component", "checkout").Str("terminal", op.TerminalID).Logger(),
		now:            now,
		taxBps:         cfg.TaxBps,
		currency:       cfg.Currency,
		invoiceDueDays: dueDays,
		cart:           cart.NewStore(),
		held:           held.NewList(now),
	}
}

// AddProduct adds one step of the product to the cart. A stock-ceiling hit
// surfaces the out-of-stock modal and leaves the cart unchanged.
func (s *Session) AddProduct(p catalog.Product) error {
	s.mu.Lock()
	err := s.cart.Add(p)
	s.mu.Unlock()
	if errors.Is(err, cart.ErrOutOfStock) {
		_ = s.notices.Publish(events.Notice{
			Severity: events.SeverityWarning,
			Code:     events.CodeOutOfStock,
			Message:  fmt.Sprintf("%s is out of stock", p.Name),
			Data:     map[string]string{"productId": p.ID},
		})
	}
	return err
}

// UpdateQuantity sets a line quantity. Overshooting stock is rejected with an
// inline error notice; a zero-or-below quantity removes the line.
func (s *Session) UpdateQuantity(productID string, qty decimal.Decimal) (removed bool, err error) {
	s.mu.Lock()
	removed, err = s.cart.UpdateQuantity(productID, qty)
	s.mu.Unlock()
	if errors.Is(err, cart.ErrExceedsStock) {
		_ = s.notices.Publish(events.Notice{
			Severity: events.SeverityError,
			Code:     events.CodeQuantityRejected,
			Message:  "Requested quantity exceeds available stock",
			Data:     map[string]string{"productId": productID},
		})
	}
	return removed, err
}

// RemoveItem removes a line unconditionally.
func (s *Session) RemoveItem(productID string) {
	s.mu.Lock()
	s.cart.Remove(productID)
	s.mu.Unlock()
}

// ClearSale empties the cart and resets discount, customer, credit, cash and
// payment state as one atomic transaction.
func (s *Session) ClearSale() {
	s.mu.Lock()
	s.clearLocked()
	s.mu.Unlock()
}

func (s *Session) clearLocked() {
	s.cart.Clear()
	s.discount = decimal.Zero
	s.customerID = ""
	s.creditApplied = false
	s.requestedCredit = decimal.Zero
	s.cashReceived = decimal.Zero
	s.method = payment.Method{}
	s.methodSelected = false
	s.paySession = nil
}

// Lines returns a copy of the active cart lines.
func (s *Session) Lines() []cart.Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cart.Lines()
}

// SetDiscount sets the flat sale discount. Negative amounts are rejected.
func (s *Session) SetDiscount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return errors.New("checkout: discount cannot be negative")
	}
	s.mu.Lock()
	s.discount = amount
	s.mu.Unlock()
	return nil
}

// SelectCustomer attaches a customer to the sale; an empty id detaches and
// drops any applied store credit.
func (s *Session) SelectCustomer(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id == "" {
		s.customerID = ""
		s.creditApplied = false
		s.requestedCredit = decimal.Zero
		return nil
	}
	if _, ok := s.customers.CustomerByID(id); !ok {
		return fmt.Errorf("checkout: unknown customer %q", id)
	}
	if s.customerID != id {
		s.creditApplied = false
		s.requestedCredit = decimal.Zero
	}
	s.customerID = id
	return nil
}

// ToggleStoreCredit applies the selected customer's store credit, bounded by
// both the balance and the total; toggling while applied removes it.
func (s *Session) ToggleStoreCredit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.creditApplied {
		s.creditApplied = false
		s.requestedCredit = decimal.Zero
		return nil
	}
	if s.customerID == "" {
		return ErrCustomerRequired
	}
	customer, ok := s.customers.CustomerByID(s.customerID)
	if !ok {
		return ErrCustomerRequired
	}
	beforeCredit := s.totalsLocked().TotalBeforeCredit
	credit := customer.StoreCredit
	if credit.GreaterThan(beforeCredit) {
		credit = beforeCredit
	}
	if credit.IsNegative() {
		credit = decimal.Zero
	}
	s.creditApplied = true
	s.requestedCredit = credit
	return nil
}

// SetCashReceived parses and records the operator-typed cash amount.
func (s *Session) SetCashReceived(input string) error {
	amount, err := money.ParseAmount(input)
	if err != nil {
		return err
	}
	if amount.IsNegative() {
		return fmt.Errorf("%w: negative cash", money.ErrInvalidAmount)
	}
	s.mu.Lock()
	s.cashReceived = amount
	s.mu.Unlock()
	return nil
}

// SelectPaymentMethod classifies and records the chosen method.
func (s *Session) SelectPaymentMethod(name string) payment.Method {
	method := payment.ResolveMethod(name)
	s.mu.Lock()
	s.method = method
	s.methodSelected = true
	s.mu.Unlock()
	return method
}

// Totals derives the pricing snapshot from current state. Pure with respect
// to the session's inputs; recomputed on every call.
func (s *Session) Totals() pricing.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalsLocked()
}

func (s *Session) totalsLocked() pricing.Snapshot {
	return pricing.Compute(s.cart.Lines(), pricing.Inputs{
		Discount:        s.discount,
		TaxBps:          s.taxBps,
		RequestedCredit: s.requestedCredit,
	})
}

// ChangeDue computes the cash change owed on the current totals.
func (s *Session) ChangeDue() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return money.ChangeDue(s.cashReceived, s.totalsLocked().Total)
}

// HoldSale parks the active cart on the held list and resets the sale inputs.
func (s *Session) HoldSale() (held.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sale, err := s.held.Hold(s.cart.Lines())
	if err != nil {
		return held.Sale{}, err
	}
	s.clearLocked()
	_ = s.notices.Publish(events.Notice{
		Severity: events.SeverityInfo,
		Code:     events.CodeSaleHeld,
		Message:  "Sale held",
		Data:     map[string]string{"heldSaleId": sale.ID},
	})
	return sale, nil
}

// RecallSale installs the held sale at index as the active cart. Recall over
// a non-empty cart is rejected and mutates nothing.
func (s *Session) RecallSale(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.cart.IsEmpty() {
		_ = s.notices.Publish(events.Notice{
			Severity: events.SeverityError,
			Code:     events.CodeRecallBlocked,
			Message:  "Finish or hold the current sale before recalling another",
		})
		return ErrCartNotEmpty
	}
	sale, err := s.held.Recall(index)
	if err != nil {
		return err
	}
	s.cart.Restore(sale.Lines)
	_ = s.notices.Publish(events.Notice{
		Severity: events.SeverityInfo,
		Code:     events.CodeSaleRecalled,
		Message:  "Held sale recalled",
		Data:     map[string]string{"heldSaleId": sale.ID},
	})
	return nil
}

// HeldSales lists the parked sales in insertion order.
func (s *Session) HeldSales() []held.Sale {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held.List()
}
