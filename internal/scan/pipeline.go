// Package scan maps decoded barcode strings to cart additions, with an
// external-catalog fallback for codes the local product set does not know.
package scan

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/backend"
	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/events"
)

// Outcome describes how a single scan event resolved.
type Outcome int

const (
	// OutcomeIgnored means the pipeline was paused behind an open choice
	// dialog and the scan was dropped to avoid duplicate processing.
	OutcomeIgnored Outcome = iota
	// OutcomeAdded means a local product matched and was added to the cart.
	OutcomeAdded
	// OutcomeOutOfStock means a local product matched but the cart add hit
	// the stock ceiling. Scanning continues.
	OutcomeOutOfStock
	// OutcomeDraft means the external catalog knew the code and a prefilled
	// product creation form should open.
	OutcomeDraft
	// OutcomeNotFound means neither the local set nor the external catalog
	// matched. Scanning continues.
	OutcomeNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeIgnored:
		return "ignored"
	case OutcomeAdded:
		return "added"
	case OutcomeOutOfStock:
		return "out_of_stock"
	case OutcomeDraft:
		return "draft"
	case OutcomeNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// MarshalText renders outcomes as their string names in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Result carries the outcome plus whichever payload applies.
type Result struct {
	Outcome Outcome              `json:"outcome"`
	Product catalog.Product      `json:"product,omitzero"`
	Draft   catalog.ProductDraft `json:"draft,omitzero"`
}

// ProductResolver finds an active local product by barcode or SKU.
type ProductResolver interface {
	FindByCode(code string) (catalog.Product, error)
}

// ExternalLookup resolves unknown codes against the external catalog.
type ExternalLookup interface {
	ExternalLookup(ctx context.Context, code string) (catalog.ProductDraft, error)
}

// CartAdder attempts to add a resolved product to the active sale.
type CartAdder interface {
	AddProduct(p catalog.Product) error
}

var scansTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pos",
	Name:      "scans_total",
	Help:      "Count of scan resolutions by outcome.",
}, []string{"outcome"})

func init() {
	prometheus.MustRegister(scansTotal)
}

// Pipeline is the per-terminal scan state machine. A paused pipeline drops
// scans so one physical scan cannot be processed twice while the operator
// decides what to do next.
type Pipeline struct {
	resolver   ProductResolver
	external   ExternalLookup
	cart       CartAdder
	isCapacity func(error) bool
	notices    *events.Bus
	logger     zerolog.Logger

	mu     sync.Mutex
	paused bool
}

// NewPipeline wires a scan pipeline. isCapacity classifies CartAdder errors
// that mean the stock ceiling was hit rather than a hard failure.
func NewPipeline(resolver ProductResolver, external ExternalLookup, cart CartAdder, isCapacity func(error) bool, notices *events.Bus, logger zerolog.Logger) *Pipeline {
	if isCapacity == nil {
		isCapacity = func(error) bool { return false }
	}
	return &Pipeline{
		resolver:   resolver,
		external:   external,
		cart:       cart,
		isCapacity: isCapacity,
		notices:    notices,
		logger:     logger.With().Str("component", "scan").Logger(),
	}
}

// Resolve processes one decoded scan string.
func (p *Pipeline) Resolve(ctx context.Context, code string) (Result, error) {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return p.done(Result{Outcome: OutcomeIgnored}), nil
	}

	p.mu.Lock()
	if p.paused {
		p.mu.Unlock()
		return p.done(Result{Outcome: OutcomeIgnored}), nil
	}
	p.mu.Unlock()

	if product, err := p.resolver.FindByCode(trimmed); err == nil {
		return p.resolveLocal(product)
	}

	draft, err := p.external.ExternalLookup(ctx, trimmed)
	if err != nil {
		if !errors.Is(err, backend.ErrNotFound) {
			p.logger.Warn().Err(err).Str("code", trimmed).Msg("external lookup failed")
		}
		_ = p.notices.Publish(events.Notice{
			Severity: events.SeverityError,
			Code:     events.CodeScanNotFound,
			Message:  "No product found for scanned code",
			Data:     map[string]string{"code": trimmed},
		})
		return p.done(Result{Outcome: OutcomeNotFound}), nil
	}
	// the external catalog's figures never apply to this store: the operator
	// sets stock, pricing and category on the creation form
	draft.Price = decimal.Zero
	draft.CostPrice = decimal.Zero
	draft.Stock = decimal.Zero
	draft.CategoryID = ""
	_ = p.notices.Publish(events.Notice{
		Severity: events.SeverityInfo,
		Code:     events.CodeProductDraft,
		Message:  "Unknown code matched the external catalog",
		Data:     draft,
	})
	return p.done(Result{Outcome: OutcomeDraft, Draft: draft}), nil
}

func (p *Pipeline) resolveLocal(product catalog.Product) (Result, error) {
	if err := p.cart.AddProduct(product); err != nil {
		if p.isCapacity(err) {
			// capacity notice already surfaced by the cart owner; keep scanning
			return p.done(Result{Outcome: OutcomeOutOfStock, Product: product}), nil
		}
		return Result{}, err
	}
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	_ = p.notices.Publish(events.Notice{
		Severity: events.SeverityInfo,
		Code:     events.CodeScanChoice,
		Message:  "Item added; continue scanning or proceed to payment",
		Data:     map[string]string{"productId": product.ID, "name": product.Name},
	})
	return p.done(Result{Outcome: OutcomeAdded, Product: product}), nil
}

// ContinueScanning closes the choice dialog and resumes scan processing.
func (p *Pipeline) ContinueScanning() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
}

// ProceedToPayment resumes the pipeline and reports that the UI should close
// the scanner, switch to checkout and focus the cash input.
func (p *Pipeline) ProceedToPayment() {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	_ = p.notices.Publish(events.Notice{
		Severity: events.SeverityInfo,
		Code:     events.CodePaymentChoice,
		Message:  "Proceed to payment",
		Data:     map[string]bool{"focusCashInput": true},
	})
}

// Paused reports whether the pipeline is currently dropping scans.
func (p *Pipeline) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// OnScanError is the decode-failure callback: logged and otherwise ignored so
// hardware noise never interrupts the scanning state.
func (p *Pipeline) OnScanError(err error) {
	if err == nil {
		return
	}
	p.logger.Debug().Err(err).Msg("scanner decode error")
}

func (p *Pipeline) done(r Result) Result {
	scansTotal.WithLabelValues(r.Outcome.String()).Inc()
	return r
}
