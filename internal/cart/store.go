package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/money"
)

var (
	// ErrOutOfStock is returned when an add would exceed the stocked quantity
	// with no headroom left for even a partial step.
	ErrOutOfStock = errors.New("cart: product out of stock")
	// ErrExceedsStock is returned when a requested quantity update overshoots
	// the stocked quantity. The cart is left unchanged.
	ErrExceedsStock = errors.New("cart: quantity exceeds available stock")
	// ErrNotFound indicates the product is not in the cart.
	ErrNotFound = errors.New("cart: line not found")
)

// Line is one product line in the active sale. Stock is a snapshot taken when
// the line was created: clamping against it is advisory, not a live inventory
// lock. True stock reconciliation happens server-side at sale submission.
type Line struct {
	ProductID     string              `json:"productId"`
	Name          string              `json:"name"`
	SKU           string              `json:"sku"`
	Price         decimal.Decimal     `json:"price"`
	CostPrice     decimal.Decimal     `json:"costPrice"`
	Quantity      decimal.Decimal     `json:"quantity"`
	Stock         decimal.Decimal     `json:"stock"`
	UnitOfMeasure money.UnitOfMeasure `json:"unitOfMeasure"`
}

// Subtotal is the line's quantity times its unit price.
func (l Line) Subtotal() decimal.Decimal {
	return l.Quantity.Mul(l.Price)
}

// Store owns the active sale's line items. It is not safe for concurrent use;
// the checkout session serialises access.
type Store struct {
	lines []Line
	index map[string]int
}

// NewStore returns an empty cart.
func NewStore() *Store {
	return &Store{index: map[string]int{}}
}

// Add inserts a product at one step of its unit of measure, or increments the
// existing line by one step clamped to the stock snapshot. The cart is left
// untouched and ErrOutOfStock returned when the line is already at stock, or
// when a new line cannot fit even a single step.
func (s *Store) Add(p catalog.Product) error {
	step := money.StepFor(p.UnitOfMeasure)
	if i, ok := s.index[p.ID]; ok {
		line := s.lines[i]
		if line.Quantity.GreaterThanOrEqual(line.Stock) {
			return ErrOutOfStock
		}
		next := line.Quantity.Add(step)
		if next.GreaterThan(line.Stock) {
			next = line.Stock
		}
		s.lines[i].Quantity = money.RoundQty(next)
		return nil
	}
	if step.GreaterThan(p.Stock) {
		return ErrOutOfStock
	}
	s.index[p.ID] = len(s.lines)
	s.lines = append(s.lines, Line{
		ProductID:     p.ID,
		Name:          p.Name,
		SKU:           p.SKU,
		Price:         p.Price,
		CostPrice:     p.CostPrice,
		Quantity:      money.RoundQty(step),
		Stock:         p.Stock,
		UnitOfMeasure: p.UnitOfMeasure,
	})
	return nil
}

// UpdateQuantity sets a line to the requested quantity. Overshooting stock is
// rejected outright with ErrExceedsStock; a quantity at or below zero removes
// the line and reports removed=true. The asymmetry is deliberate: undershoot
// silently clamps and may delete, overshoot is an operator error.
func (s *Store) UpdateQuantity(productID string, qty decimal.Decimal) (removed bool, err error) {
	i, ok := s.index[productID]
	if !ok {
		return false, ErrNotFound
	}
	if qty.GreaterThan(s.lines[i].Stock) {
		return false, ErrExceedsStock
	}
	rounded := money.RoundQty(qty)
	if !rounded.IsPositive() {
		s.removeAt(i)
		return true, nil
	}
	s.lines[i].Quantity = rounded
	return false, nil
}

// Remove deletes the line if present; missing lines are a no-op.
func (s *Store) Remove(productID string) {
	if i, ok := s.index[productID]; ok {
		s.removeAt(i)
	}
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.lines = nil
	s.index = map[string]int{}
}

// IsEmpty reports whether the cart has no lines.
func (s *Store) IsEmpty() bool {
	return len(s.lines) == 0
}

// Len returns the number of lines.
func (s *Store) Len() int {
	return len(s.lines)
}

// Lines returns a copy of the current lines in insertion order.
func (s *Store) Lines() []Line {
	out := make([]Line, len(s.lines))
	copy(out, s.lines)
	return out
}

// Restore replaces the cart contents with the provided lines, used when a
// held sale is recalled.
func (s *Store) Restore(lines []Line) {
	s.lines = make([]Line, len(lines))
	copy(s.lines, lines)
	s.index = make(map[string]int, len(lines))
	for i, l := range s.lines {
		s.index[l.ProductID] = i
	}
}

func (s *Store) removeAt(i int) {
	s.lines = append(s.lines[:i], s.lines[i+1:]...)
	s.index = make(map[string]int, len(s.lines))
	for j, l := range s.lines {
		s.index[l.ProductID] = j
	}
}
