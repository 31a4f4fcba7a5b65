// Package held suspends whole cart snapshots so the register can serve
// another customer and recall the parked sale later.
package held

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/pos-terminal/internal/cart"
)

var (
	// ErrNothingToHold is returned when the active cart is empty.
	ErrNothingToHold = errors.New("held: nothing to hold")
	// ErrIndexOutOfRange is returned for a recall index outside the live list.
	ErrIndexOutOfRange = errors.New("held: index out of range")
)

// Sale is a suspended cart snapshot.
type Sale struct {
	ID     string      `json:"id"`
	HeldAt time.Time   `json:"heldAt"`
	Lines  []cart.Line `json:"lines"`
}

// List keeps held sales in insertion order. Entries are addressed by position
// in the live list, recomputed on every call, not by an opaque id. Held sales
// are deliberately in-memory only and lost on restart.
type List struct {
	sales []Sale
	now   func() time.Time
}

// NewList constructs an empty held-sale list. now may be nil.
func NewList(now func() time.Time) *List {
	if now == nil {
		now = time.Now
	}
	return &List{now: now}
}

// Hold appends a snapshot of the provided lines and returns it.
func (l *List) Hold(lines []cart.Line) (Sale, error) {
	if len(lines) == 0 {
		return Sale{}, ErrNothingToHold
	}
	snapshot := make([]cart.Line, len(lines))
	copy(snapshot, lines)
	sale := Sale{
		ID:     uuid.NewString(),
		HeldAt: l.now(),
		Lines:  snapshot,
	}
	l.sales = append(l.sales, sale)
	return sale, nil
}

// Recall removes the entry at index and returns it. Subsequent entries shift
// down; callers always index against the live list.
func (l *List) Recall(index int) (Sale, error) {
	if index < 0 || index >= len(l.sales) {
		return Sale{}, ErrIndexOutOfRange
	}
	sale := l.sales[index]
	l.sales = append(l.sales[:index], l.sales[index+1:]...)
	return sale, nil
}

// List returns a copy of the held sales in insertion order.
func (l *List) List() []Sale {
	out := make([]Sale, len(l.sales))
	copy(out, l.sales)
	return out
}

// Len reports the number of held sales.
func (l *List) Len() int {
	return len(l.sales)
}
