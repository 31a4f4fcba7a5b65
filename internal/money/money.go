package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// UnitOfMeasure discretises how a product line's quantity may be stepped.
type UnitOfMeasure string

const (
	// UnitPiece steps in whole units.
	UnitPiece UnitOfMeasure = "unit"
	// UnitKilogram steps in tenths of a kilogram.
	UnitKilogram UnitOfMeasure = "kg"
)

// ErrInvalidAmount is returned when an operator-typed amount cannot be parsed.
var ErrInvalidAmount = errors.New("money: invalid amount")

var (
	stepPiece    = decimal.NewFromInt(1)
	stepKilogram = decimal.RequireFromString("0.1")
)

// StepFor returns the quantity increment for a unit of measure. Anything that
// is not kilogram-metered steps by whole units.
func StepFor(uom UnitOfMeasure) decimal.Decimal {
	if uom == UnitKilogram {
		return stepKilogram
	}
	return stepPiece
}

// RoundQty rounds a quantity to three decimal places, absorbing float drift
// from repeated fractional stepping.
func RoundQty(qty decimal.Decimal) decimal.Decimal {
	return qty.Round(3)
}

// ParseAmount parses an operator-typed monetary amount such as "150" or
// "1,250.50". Thousands separators are tolerated; an empty or malformed input
// yields ErrInvalidAmount.
func ParseAmount(input string) (decimal.Decimal, error) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(input), ",", "")
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("%w: empty input", ErrInvalidAmount)
	}
	amount, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, input)
	}
	return amount, nil
}

// FormatAmount renders an amount for display with the currency symbol, two
// decimal places and thousands separators, e.g. "K 1,234.50".
func FormatAmount(amount decimal.Decimal, symbol string) string {
	fixed := amount.StringFixed(2)
	negative := strings.HasPrefix(fixed, "-")
	if negative {
		fixed = fixed[1:]
	}
	whole, frac, _ := strings.Cut(fixed, ".")
	grouped := groupThousands(whole)
	sign := ""
	if negative {
		sign = "-"
	}
	if symbol == "" {
		return fmt.Sprintf("%s%s.%s", sign, grouped, frac)
	}
	return fmt.Sprintf("%s %s%s.%s", symbol, sign, grouped, frac)
}

// ChangeDue computes the cash change owed, never negative.
func ChangeDue(cashReceived, total decimal.Decimal) decimal.Decimal {
	change := cashReceived.Sub(total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}

func groupThousands(digits string) string {
	n := len(digits)
	if n <= 3 {
		return digits
	}
	var b strings.Builder
	head := n % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < n; i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
