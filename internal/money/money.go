// Package money holds fixed-point helpers shared by the ledger engine.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places kept for currency amounts.
const Scale = 2

var (
	// ErrInvalidAmount indicates an unparseable or non-positive amount.
	ErrInvalidAmount = errors.New("money: invalid amount")
	// ErrInvalidParts indicates a split into fewer than one part.
	ErrInvalidParts = errors.New("money: parts must be positive")
)

// Zero is the additive identity.
var Zero = decimal.Zero

// Parse reads a positive amount, accepting a comma decimal separator.
func Parse(value string) (decimal.Decimal, error) {
	s := strings.ReplaceAll(strings.TrimSpace(value), ",", ".")
	if s == "" {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, value)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: %q must be positive", ErrInvalidAmount, value)
	}
	return d, nil
}

// Sum adds amounts without leaving fixed-point arithmetic.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Split divides total into n parts rounded down to cents; the final part
// absorbs the residual so the parts always sum to total exactly.
func Split(total decimal.Decimal, n int) ([]decimal.Decimal, error) {
	if n < 1 {
		return nil, ErrInvalidParts
	}
	share := total.Div(decimal.NewFromInt(int64(n))).RoundFloor(Scale)
	parts := make([]decimal.Decimal, n)
	allocated := decimal.Zero
	for i := 0; i < n-1; i++ {
		parts[i] = share
		allocated = allocated.Add(share)
	}
	parts[n-1] = total.Sub(allocated)
	return parts, nil
}

// Format renders an amount with two decimals.
func Format(d decimal.Decimal) string {
	return d.StringFixed(Scale)
}
