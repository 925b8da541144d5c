package payment

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// amountScale is the number of fractional digits kept for every Amount.
const amountScale = 2

// Amount is a non-negative monetary value rounded to cents.
// The zero value is a valid amount of 0.00.
type Amount struct {
	d decimal.Decimal
}

// Zero is the 0.00 amount.
var Zero = Amount{}

// NewAmount validates d and rounds it to two decimal places.
func NewAmount(d decimal.Decimal) (Amount, error) {
	if d.IsNegative() {
		return Amount{}, invalidAmount(fmt.Sprintf("amount cannot be negative: %s", d.String()))
	}
	return Amount{d: d.Round(amountScale)}, nil
}

// NewAmountFromFloat is NewAmount for float inputs; NaN and ±Inf are rejected.
func NewAmountFromFloat(f float64) (Amount, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Amount{}, invalidAmount("amount must be a finite number")
	}
	return NewAmount(decimal.NewFromFloat(f))
}

// MustAmount parses s and panics on error. Intended for constants and tests.
func MustAmount(s string) Amount {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	a, err := NewAmount(d)
	if err != nil {
		panic(err)
	}
	return a
}

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.d }

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	return Amount{d: a.d.Add(b.d).Round(amountScale)}
}

// Sub returns a - b, failing when the result would be negative.
func (a Amount) Sub(b Amount) (Amount, error) {
	return NewAmount(a.d.Sub(b.d))
}

// Mul scales a by factor, failing when the result would be negative.
func (a Amount) Mul(factor decimal.Decimal) (Amount, error) {
	return NewAmount(a.d.Mul(factor))
}

// Cmp compares a and b: -1 if a < b, 0 if equal, +1 if a > b.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

func (a Amount) Equal(b Amount) bool       { return a.d.Equal(b.d) }
func (a Amount) GreaterThan(b Amount) bool { return a.d.GreaterThan(b.d) }
func (a Amount) LessThan(b Amount) bool    { return a.d.LessThan(b.d) }
func (a Amount) IsZero() bool              { return a.d.IsZero() }

// String renders the amount with exactly two decimals, e.g. "100.00".
func (a Amount) String() string { return a.d.StringFixed(amountScale) }

// MarshalJSON encodes the amount as a JSON number with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts both JSON numbers and quoted decimal strings.
func (a *Amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("decode amount: %w", err)
	}
	parsed, err := NewAmount(d)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func invalidAmount(msg string) error {
	return apperrors.FromCode(apperrors.CodePaymentInvalidAmount, msg, ErrInvalidAmount)
}
