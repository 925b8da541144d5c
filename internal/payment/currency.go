package payment

import (
	"fmt"
	"strings"

	apperrors "payflow.io/payflow/internal/pkg/errors"
)

// Currency is an ISO 4217 code from the supported set.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	CAD Currency = "CAD"
	AUD Currency = "AUD"
	JPY Currency = "JPY"
)

var supportedCurrencies = []Currency{USD, EUR, GBP, CAD, AUD, JPY}

// SupportedCurrencies returns a copy of the allow-list.
func SupportedCurrencies() []Currency {
	out := make([]Currency, len(supportedCurrencies))
	copy(out, supportedCurrencies)
	return out
}

// ParseCurrency uppercases code and checks it against the allow-list.
func ParseCurrency(code string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(code)))
	for _, s := range supportedCurrencies {
		if c == s {
			return c, nil
		}
	}

	names := make([]string, len(supportedCurrencies))
	for i, s := range supportedCurrencies {
		names[i] = string(s)
	}
	return "", apperrors.FromCode(apperrors.CodePaymentUnsupportedCurr,
		fmt.Sprintf("Invalid currency: %s. Supported currencies: %s", code, strings.Join(names, ", ")),
		ErrUnsupportedCurrency).
		WithParams(map[string]interface{}{"currency": code})
}

func (c Currency) String() string { return string(c) }
