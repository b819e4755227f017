// Package money provides currency-safe amounts backed by integer cents.
// Boleto values travel as 10-digit integer cents on the barcode and as
// Brazilian formatted strings ("R$ 1.234,56") on printed slips; this package
// converts between both and decimal.Decimal without float rounding.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	BRL = "BRL" // Brazilian Real
	EUR = "EUR" // Euro
)

// ErrInvalidAmount is returned when a textual amount cannot be parsed.
var ErrInvalidAmount = errors.New("invalid amount")

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a new Money value from cents (minor units) and currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, currencyCode)}
}

// NewFromDecimal rounds amount to the currency's minor unit. Unknown
// currencies fall back to BRL.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	currency := money.GetCurrency(currencyCode)
	if currency == nil {
		currency = money.GetCurrency(BRL)
	}
	cents := amount.Shift(int32(currency.Fraction)).Round(0).IntPart()
	return New(cents, currency.Code)
}

// ParseBRL parses an amount as printed on a Brazilian slip: "1.234,56",
// "R$ 50,00" or "1.500". A single dot followed by exactly two digits
// ("1234.56") is read as a decimal point.
func ParseBRL(amount string) (decimal.Decimal, error) {
	s := strings.Join(strings.Fields(amount), "")
	s = strings.TrimPrefix(s, "R$")

	if !isDecimalPoint(s) {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return NewFromDecimal(d, BRL).ToDecimal(), nil
}

func isDecimalPoint(s string) bool {
	if strings.Contains(s, ",") || strings.Count(s, ".") != 1 {
		return false
	}
	return len(s)-strings.LastIndex(s, ".")-1 == 2
}

// CentsToDecimal converts integer cents into a two-place decimal amount.
func CentsToDecimal(cents int64) decimal.Decimal {
	return New(cents, BRL).ToDecimal()
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// Display formats with the currency's own separators ("R$1.234,56").
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return "R$0,00"
	}
	return m.m.Display()
}

// String is the fixed-point form stored in JSON forms ("1234.56").
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	return decimal.New(m.m.Amount(), -int32(m.m.Currency().Fraction))
}
