package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cents    int64
		currency string
		want     int64
	}{
		{"positive cents", 10050, BRL, 10050},
		{"zero", 0, BRL, 0},
		{"large amount", 9999999999, BRL, 9999999999},
		{"euro", 1000, EUR, 1000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.cents, tt.currency)
			assert.Equal(t, tt.want, m.Amount())
			assert.Equal(t, tt.currency, m.Currency())
		})
	}
}

func TestNewFromDecimal(t *testing.T) {
	assert.Equal(t, int64(10050), NewFromDecimal(decimal.RequireFromString("100.50"), BRL).Amount())
	assert.Equal(t, int64(1235), NewFromDecimal(decimal.RequireFromString("12.345"), BRL).Amount())

	m := NewFromDecimal(decimal.RequireFromString("1"), "XXX-unknown")
	assert.Equal(t, BRL, m.Currency())
	assert.Equal(t, int64(100), m.Amount())
}

func TestParseBRL(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"1.234,56", "1234.56"},
		{"150,00", "150"},
		{"1234.56", "1234.56"},
		{"1.500", "1500"},
		{"R$ 2.500.000,10", "2500000.1"},
		{"R$ 89,90", "89.9"},
		{" 0,01 ", "0.01"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseBRL(tt.input)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParseBRL_Invalid(t *testing.T) {
	for _, in := range []string{"", "abc", "R$", "1,2,3"} {
		_, err := ParseBRL(in)
		assert.ErrorIs(t, err, ErrInvalidAmount, in)
	}
}

func TestCentsToDecimal(t *testing.T) {
	assert.Equal(t, "100.5", CentsToDecimal(10050).String())
	assert.True(t, CentsToDecimal(0).IsZero())
}

func TestDisplayAndString(t *testing.T) {
	m := New(123456, BRL)
	assert.Equal(t, "1234.56", m.String())
	assert.Contains(t, m.Display(), "1.234,56")

	var nilMoney *Money
	assert.Equal(t, "0.00", nilMoney.String())
	assert.True(t, nilMoney.IsZero())
}
