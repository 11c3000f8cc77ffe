package core

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"0", 0, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"-1", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if assert.NoError(t, err, tc.in) {
				assert.Equal(t, tc.out, got, tc.in)
			}
		} else {
			assert.Error(t, err, tc.in)
		}
	}
}

func TestMoneyFromDecimal(t *testing.T) {
	assert.Equal(t, int64(50000), MoneyFromDecimal(decimal.RequireFromString("500")).Cents)
	assert.Equal(t, int64(1251), MoneyFromDecimal(decimal.RequireFromString("12.505")).Cents)
	assert.Equal(t, int64(1250), MoneyFromDecimal(decimal.RequireFromString("12.504")).Cents)
	assert.True(t, Money{Cents: 1234}.Decimal().Equal(decimal.RequireFromString("12.34")))
}

func TestFormatRupees(t *testing.T) {
	assert.Equal(t, "₹1,234.50", FormatRupees(123450))
	assert.Equal(t, "₹0.05", FormatRupees(5))
	assert.Equal(t, "₹10,000.00", FormatRupees(1000000))
	assert.Equal(t, "-₹20.00", FormatRupees(-2000))
}
