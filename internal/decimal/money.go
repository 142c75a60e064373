package decimal

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// FromInt creates decimal from int
func FromInt(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// FormatMonetary renders an amount with 2 fractional digits and a comma
// separator, e.g. 1500 -> "1500,00".
func FormatMonetary(amount decimal.Decimal) string {
	return withComma(amount.StringFixed(2))
}

// FormatRate renders a proportion as a percentage with 2 fractional digits
// and a comma separator, e.g. 0.025 -> "2,50".
func FormatRate(rate decimal.Decimal) string {
	return withComma(rate.Mul(hundred).StringFixed(2))
}

func withComma(s string) string {
	return strings.Replace(s, ".", ",", 1)
}

// ApplyRate computes amount * rate without intermediate rounding.
func ApplyRate(amount, rate decimal.Decimal) decimal.Decimal {
	return amount.Mul(rate)
}

// Complement returns 1 - p
func Complement(p decimal.Decimal) decimal.Decimal {
	return one.Sub(p)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsProportion returns true if 0 <= d <= 1
func IsProportion(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero) && d.LessThanOrEqual(one)
}
