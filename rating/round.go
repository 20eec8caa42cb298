package rating

import (
	"strconv"

	"github.com/shopspring/decimal"
)

// exactDigits is enough fractional digits to tell any float64 in our range
// apart from a rounding tie at the configured precision.
const exactDigits = 40

var (
	one = decimal.NewFromInt(1)
	two = decimal.NewFromInt(2)
)

// exactDecimal converts f to a decimal using its binary value rather than the
// shortest string that round-trips.  0.30000000000000004 stays what it is.
func exactDecimal(f float64) decimal.Decimal {
	return decimal.RequireFromString(strconv.FormatFloat(f, 'f', exactDigits, 64))
}

// ratingDecimal converts an input rating the way a human would write it, so
// 1500.1 is 1500.1 and not the nearest binary fraction.
func ratingDecimal(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// roundHalfUp rounds to places fractional digits, ties away from zero.
func roundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

// roundHalfDown rounds to places fractional digits, ties toward zero.
func roundHalfDown(d decimal.Decimal, places int32) decimal.Decimal {
	t := d.Truncate(places)
	if d.Sub(t).Abs().Equal(decimal.New(5, -(places + 1))) {
		return t
	}
	return d.Round(places)
}
