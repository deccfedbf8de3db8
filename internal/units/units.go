package units

import (
	"errors"
	"fmt"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
)

// Decimals is the number of implied decimal places for amounts, shares and prices.
const Decimals = 18

// One is one whole unit (1e18 base units). It is also the bootstrap share price.
var One = math.NewIntWithDecimal(1, Decimals)

// Zero returns a zero amount. The zero value of math.Int is nil and must not be used.
func Zero() math.Int { return math.ZeroInt() }

// Whole returns n whole units.
func Whole(n int64) math.Int { return math.NewIntWithDecimal(n, Decimals) }

// SharesFor converts an asset amount into shares at the given per-share price, rounding down.
func SharesFor(amount, price math.Int) math.Int {
	if price.IsZero() {
		return Zero()
	}
	return amount.Mul(One).Quo(price)
}

// AssetsFor converts shares into an asset amount at the given per-share price, rounding down.
func AssetsFor(shares, price math.Int) math.Int {
	return shares.Mul(price).Quo(One)
}

// PriceOf returns value/shares as a per-share price, rounding down. Non-positive value prices at zero.
func PriceOf(value, shares math.Int) math.Int {
	if shares.IsZero() || !value.IsPositive() {
		return Zero()
	}
	return value.Mul(One).Quo(shares)
}

// MulDiv returns a*b/c rounded down. c must be non-zero.
func MulDiv(a, b, c math.Int) math.Int {
	return a.Mul(b).Quo(c)
}

// NonNegative clamps x at zero.
func NonNegative(x math.Int) math.Int {
	if x.IsNegative() {
		return Zero()
	}
	return x
}

// Normalize replaces a nil math.Int (e.g. a field absent from a decoded snapshot) with zero.
func Normalize(x math.Int) math.Int {
	if x.IsNil() {
		return Zero()
	}
	return x
}

// Parse reads a human decimal string ("1250.5") into base units.
func Parse(s string) (math.Int, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return math.Int{}, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return math.Int{}, fmt.Errorf("parse amount %q: negative", s)
	}
	scaled := d.Shift(Decimals)
	if !scaled.IsInteger() {
		return math.Int{}, fmt.Errorf("parse amount %q: more than %d decimals", s, Decimals)
	}
	return math.NewIntFromBigInt(scaled.BigInt()), nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) math.Int {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Decimal returns x as a decimal in whole units.
func Decimal(x math.Int) decimal.Decimal {
	if x.IsNil() {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(x.BigInt(), -Decimals)
}

// Format renders x in whole units with trailing zeros trimmed.
func Format(x math.Int) string {
	return Decimal(x).String()
}

// FormatFixed renders x in whole units with a fixed number of places, rounding down.
func FormatFixed(x math.Int, places int32) string {
	return Decimal(x).Truncate(places).StringFixed(places)
}

// ErrNegative is returned by FromDecimal for negative inputs.
var ErrNegative = errors.New("negative amount")

// FromDecimal converts a whole-unit decimal into base units, truncating extra precision.
func FromDecimal(d decimal.Decimal) (math.Int, error) {
	if d.IsNegative() {
		return math.Int{}, ErrNegative
	}
	return math.NewIntFromBigInt(d.Shift(Decimals).BigInt()), nil
}
