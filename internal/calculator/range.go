package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// Range scans the last window values and returns the high and low.
func Range(values []decimal.Decimal, window int) (high, low decimal.Decimal, err error) {
	if len(values) == 0 {
		return decimal.Zero, decimal.Zero, errors.New("no values provided")
	}
	start := len(values) - window
	if window <= 0 || start < 0 {
		start = 0
	}
	high, low = values[start], values[start]
	for _, v := range values[start+1:] {
		high = decimal.Max(high, v)
		low = decimal.Min(low, v)
	}
	return high, low, nil
}

// Position returns where current sits within [low, high], clamped to 0..1.
func Position(current, high, low decimal.Decimal) (decimal.Decimal, error) {
	if high.Equal(low) {
		return decimal.NewFromFloat(0.5), nil
	}
	if high.LessThan(low) {
		return decimal.Zero, errors.New("high must be >= low")
	}
	pos := current.Sub(low).Div(high.Sub(low))
	return decimal.Max(decimal.Zero, decimal.Min(decimal.NewFromInt(1), pos)), nil
}

// MaxDrawdown returns the largest peak-to-trough fall as a fraction of the peak.
func MaxDrawdown(values []decimal.Decimal) decimal.Decimal {
	worst := decimal.Zero
	if len(values) == 0 {
		return worst
	}
	peak := values[0]
	for _, v := range values {
		if v.GreaterThan(peak) {
			peak = v
			continue
		}
		if peak.IsPositive() {
			if dd := peak.Sub(v).Div(peak); dd.GreaterThan(worst) {
				worst = dd
			}
		}
	}
	return worst
}
