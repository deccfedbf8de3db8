package calculator

import (
	"errors"

	"github.com/shopspring/decimal"
)

// SMA computes the simple moving average of the last period values.
func SMA(values []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, errors.New("period must be positive")
	}
	if len(values) < period {
		return decimal.Zero, errors.New("not enough data for SMA calculation")
	}
	sum := decimal.Zero
	for i := len(values) - period; i < len(values); i++ {
		sum = sum.Add(values[i])
	}
	return sum.Div(decimal.NewFromInt(int64(period))), nil
}

// Return is the relative change from the first to the last value.
func Return(values []decimal.Decimal) (decimal.Decimal, error) {
	if len(values) < 2 {
		return decimal.Zero, errors.New("need at least two values")
	}
	first := values[0]
	if !first.IsPositive() {
		return decimal.Zero, errors.New("first value must be positive")
	}
	return values[len(values)-1].Sub(first).Div(first), nil
}
