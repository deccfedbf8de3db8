package units

import (
	"testing"

	"cosmossdk.io/math"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    math.Int
		wantErr bool
	}{
		{"0", Zero(), false},
		{"1", One, false},
		{"100", Whole(100), false},
		{"0.5", One.QuoRaw(2), false},
		{"0.000000000000000001", math.OneInt(), false},
		{"0.0000000000000000001", math.Int{}, true},
		{"-1", math.Int{}, true},
		{"abc", math.Int{}, true},
	}
	for _, tt := range tests {
		got, err := Parse(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got), "%s: want %s got %s", tt.in, tt.want, got)
	}
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "100", Format(Whole(100)))
	assert.Equal(t, "0.5", Format(One.QuoRaw(2)))
	assert.Equal(t, "0", Format(math.Int{}))
	assert.Equal(t, "1.33", FormatFixed(MustParse("1.3399"), 2))
}

func TestSharesAndAssetsRoundDown(t *testing.T) {
	price := MustParse("3")
	shares := SharesFor(Whole(10), price)
	// 10/3 = 3.333..., truncated at the 18th decimal
	assert.Equal(t, "3.333333333333333333", Format(shares))

	back := AssetsFor(shares, price)
	assert.True(t, back.LTE(Whole(10)), "round trip must not create value")
	assert.Equal(t, "9.999999999999999999", Format(back))
}

func TestPriceOf(t *testing.T) {
	assert.True(t, PriceOf(Whole(200), Whole(100)).Equal(Whole(2)))
	assert.True(t, PriceOf(Whole(-5), Whole(100)).IsZero())
	assert.True(t, PriceOf(Whole(5), Zero()).IsZero())
	assert.True(t, SharesFor(Whole(5), Zero()).IsZero())
}

func TestFromDecimal(t *testing.T) {
	v, err := FromDecimal(decimal.RequireFromString("2.25"))
	require.NoError(t, err)
	assert.True(t, v.Equal(MustParse("2.25")))

	_, err = FromDecimal(decimal.RequireFromString("-2"))
	assert.ErrorIs(t, err, ErrNegative)
}

func TestNormalizeAndClamp(t *testing.T) {
	assert.True(t, Normalize(math.Int{}).IsZero())
	assert.True(t, NonNegative(Whole(-1)).IsZero())
	assert.True(t, NonNegative(Whole(1)).Equal(One))
}
