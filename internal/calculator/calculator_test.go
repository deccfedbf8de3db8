package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
)

func series(vals ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func TestSMA(t *testing.T) {
	got, err := SMA(series("1", "1.2", "1.4", "1.6"), 2)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.RequireFromString("1.5")) {
		t.Errorf("expected 1.5, got %s", got)
	}
	if _, err := SMA(series("1"), 2); err == nil {
		t.Error("expected error for short series")
	}
	if _, err := SMA(series("1"), 0); err == nil {
		t.Error("expected error for zero period")
	}
}

func TestReturn(t *testing.T) {
	got, err := Return(series("1", "0.9", "1.25"))
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(decimal.RequireFromString("0.25")) {
		t.Errorf("expected 0.25, got %s", got)
	}
	if _, err := Return(series("0", "1")); err == nil {
		t.Error("expected error for zero start")
	}
}

func TestRangeAndPosition(t *testing.T) {
	vals := series("2", "1", "1.5", "1.2", "1.8")
	high, low, err := Range(vals, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !high.Equal(decimal.RequireFromString("1.8")) || !low.Equal(decimal.RequireFromString("1.2")) {
		t.Errorf("expected 1.8/1.2, got %s/%s", high, low)
	}
	high, _, _ = Range(vals, 0)
	if !high.Equal(decimal.NewFromInt(2)) {
		t.Errorf("window 0 should scan everything, got high %s", high)
	}

	pos, err := Position(decimal.RequireFromString("1.5"), decimal.NewFromInt(2), decimal.NewFromInt(1))
	if err != nil {
		t.Fatal(err)
	}
	if !pos.Equal(decimal.RequireFromString("0.5")) {
		t.Errorf("expected 0.5, got %s", pos)
	}
	pos, _ = Position(decimal.NewFromInt(3), decimal.NewFromInt(2), decimal.NewFromInt(1))
	if !pos.Equal(decimal.NewFromInt(1)) {
		t.Errorf("expected clamp to 1, got %s", pos)
	}
	if _, err := Position(decimal.Zero, decimal.NewFromInt(1), decimal.NewFromInt(2)); err == nil {
		t.Error("expected error for inverted range")
	}
}

func TestMaxDrawdown(t *testing.T) {
	got := MaxDrawdown(series("1", "1.25", "1", "1.1", "0.75", "1.3"))
	if !got.Equal(decimal.RequireFromString("0.4")) {
		t.Errorf("expected 0.4, got %s", got)
	}
	if !MaxDrawdown(nil).IsZero() {
		t.Error("empty series has no drawdown")
	}
}
