package valuation

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// PriceFeed quotes the side asset in base-asset units.
type PriceFeed interface {
	Price(ctx context.Context, symbol string) (decimal.Decimal, error)
	Name() string
}

// StaticFeed returns controllable fixed prices for development and testing.
type StaticFeed struct {
	mu     sync.Mutex
	prices map[string]decimal.Decimal
	Err    error
}

// NewStaticFeed creates a feed with no prices set.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{prices: make(map[string]decimal.Decimal)}
}

func (f *StaticFeed) Name() string { return "static" }

// SetPrice sets the quote for symbol.
func (f *StaticFeed) SetPrice(symbol string, price decimal.Decimal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = price
}

func (f *StaticFeed) Price(_ context.Context, symbol string) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return decimal.Zero, f.Err
	}
	p, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, &MissingPriceError{Symbol: symbol}
	}
	return p, nil
}

// MissingPriceError reports a symbol the feed has no quote for.
type MissingPriceError struct {
	Symbol string
}

func (e *MissingPriceError) Error() string { return "no price for " + e.Symbol }
