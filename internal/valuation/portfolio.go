package valuation

import (
	"context"
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

// Balances is the read side of a custodied token.
type Balances interface {
	BalanceOf(acct model.Account) math.Int
}

// Portfolio values the vault's holdings: the base asset at par plus the hedging side asset
// at the feed price. It satisfies vault.Valuer.
type Portfolio struct {
	Holder     model.Account
	Base       Balances
	Side       Balances // nil when the vault holds no side asset
	SideSymbol string
	Feed       PriceFeed
	Logger     *zap.Logger
}

// PortfolioValue returns the total value in base units, rounded down.
func (p *Portfolio) PortfolioValue(ctx context.Context) (math.Int, error) {
	total := p.Base.BalanceOf(p.Holder)
	if p.Side == nil {
		return total, nil
	}
	held := p.Side.BalanceOf(p.Holder)
	if held.IsZero() {
		return total, nil
	}
	if p.Feed == nil {
		return math.Int{}, fmt.Errorf("side asset %s held without a price feed", p.SideSymbol)
	}
	price, err := p.Feed.Price(ctx, p.SideSymbol)
	if err != nil {
		return math.Int{}, fmt.Errorf("price %s via %s: %w", p.SideSymbol, p.Feed.Name(), err)
	}
	sideValue, err := units.FromDecimal(units.Decimal(held).Mul(price))
	if err != nil {
		return math.Int{}, fmt.Errorf("value %s: %w", p.SideSymbol, err)
	}
	if p.Logger != nil {
		p.Logger.Debug("portfolio valued",
			zap.String("base", units.Format(total)),
			zap.String("side_symbol", p.SideSymbol),
			zap.String("side_held", units.Format(held)),
			zap.String("side_price", price.String()),
			zap.String("side_value", units.Format(sideValue)))
	}
	return total.Add(sideValue), nil
}
