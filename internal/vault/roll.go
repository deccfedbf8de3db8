package vault

import (
	"context"
	"fmt"
	"time"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

// rollPlan is the staged outcome of a roll. Nothing in it touches engine state until commit.
type rollPlan struct {
	ledger    model.Ledger
	nav       math.Int
	priced    bool
	minted    math.Int
	settled   math.Int
	settledAt math.Int
	died      bool
}

// RollEpoch closes the expired epoch: it settles matured payoffs, revalues the portfolio,
// records the closing NAV, mints shares for pending deposits, prices the exits queued in the
// closing epoch and advances the clock. The transition is atomic.
func (e *Engine) RollEpoch(ctx context.Context, caller model.Account) (report *model.RollReport, err error) {
	start := time.Now()
	e.mu.Lock()
	defer e.mu.Unlock()
	defer func() {
		if err != nil {
			e.metrics.ObserveRollFailure()
			e.logger.Warn("roll epoch failed", zap.Error(err))
		}
	}()

	if err := e.require(caller, RoleRoller); err != nil {
		return nil, err
	}
	if e.clock.IsEpochActive() {
		return nil, ErrEpochNotFinished
	}
	closing := e.clock.State().Current

	payoff := units.Zero()
	if !e.ledger.Dead {
		payoff, err = e.oracle.SettleMaturedPositions(ctx, closing)
		if err != nil {
			return nil, fmt.Errorf("settle matured positions: %w", err)
		}
		if payoff.IsNil() || payoff.IsNegative() {
			e.restorePayoff(closing, payoff)
			return nil, fmt.Errorf("oracle returned invalid payoff %v", payoff)
		}
	}
	portfolio, err := e.valuer.PortfolioValue(ctx)
	if err != nil {
		e.restorePayoff(closing, payoff)
		return nil, fmt.Errorf("portfolio value: %w", err)
	}
	if err := ctx.Err(); err != nil {
		e.restorePayoff(closing, payoff)
		return nil, err
	}

	plan := e.plan(portfolio, payoff)
	next := e.clock.Peek()

	// Commit.
	e.ledger = plan.ledger
	if plan.priced {
		if _, exists := e.nav[closing.Unix()]; !exists {
			e.nav[closing.Unix()] = plan.nav
		}
	}
	e.clock.Advance()

	report = &model.RollReport{
		ID:                 newRollID(),
		ClosedEpoch:        closing,
		NextEpoch:          next.Current,
		PortfolioValue:     portfolio,
		Payoff:             payoff,
		NAV:                plan.nav,
		MintedShares:       plan.minted,
		SettledShares:      plan.settled,
		SettledValue:       plan.settledAt,
		TotalSupply:        e.ledger.TotalSupply,
		LockedBasis:        e.ledger.LockedBasis,
		PendingWithdrawals: e.ledger.PendingWithdrawals,
		PendingPayoffs:     e.ledger.PendingPayoffs,
		Dead:               e.ledger.Dead,
		DiedThisRoll:       plan.died,
		RolledAt:           e.clock.Now(),
	}

	fields := []zap.Field{
		zap.Time("closed", closing),
		zap.Time("next", next.Current),
		zap.String("portfolio", units.Format(portfolio)),
		zap.String("nav", units.Format(plan.nav)),
		zap.String("minted", units.Format(plan.minted)),
		zap.String("settled_value", units.Format(plan.settledAt)),
		zap.String("total_supply", units.Format(e.ledger.TotalSupply)),
		zap.String("locked_basis", units.Format(e.ledger.LockedBasis)),
	}
	if plan.died {
		e.logger.Warn("vault dead", append(fields, zap.Bool("killed", e.ledger.Killed))...)
	} else {
		e.logger.Info("roll epoch", fields...)
	}

	if e.journal != nil {
		if err := e.journal.RecordRoll(report); err != nil {
			e.logger.Error("journal roll", zap.Error(err))
		}
	}
	e.committed()
	e.metrics.ObserveRoll(report, time.Since(start))
	return report, nil
}

// plan computes the post-roll ledger on a copy of the current one.
func (e *Engine) plan(portfolio, payoff math.Int) rollPlan {
	l := e.ledger
	p := rollPlan{
		nav:       units.Zero(),
		minted:    units.Zero(),
		settled:   units.Zero(),
		settledAt: units.Zero(),
	}

	if l.Dead {
		// Terminal: nothing is priced or minted any more, only the clock moves.
		p.ledger = l
		return p
	}

	l.PendingPayoffs = l.PendingPayoffs.Add(payoff)
	outstanding := l.Outstanding()
	net := portfolio.Sub(l.PendingDeposits).Sub(l.PendingPayoffs).Sub(l.PendingWithdrawals)

	switch {
	case l.TotalSupply.IsZero() && !net.IsNegative():
		p.nav = units.One
	case outstanding.IsZero():
		// Every share is queued for exit, or reserved payoffs exceed an empty vault.
		p.nav = units.Zero()
	default:
		p.nav = units.PriceOf(net, outstanding)
	}

	p.died = l.Killed || p.nav.IsZero()
	if p.died {
		l.Dead = true
		l.RescuableDeposits = l.RescuableDeposits.Add(l.PendingDeposits)
		l.PendingDeposits = units.Zero()
		residual := units.NonNegative(portfolio.Sub(l.PendingWithdrawals).Sub(l.PendingPayoffs).Sub(l.RescuableDeposits))
		l.LockedBasis = residual
		l.RescuePrice = units.PriceOf(residual, outstanding)
		p.ledger = l
		return p
	}

	p.priced = true
	p.minted = units.SharesFor(l.PendingDeposits, p.nav)
	l.TotalSupply = l.TotalSupply.Add(p.minted)
	l.UnclaimedShares = l.UnclaimedShares.Add(p.minted)
	l.PendingDeposits = units.Zero()

	p.settled = l.NewHeldShares
	p.settledAt = units.AssetsFor(l.NewHeldShares, p.nav)
	l.PendingWithdrawals = l.PendingWithdrawals.Add(p.settledAt)
	l.HeldShares = l.HeldShares.Add(l.NewHeldShares)
	l.NewHeldShares = units.Zero()

	l.LockedBasis = units.NonNegative(portfolio.Sub(l.PendingWithdrawals).Sub(l.PendingPayoffs))
	p.ledger = l
	return p
}

func (e *Engine) restorePayoff(expiry time.Time, payoff math.Int) {
	if payoff.IsNil() || !payoff.IsPositive() {
		return
	}
	r, ok := e.oracle.(payoffRestorer)
	if !ok {
		e.logger.Error("aborted roll dropped a settled payoff", zap.String("payoff", units.Format(payoff)))
		return
	}
	if err := r.ReservePayoff(expiry, payoff); err != nil {
		e.logger.Error("restore payoff", zap.Error(err))
	}
}
