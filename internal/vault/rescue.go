package vault

import (
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

func (e *Engine) rescueGate() error {
	if e.ledger.Paused {
		return ErrPaused
	}
	if !e.ledger.Dead {
		return ErrVaultNotDead
	}
	return nil
}

// RescueDeposit refunds, at face value, a deposit that was never priced into shares because
// the vault died at the roll that would have priced it.
func (e *Engine) RescueDeposit(acct model.Account) (amount math.Int, err error) {
	defer func() { e.metrics.ObserveOperation("rescue_deposit", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.rescueGate(); err != nil {
		return math.Int{}, err
	}
	r := e.depositReceipt(acct)
	if r.PendingAmount.IsZero() {
		return math.Int{}, ErrAmountZero
	}
	if _, priced := e.priceOf(r.Epoch); priced {
		return math.Int{}, ErrNothingToRescue
	}
	amount = r.PendingAmount
	if amount.GT(e.ledger.RescuableDeposits) {
		return math.Int{}, fmt.Errorf("refund %s over parked %s: %w", units.Format(amount), units.Format(e.ledger.RescuableDeposits), ErrExceedsAvailable)
	}
	if err := e.custodian.Transfer(e.self, acct, amount); err != nil {
		return math.Int{}, fmt.Errorf("rescue deposit: %w", err)
	}

	r.PendingAmount = units.Zero()
	r.CumulativeAmount = units.NonNegative(r.CumulativeAmount.Sub(amount))
	e.setDeposit(acct, r)
	e.ledger.RescuableDeposits = e.ledger.RescuableDeposits.Sub(amount)
	e.ledger.TotalDeposit = units.NonNegative(e.ledger.TotalDeposit.Sub(amount))

	e.logger.Info("rescue deposit", zap.String("account", string(acct)), zap.String("amount", units.Format(amount)))
	e.committed(e.event(model.EventRescueDeposit, acct, amount, units.Zero()))
	return amount, nil
}

// RescueShares burns every share the account still has a claim on (balance, unredeemed and
// exits queued in the fatal epoch) and pays them at the terminal rescue price.
func (e *Engine) RescueShares(acct model.Account) (amount math.Int, err error) {
	defer func() { e.metrics.ObserveOperation("rescue_shares", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.rescueGate(); err != nil {
		return math.Int{}, err
	}
	r := e.folded(e.depositReceipt(acct))
	w := e.withdrawalReceipt(acct)
	queued := units.Zero()
	if w.Shares.IsPositive() {
		if _, priced := e.priceOf(w.Epoch); !priced {
			queued = w.Shares
		}
	}
	bal := e.balance(acct)
	shares := bal.Add(r.UnredeemedShares).Add(queued)
	if shares.IsZero() {
		return math.Int{}, ErrAmountZero
	}

	amount = math.MinInt(units.AssetsFor(shares, e.ledger.RescuePrice), e.ledger.LockedBasis)
	if amount.IsPositive() {
		if err := e.custodian.Transfer(e.self, acct, amount); err != nil {
			return math.Int{}, fmt.Errorf("rescue shares: %w", err)
		}
	}

	// Principal of a still-parked deposit is released by RescueDeposit.
	released := units.NonNegative(r.CumulativeAmount.Sub(r.PendingAmount))
	r.CumulativeAmount = r.CumulativeAmount.Sub(released)
	unredeemed := r.UnredeemedShares
	r.UnredeemedShares = units.Zero()
	e.setDeposit(acct, r)
	e.setBalance(acct, units.Zero())
	if queued.IsPositive() {
		delete(e.withdrawals, acct)
	}

	e.ledger.TotalSupply = e.ledger.TotalSupply.Sub(shares)
	e.ledger.UnclaimedShares = e.ledger.UnclaimedShares.Sub(unredeemed)
	e.ledger.NewHeldShares = e.ledger.NewHeldShares.Sub(queued)
	e.ledger.LockedBasis = e.ledger.LockedBasis.Sub(amount)
	e.ledger.TotalDeposit = units.NonNegative(e.ledger.TotalDeposit.Sub(released))

	e.logger.Info("rescue shares",
		zap.String("account", string(acct)),
		zap.String("shares", units.Format(shares)),
		zap.String("amount", units.Format(amount)))
	e.committed(e.event(model.EventRescueShares, acct, amount, shares))
	return amount, nil
}
