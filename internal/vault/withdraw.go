package vault

import (
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

// InitiateWithdraw surrenders shares to the vault for exit at the NAV of the current epoch.
// Unredeemed shares are claimed first, so callers need not Redeem beforehand. Repeated calls in
// the same epoch accumulate into one request.
func (e *Engine) InitiateWithdraw(acct model.Account, shares math.Int) (err error) {
	defer func() { e.metrics.ObserveOperation("initiate_withdraw", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ledger.Dead {
		return ErrVaultDead
	}
	if err := e.userGate(); err != nil {
		return err
	}
	if shares.IsNil() || !shares.IsPositive() {
		return ErrAmountZero
	}

	current := e.clock.State().ID()
	w := e.withdrawalReceipt(acct)
	if w.Shares.IsPositive() && w.Epoch != current {
		return ErrExistingIncompleteWithdraw
	}

	r := e.folded(e.depositReceipt(acct))
	bal := e.balance(acct)
	available := bal.Add(r.UnredeemedShares)
	if shares.GT(available) {
		return fmt.Errorf("withdraw %s of %s available: %w", units.Format(shares), units.Format(available), ErrExceedsAvailable)
	}

	redeemed := math.MinInt(shares, r.UnredeemedShares)
	r.UnredeemedShares = r.UnredeemedShares.Sub(redeemed)
	principal := units.MulDiv(r.CumulativeAmount, shares, available)
	r.CumulativeAmount = r.CumulativeAmount.Sub(principal)

	e.setDeposit(acct, r)
	e.setBalance(acct, bal.Add(redeemed).Sub(shares))
	e.withdrawals[acct] = model.WithdrawalReceipt{Epoch: current, Shares: w.Shares.Add(shares)}
	e.ledger.UnclaimedShares = e.ledger.UnclaimedShares.Sub(redeemed)
	e.ledger.NewHeldShares = e.ledger.NewHeldShares.Add(shares)
	e.ledger.TotalDeposit = e.ledger.TotalDeposit.Sub(principal)

	e.logger.Debug("initiate withdraw",
		zap.String("account", string(acct)),
		zap.String("shares", units.Format(shares)),
		zap.String("auto_redeemed", units.Format(redeemed)))
	e.committed(e.event(model.EventInitiateWithdraw, acct, principal, shares))
	return nil
}

// CompleteWithdraw pays out a request made in an earlier epoch at that epoch's NAV and burns
// its shares.
func (e *Engine) CompleteWithdraw(acct model.Account) (amount math.Int, err error) {
	defer func() { e.metrics.ObserveOperation("complete_withdraw", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.userGate(); err != nil {
		return math.Int{}, err
	}
	w := e.withdrawalReceipt(acct)
	if !w.Shares.IsPositive() {
		return math.Int{}, ErrWithdrawNotInitiated
	}
	if w.Epoch >= e.clock.State().ID() {
		return math.Int{}, ErrWithdrawTooEarly
	}
	price, ok := e.priceOf(w.Epoch)
	if !ok {
		// Queued in the epoch that killed the vault: only rescueShares can settle it.
		return math.Int{}, fmt.Errorf("withdrawal from unpriced epoch %d: %w", w.Epoch, ErrVaultDead)
	}

	amount = units.AssetsFor(w.Shares, price)
	if amount.GT(e.ledger.PendingWithdrawals) {
		return math.Int{}, fmt.Errorf("payout %s over reserved %s: %w", units.Format(amount), units.Format(e.ledger.PendingWithdrawals), ErrExceedsAvailable)
	}
	if err := e.custodian.Transfer(e.self, acct, amount); err != nil {
		return math.Int{}, fmt.Errorf("complete withdraw: %w", err)
	}

	delete(e.withdrawals, acct)
	e.ledger.PendingWithdrawals = e.ledger.PendingWithdrawals.Sub(amount)
	e.ledger.HeldShares = e.ledger.HeldShares.Sub(w.Shares)
	e.ledger.TotalSupply = e.ledger.TotalSupply.Sub(w.Shares)
	if e.ledger.HeldShares.IsZero() && !e.ledger.Dead {
		// Rounding dust left once every priced request is paid goes back to the basis.
		e.ledger.PendingWithdrawals = units.Zero()
	}

	e.logger.Debug("complete withdraw",
		zap.String("account", string(acct)),
		zap.String("shares", units.Format(w.Shares)),
		zap.String("amount", units.Format(amount)))
	e.committed(e.event(model.EventCompleteWithdraw, acct, amount, w.Shares))
	return amount, nil
}
