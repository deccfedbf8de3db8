package vault

import (
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

func (e *Engine) priceOf(epochID int64) (math.Int, bool) {
	p, ok := e.nav[epochID]
	return p, ok
}

func (e *Engine) depositReceipt(acct model.Account) model.DepositReceipt {
	if r, ok := e.deposits[acct]; ok {
		return r
	}
	return model.DepositReceipt{
		PendingAmount:    units.Zero(),
		UnredeemedShares: units.Zero(),
		CumulativeAmount: units.Zero(),
	}
}

func (e *Engine) withdrawalReceipt(acct model.Account) model.WithdrawalReceipt {
	if w, ok := e.withdrawals[acct]; ok {
		return w
	}
	return model.WithdrawalReceipt{Shares: units.Zero()}
}

func (e *Engine) balance(acct model.Account) math.Int {
	if b, ok := e.balances[acct]; ok {
		return b
	}
	return units.Zero()
}

// folded converts a pending amount from an already priced epoch into unredeemed shares.
// Amounts from an epoch without a price (the one that killed the vault) stay pending.
func (e *Engine) folded(r model.DepositReceipt) model.DepositReceipt {
	if r.PendingAmount.IsZero() || r.Epoch == e.clock.State().ID() {
		return r
	}
	price, ok := e.priceOf(r.Epoch)
	if !ok {
		return r
	}
	r.UnredeemedShares = r.UnredeemedShares.Add(units.SharesFor(r.PendingAmount, price))
	r.PendingAmount = units.Zero()
	return r
}

func (e *Engine) setDeposit(acct model.Account, r model.DepositReceipt) {
	if r.PendingAmount.IsZero() && r.UnredeemedShares.IsZero() && r.CumulativeAmount.IsZero() {
		delete(e.deposits, acct)
		return
	}
	e.deposits[acct] = r
}

func (e *Engine) setBalance(acct model.Account, v math.Int) {
	if v.IsZero() {
		delete(e.balances, acct)
		return
	}
	e.balances[acct] = v
}

func (e *Engine) userGate() error {
	if e.ledger.Paused {
		return ErrPaused
	}
	if !e.clock.IsEpochActive() {
		return ErrEpochFinished
	}
	return nil
}

// DepositReceipt returns the account's receipt with any priced pending amount shown as shares.
func (e *Engine) DepositReceipt(acct model.Account) model.DepositReceipt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.folded(e.depositReceipt(acct))
}

// WithdrawalReceipt returns the account's queued exit, if any.
func (e *Engine) WithdrawalReceipt(acct model.Account) model.WithdrawalReceipt {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.withdrawalReceipt(acct)
}

// BalanceOf returns the shares an account holds directly. For the vault account this is the
// unclaimed plus queued shares in its custody.
func (e *Engine) BalanceOf(acct model.Account) math.Int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if acct == e.self {
		return e.ledger.UnclaimedShares.Add(e.ledger.HeldShares).Add(e.ledger.NewHeldShares)
	}
	return e.balance(acct)
}

// Position summarises an account's claims valued at the latest recorded NAV (or the rescue
// price once dead).
func (e *Engine) Position(acct model.Account) model.Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	r := e.folded(e.depositReceipt(acct))
	w := e.withdrawalReceipt(acct)
	bal := e.balance(acct)

	price := e.ledger.RescuePrice
	if !e.ledger.Dead {
		if p, ok := e.priceOf(e.clock.State().PreviousID()); ok {
			price = p
		} else {
			price = units.Zero()
		}
	}

	value := units.AssetsFor(bal.Add(r.UnredeemedShares), price).Add(r.PendingAmount)
	if w.Shares.IsPositive() {
		if p, ok := e.priceOf(w.Epoch); ok && w.Epoch != e.clock.State().ID() {
			value = value.Add(units.AssetsFor(w.Shares, p))
		} else {
			value = value.Add(units.AssetsFor(w.Shares, price))
		}
	}
	return model.Position{
		Account:         acct,
		Balance:         bal,
		ClaimableShares: r.UnredeemedShares,
		PendingDeposit:  r.PendingAmount,
		QueuedShares:    w.Shares,
		Principal:       r.CumulativeAmount,
		NAV:             price,
		EstimatedValue:  value,
	}
}

// Redeem claims shares priced in past epochs into the account's balance.
func (e *Engine) Redeem(acct model.Account, shares math.Int) (err error) {
	defer func() { e.metrics.ObserveOperation("redeem", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.userGate(); err != nil {
		return err
	}
	if shares.IsNil() || !shares.IsPositive() {
		return ErrAmountZero
	}
	r := e.folded(e.depositReceipt(acct))
	if shares.GT(r.UnredeemedShares) {
		return fmt.Errorf("redeem %s of %s unredeemed: %w", units.Format(shares), units.Format(r.UnredeemedShares), ErrExceedsAvailable)
	}

	r.UnredeemedShares = r.UnredeemedShares.Sub(shares)
	e.setDeposit(acct, r)
	e.setBalance(acct, e.balance(acct).Add(shares))
	e.ledger.UnclaimedShares = e.ledger.UnclaimedShares.Sub(shares)

	e.logger.Debug("redeem", zap.String("account", string(acct)), zap.String("shares", units.Format(shares)))
	e.committed(e.event(model.EventRedeem, acct, units.Zero(), shares))
	return nil
}

// Transfer moves redeemed shares between accounts, carrying a proportional slice of the
// sender's principal with them.
func (e *Engine) Transfer(from, to model.Account, shares math.Int) (err error) {
	defer func() { e.metrics.ObserveOperation("transfer", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ledger.Paused {
		return ErrPaused
	}
	if shares.IsNil() || !shares.IsPositive() {
		return ErrAmountZero
	}
	if from == to || to == e.self || from == e.self {
		return fmt.Errorf("transfer %s -> %s: %w", from, to, ErrUnauthorized)
	}
	rf := e.folded(e.depositReceipt(from))
	bal := e.balance(from)
	if shares.GT(bal) {
		return fmt.Errorf("transfer %s of balance %s: %w", units.Format(shares), units.Format(bal), ErrExceedsAvailable)
	}

	principal := units.MulDiv(rf.CumulativeAmount, shares, bal.Add(rf.UnredeemedShares))
	rf.CumulativeAmount = rf.CumulativeAmount.Sub(principal)
	rt := e.depositReceipt(to)
	rt.CumulativeAmount = rt.CumulativeAmount.Add(principal)

	e.setDeposit(from, rf)
	e.setDeposit(to, rt)
	e.setBalance(from, bal.Sub(shares))
	e.setBalance(to, e.balance(to).Add(shares))

	evt := e.event(model.EventTransfer, from, principal, shares)
	evt.Counterparty = to
	e.committed(evt)
	return nil
}
