package vault

import (
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

// Deposit takes amount from payer into custody and queues it for recipient. It is priced
// into shares at the NAV recorded when the current epoch is rolled.
func (e *Engine) Deposit(payer, recipient model.Account, amount math.Int) (err error) {
	defer func() { e.metrics.ObserveOperation("deposit", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if amount.IsNil() || !amount.IsPositive() {
		return ErrAmountZero
	}
	if e.ledger.Dead {
		return ErrVaultDead
	}
	if e.ledger.Killed {
		return ErrManuallyKilled
	}
	if err := e.userGate(); err != nil {
		return err
	}
	if recipient == e.self {
		return fmt.Errorf("deposit to vault account: %w", ErrUnauthorized)
	}
	total := e.ledger.TotalDeposit.Add(amount)
	if total.GT(e.ledger.MaxDeposit) {
		return fmt.Errorf("total %s over cap %s: %w", units.Format(total), units.Format(e.ledger.MaxDeposit), ErrExceedsMaxDeposit)
	}

	current := e.clock.State().ID()
	r := e.folded(e.depositReceipt(recipient))
	if r.Epoch == current {
		r.PendingAmount = r.PendingAmount.Add(amount)
	} else {
		r.PendingAmount = amount
	}
	r.Epoch = current
	r.CumulativeAmount = r.CumulativeAmount.Add(amount)

	if err := e.custodian.Transfer(payer, e.self, amount); err != nil {
		return fmt.Errorf("deposit: %w", err)
	}
	e.setDeposit(recipient, r)
	e.ledger.PendingDeposits = e.ledger.PendingDeposits.Add(amount)
	e.ledger.TotalDeposit = total

	e.logger.Debug("deposit",
		zap.String("payer", string(payer)),
		zap.String("recipient", string(recipient)),
		zap.String("amount", units.Format(amount)))
	evt := e.event(model.EventDeposit, recipient, amount, units.Zero())
	if payer != recipient {
		evt.Counterparty = payer
	}
	e.committed(evt)
	return nil
}
