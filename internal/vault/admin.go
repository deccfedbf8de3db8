package vault

import (
	"fmt"

	"cosmossdk.io/math"
	"go.uber.org/zap"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

// Role is a capability checked at the API boundary.
type Role string

const (
	RoleAdmin  Role = "admin"  // kill, pause, caps, role grants
	RoleRoller Role = "roller" // rollEpoch
	RoleTrader Role = "trader" // payoff transfers
)

var allRoles = []Role{RoleAdmin, RoleRoller, RoleTrader}

func (e *Engine) grant(acct model.Account, r Role) {
	set, ok := e.roles[acct]
	if !ok {
		set = make(map[Role]bool)
		e.roles[acct] = set
	}
	set[r] = true
}

func (e *Engine) require(caller model.Account, r Role) error {
	if !e.roles[caller][r] {
		return fmt.Errorf("%s lacks role %s: %w", caller, r, ErrUnauthorized)
	}
	return nil
}

// HasRole reports whether acct holds r.
func (e *Engine) HasRole(acct model.Account, r Role) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.roles[acct][r]
}

// Grant gives acct the role r.
func (e *Engine) Grant(caller model.Account, r Role, acct model.Account) (err error) {
	defer func() { e.metrics.ObserveOperation("grant", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.require(caller, RoleAdmin); err != nil {
		return err
	}
	e.grant(acct, r)
	e.logger.Info("role granted", zap.String("account", string(acct)), zap.String("role", string(r)))
	e.committed()
	return nil
}

// Revoke removes the role r from acct.
func (e *Engine) Revoke(caller model.Account, r Role, acct model.Account) (err error) {
	defer func() { e.metrics.ObserveOperation("revoke", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.require(caller, RoleAdmin); err != nil {
		return err
	}
	delete(e.roles[acct], r)
	e.logger.Info("role revoked", zap.String("account", string(acct)), zap.String("role", string(r)))
	e.committed()
	return nil
}

// KillVault halts the vault. The next roll marks it dead and opens the rescue paths.
func (e *Engine) KillVault(caller model.Account) (err error) {
	defer func() { e.metrics.ObserveOperation("kill", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.require(caller, RoleAdmin); err != nil {
		return err
	}
	if e.ledger.Dead {
		return ErrVaultDead
	}
	if e.ledger.Killed {
		return ErrManuallyKilled
	}
	e.ledger.Killed = true
	e.logger.Warn("vault killed", zap.String("by", string(caller)))
	e.committed()
	return nil
}

// SetMaxDeposit changes the cap on total principal.
func (e *Engine) SetMaxDeposit(caller model.Account, amount math.Int) (err error) {
	defer func() { e.metrics.ObserveOperation("set_max_deposit", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.require(caller, RoleAdmin); err != nil {
		return err
	}
	if amount.IsNil() || amount.IsNegative() {
		return ErrAmountZero
	}
	e.ledger.MaxDeposit = amount
	e.logger.Info("max deposit changed", zap.String("max_deposit", units.Format(amount)))
	e.committed()
	return nil
}

// Pause blocks user operations.
func (e *Engine) Pause(caller model.Account) error {
	return e.setPaused(caller, true)
}

// Unpause resumes user operations.
func (e *Engine) Unpause(caller model.Account) error {
	return e.setPaused(caller, false)
}

func (e *Engine) setPaused(caller model.Account, paused bool) (err error) {
	defer func() { e.metrics.ObserveOperation("pause", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.require(caller, RoleAdmin); err != nil {
		return err
	}
	e.ledger.Paused = paused
	e.logger.Info("pause changed", zap.Bool("paused", paused))
	e.committed()
	return nil
}

// TransferPayoff pays reserved payoffs to a counterparty out of custody.
func (e *Engine) TransferPayoff(caller, recipient model.Account, amount math.Int) (err error) {
	defer func() { e.metrics.ObserveOperation("transfer_payoff", err) }()
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.require(caller, RoleTrader); err != nil {
		return err
	}
	if amount.IsNil() || !amount.IsPositive() {
		return ErrAmountZero
	}
	if amount.GT(e.ledger.PendingPayoffs) {
		return fmt.Errorf("payoff %s over reserved %s: %w", units.Format(amount), units.Format(e.ledger.PendingPayoffs), ErrExceedsAvailable)
	}
	if err := e.custodian.Transfer(e.self, recipient, amount); err != nil {
		return err
	}
	e.ledger.PendingPayoffs = e.ledger.PendingPayoffs.Sub(amount)

	evt := e.event(model.EventPayoff, recipient, amount, units.Zero())
	evt.Counterparty = caller
	e.committed(evt)
	return nil
}
