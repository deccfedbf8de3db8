package model

import (
	"time"

	"cosmossdk.io/math"
)

// Account identifies a depositor, an operator or the vault itself.
type Account string

// DepositReceipt tracks an account's deposits that have not been claimed as a share balance.
type DepositReceipt struct {
	Epoch            int64    `json:"epoch"`
	PendingAmount    math.Int `json:"pending_amount"`    // deposited in Epoch, not yet priced
	UnredeemedShares math.Int `json:"unredeemed_shares"` // priced in past epochs, not yet claimed
	CumulativeAmount math.Int `json:"cumulative_amount"` // principal still attributed to the account
}

// WithdrawalReceipt is a queued exit priced at the NAV of Epoch.
type WithdrawalReceipt struct {
	Epoch  int64    `json:"epoch"`
	Shares math.Int `json:"shares"`
}

// Ledger holds the vault-wide liquidity counters.
type Ledger struct {
	LockedBasis        math.Int `json:"locked_basis"` // v0
	PendingDeposits    math.Int `json:"pending_deposits"`
	PendingWithdrawals math.Int `json:"pending_withdrawals"`
	PendingPayoffs     math.Int `json:"pending_payoffs"`
	HeldShares         math.Int `json:"held_shares"`     // priced, awaiting completeWithdraw
	NewHeldShares      math.Int `json:"new_held_shares"` // queued this epoch, not yet priced
	UnclaimedShares    math.Int `json:"unclaimed_shares"`
	TotalSupply        math.Int `json:"total_supply"`
	TotalDeposit       math.Int `json:"total_deposit"`
	MaxDeposit         math.Int `json:"max_deposit"`
	RescuableDeposits  math.Int `json:"rescuable_deposits"`
	RescuePrice        math.Int `json:"rescue_price"`
	Dead               bool     `json:"dead"`
	Killed             bool     `json:"killed"`
	Paused             bool     `json:"paused"`
}

// Outstanding returns the supply that still shares in the NAV.
func (l Ledger) Outstanding() math.Int {
	return l.TotalSupply.Sub(l.HeldShares)
}

// Position summarises an account's claims at the latest recorded NAV.
type Position struct {
	Account         Account  `json:"account"`
	Balance         math.Int `json:"balance"`
	ClaimableShares math.Int `json:"claimable_shares"`
	PendingDeposit  math.Int `json:"pending_deposit"`
	QueuedShares    math.Int `json:"queued_shares"`
	Principal       math.Int `json:"principal"`
	NAV             math.Int `json:"nav"`
	EstimatedValue  math.Int `json:"estimated_value"`
}

// RollReport describes one committed epoch transition.
type RollReport struct {
	ID                 string    `json:"id"`
	ClosedEpoch        time.Time `json:"closed_epoch"`
	NextEpoch          time.Time `json:"next_epoch"`
	PortfolioValue     math.Int  `json:"portfolio_value"`
	Payoff             math.Int  `json:"payoff"`
	NAV                math.Int  `json:"nav"`
	MintedShares       math.Int  `json:"minted_shares"`
	SettledShares      math.Int  `json:"settled_shares"`
	SettledValue       math.Int  `json:"settled_value"`
	TotalSupply        math.Int  `json:"total_supply"`
	LockedBasis        math.Int  `json:"locked_basis"`
	PendingWithdrawals math.Int  `json:"pending_withdrawals"`
	PendingPayoffs     math.Int  `json:"pending_payoffs"`
	Dead               bool      `json:"dead"`
	DiedThisRoll       bool      `json:"died_this_roll"`
	RolledAt           time.Time `json:"rolled_at"`
}

// AccountEventType names a committed account operation.
type AccountEventType string

const (
	EventDeposit          AccountEventType = "DEPOSIT"
	EventRedeem           AccountEventType = "REDEEM"
	EventInitiateWithdraw AccountEventType = "INITIATE_WITHDRAW"
	EventCompleteWithdraw AccountEventType = "COMPLETE_WITHDRAW"
	EventRescueDeposit    AccountEventType = "RESCUE_DEPOSIT"
	EventRescueShares     AccountEventType = "RESCUE_SHARES"
	EventTransfer         AccountEventType = "TRANSFER"
	EventPayoff           AccountEventType = "PAYOFF"
)

// AccountEvent records one committed account operation.
type AccountEvent struct {
	Type         AccountEventType `json:"type"`
	Account      Account          `json:"account"`
	Counterparty Account          `json:"counterparty,omitempty"`
	Epoch        int64            `json:"epoch"`
	Amount       math.Int         `json:"amount"`
	Shares       math.Int         `json:"shares"`
	At           time.Time        `json:"at"`
}
