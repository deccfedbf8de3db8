package vault

import "errors"

// Validation errors.
var (
	ErrAmountZero        = errors.New("amount zero")
	ErrExceedsAvailable  = errors.New("exceeds available")
	ErrExceedsMaxDeposit = errors.New("exceeds max deposit")
)

// Lifecycle errors.
var (
	ErrEpochFinished              = errors.New("epoch finished")
	ErrEpochNotFinished           = errors.New("epoch not finished")
	ErrWithdrawNotInitiated       = errors.New("withdraw not initiated")
	ErrWithdrawTooEarly           = errors.New("withdraw too early")
	ErrExistingIncompleteWithdraw = errors.New("existing incomplete withdraw")
)

// Terminal-state errors.
var (
	ErrVaultDead       = errors.New("vault dead")
	ErrVaultNotDead    = errors.New("vault not dead")
	ErrManuallyKilled  = errors.New("vault manually killed")
	ErrNothingToRescue = errors.New("nothing to rescue")
)

// Operational errors.
var (
	ErrPaused       = errors.New("paused")
	ErrUnauthorized = errors.New("unauthorized caller")
)
