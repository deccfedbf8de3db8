package custody

import (
	"errors"
	"fmt"
	"sync"

	"cosmossdk.io/math"

	"EpochVault/internal/model"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInvalidAmount       = errors.New("invalid amount")
)

// Ledger is an in-process fungible token: balances per account with debit/credit transfers.
type Ledger struct {
	mu       sync.Mutex
	symbol   string
	balances map[model.Account]math.Int
	supply   math.Int
}

// NewLedger creates an empty token ledger.
func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:   symbol,
		balances: make(map[model.Account]math.Int),
		supply:   math.ZeroInt(),
	}
}

func (l *Ledger) Symbol() string { return l.symbol }

// BalanceOf returns the balance of acct.
func (l *Ledger) BalanceOf(acct model.Account) math.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balanceOf(acct)
}

// TotalSupply returns the amount in existence.
func (l *Ledger) TotalSupply() math.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply
}

// Transfer moves amount from one account to another. Either the whole transfer happens or nothing does.
func (l *Ledger) Transfer(from, to model.Account, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	bal := l.balanceOf(from)
	if bal.LT(amount) {
		return fmt.Errorf("%s transfer %s from %s (balance %s): %w", l.symbol, amount, from, bal, ErrInsufficientBalance)
	}
	if from == to || amount.IsZero() {
		return nil
	}
	l.set(from, bal.Sub(amount))
	l.set(to, l.balanceOf(to).Add(amount))
	return nil
}

// Mint credits new tokens to acct. Used to fund accounts and to model external gains.
func (l *Ledger) Mint(acct model.Account, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set(acct, l.balanceOf(acct).Add(amount))
	l.supply = l.supply.Add(amount)
	return nil
}

// Burn destroys tokens held by acct. Used to model external losses.
func (l *Ledger) Burn(acct model.Account, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	bal := l.balanceOf(acct)
	if bal.LT(amount) {
		return fmt.Errorf("%s burn %s from %s (balance %s): %w", l.symbol, amount, acct, bal, ErrInsufficientBalance)
	}
	l.set(acct, bal.Sub(amount))
	l.supply = l.supply.Sub(amount)
	return nil
}

func (l *Ledger) balanceOf(acct model.Account) math.Int {
	if b, ok := l.balances[acct]; ok {
		return b
	}
	return math.ZeroInt()
}

func (l *Ledger) set(acct model.Account, v math.Int) {
	if v.IsZero() {
		delete(l.balances, acct)
		return
	}
	l.balances[acct] = v
}
