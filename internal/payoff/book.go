package payoff

import (
	"context"
	"errors"
	"sync"
	"time"

	"cosmossdk.io/math"
)

var ErrInvalidAmount = errors.New("invalid payoff amount")

// Book collects payoffs the trading component owes on positions, keyed by expiry,
// and hands them to the vault when that expiry's epoch is rolled.
type Book struct {
	mu       sync.Mutex
	reserved map[int64]math.Int
}

// NewBook creates an empty payoff book.
func NewBook() *Book {
	return &Book{reserved: make(map[int64]math.Int)}
}

// ReservePayoff pre-allocates amount against positions expiring at expiry.
func (b *Book) ReservePayoff(expiry time.Time, amount math.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return ErrInvalidAmount
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	key := expiry.Unix()
	cur, ok := b.reserved[key]
	if !ok {
		cur = math.ZeroInt()
	}
	b.reserved[key] = cur.Add(amount)
	return nil
}

// Reserved returns what is currently reserved for expiry.
func (b *Book) Reserved(expiry time.Time) math.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.reserved[expiry.Unix()]; ok {
		return v
	}
	return math.ZeroInt()
}

// SettleMaturedPositions returns the net payoff for every expiry at or before epoch and clears it.
func (b *Book) SettleMaturedPositions(ctx context.Context, epoch time.Time) (math.Int, error) {
	if err := ctx.Err(); err != nil {
		return math.Int{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	total := math.ZeroInt()
	for key, amount := range b.reserved {
		if key <= epoch.Unix() {
			total = total.Add(amount)
			delete(b.reserved, key)
		}
	}
	return total, nil
}
