package vault

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cosmossdk.io/math"

	"EpochVault/internal/epoch"
	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

// State is the durable record of an engine: epoch, ledger, receipts, balances and NAV history.
type State struct {
	Epoch       epoch.State                                `json:"epoch"`
	Ledger      model.Ledger                               `json:"ledger"`
	Deposits    map[model.Account]model.DepositReceipt    `json:"deposits"`
	Withdrawals map[model.Account]model.WithdrawalReceipt `json:"withdrawals"`
	Balances    map[model.Account]math.Int                 `json:"balances"`
	NAV         map[int64]math.Int                         `json:"nav"`
	Roles       map[model.Account][]Role                   `json:"roles"`
	UpdatedAt   time.Time                                  `json:"updated_at"`
}

// Fresh reports whether the state has never been initialised.
func (s *State) Fresh() bool {
	return s == nil || s.Epoch.Frequency == 0
}

// Store persists engine snapshots after every committed operation.
type Store interface {
	Save(state *State) error
}

// FileStore keeps the snapshot in a JSON file.
type FileStore struct {
	Path string
}

func (f FileStore) Save(state *State) error {
	return SaveState(f.Path, state)
}

// LoadState reads a snapshot from a JSON file. Returns a fresh state if the file doesn't exist.
func LoadState(filePath string) (*State, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{}, nil
		}
		return nil, err
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode state %s: %w", filePath, err)
	}
	state.normalize()
	return &state, nil
}

// SaveState writes the snapshot to a JSON file, replacing it atomically.
func SaveState(filePath string, state *State) error {
	state.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}

// normalize fills nil amounts left by fields missing from older snapshots.
func (s *State) normalize() {
	l := &s.Ledger
	for _, p := range []*math.Int{
		&l.LockedBasis, &l.PendingDeposits, &l.PendingWithdrawals, &l.PendingPayoffs,
		&l.HeldShares, &l.NewHeldShares, &l.UnclaimedShares, &l.TotalSupply,
		&l.TotalDeposit, &l.MaxDeposit, &l.RescuableDeposits, &l.RescuePrice,
	} {
		*p = units.Normalize(*p)
	}
	if s.Deposits == nil {
		s.Deposits = make(map[model.Account]model.DepositReceipt)
	}
	for acct, r := range s.Deposits {
		s.Deposits[acct] = normalizeDeposit(r)
	}
	if s.Withdrawals == nil {
		s.Withdrawals = make(map[model.Account]model.WithdrawalReceipt)
	}
	for acct, w := range s.Withdrawals {
		w.Shares = units.Normalize(w.Shares)
		s.Withdrawals[acct] = w
	}
	if s.Balances == nil {
		s.Balances = make(map[model.Account]math.Int)
	}
	for acct, b := range s.Balances {
		s.Balances[acct] = units.Normalize(b)
	}
	if s.NAV == nil {
		s.NAV = make(map[int64]math.Int)
	}
	if s.Roles == nil {
		s.Roles = make(map[model.Account][]Role)
	}
}

func normalizeDeposit(r model.DepositReceipt) model.DepositReceipt {
	r.PendingAmount = units.Normalize(r.PendingAmount)
	r.UnredeemedShares = units.Normalize(r.UnredeemedShares)
	r.CumulativeAmount = units.Normalize(r.CumulativeAmount)
	return r
}

func newLedger(maxDeposit math.Int) model.Ledger {
	return model.Ledger{
		LockedBasis:        units.Zero(),
		PendingDeposits:    units.Zero(),
		PendingWithdrawals: units.Zero(),
		PendingPayoffs:     units.Zero(),
		HeldShares:         units.Zero(),
		NewHeldShares:      units.Zero(),
		UnclaimedShares:    units.Zero(),
		TotalSupply:        units.Zero(),
		TotalDeposit:       units.Zero(),
		MaxDeposit:         units.Normalize(maxDeposit),
		RescuableDeposits:  units.Zero(),
		RescuePrice:        units.Zero(),
	}
}
