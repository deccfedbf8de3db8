package custody

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cosmossdk.io/math"

	"EpochVault/internal/model"
)

type ledgerFile struct {
	Symbol   string                     `json:"symbol"`
	Supply   math.Int                   `json:"supply"`
	Balances map[model.Account]math.Int `json:"balances"`
}

// LoadLedger reads a ledger saved by SaveFile. Returns an empty ledger if the file doesn't exist.
func LoadLedger(path, symbol string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLedger(symbol), nil
		}
		return nil, err
	}
	var f ledgerFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", path, err)
	}
	if f.Symbol != symbol {
		return nil, fmt.Errorf("ledger %s holds %s, want %s", path, f.Symbol, symbol)
	}
	l := NewLedger(symbol)
	for acct, b := range f.Balances {
		if b.IsNil() || b.IsNegative() {
			return nil, fmt.Errorf("ledger %s: bad balance for %s", path, acct)
		}
		l.set(acct, b)
		l.supply = l.supply.Add(b)
	}
	return l, nil
}

// SaveFile writes the balances to a JSON file, replacing it atomically.
func (l *Ledger) SaveFile(path string) error {
	l.mu.Lock()
	f := ledgerFile{Symbol: l.symbol, Supply: l.supply, Balances: make(map[model.Account]math.Int, len(l.balances))}
	for acct, b := range l.balances {
		f.Balances[acct] = b
	}
	l.mu.Unlock()

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
