package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"EpochVault/internal/custody"
	"EpochVault/internal/vault"
)

// daemonStore saves the vault snapshot together with the custody balances it accounts for, so
// a restart never sees one without the other.
type daemonStore struct {
	vault   vault.FileStore
	ledgers map[string]*custody.Ledger // path -> ledger
}

func (s *daemonStore) Save(state *vault.State) error {
	for path, l := range s.ledgers {
		if err := l.SaveFile(path); err != nil {
			return fmt.Errorf("save %s custody: %w", l.Symbol(), err)
		}
	}
	return s.vault.Save(state)
}

func custodyPath(stateFile, symbol string) string {
	return filepath.Join(filepath.Dir(stateFile), "custody_"+strings.ToLower(symbol)+".json")
}
