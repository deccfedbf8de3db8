package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EpochVault/internal/custody"
	"EpochVault/internal/payoff"
	"EpochVault/internal/units"
	"EpochVault/internal/valuation"
	"EpochVault/internal/vault"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCustodyPath(t *testing.T) {
	assert.Equal(t, filepath.Join("data", "custody_usdc.json"), custodyPath("data/vault_state.json", "USDC"))
}

func TestDaemonStore_SavesCustodyWithVault(t *testing.T) {
	dir := t.TempDir()
	stateFile := filepath.Join(dir, "vault_state.json")
	basePath := custodyPath(stateFile, "USDC")

	base := custody.NewLedger("USDC")
	require.NoError(t, base.Mint("alice", units.Whole(100)))
	store := &daemonStore{
		vault:   vault.FileStore{Path: stateFile},
		ledgers: map[string]*custody.Ledger{basePath: base},
	}

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	eng, err := vault.New(vault.Options{
		Self:       "vault",
		Admin:      "ops",
		Roller:     "keeper",
		Frequency:  24 * time.Hour,
		MaxDeposit: units.Whole(1000),
		Now:        func() time.Time { return now },
		Oracle:     payoff.NewBook(),
		Valuer:     &valuation.Portfolio{Holder: "vault", Base: base},
		Custodian:  base,
		Store:      store,
	}, nil)
	require.NoError(t, err)
	require.NoError(t, eng.Deposit("alice", "alice", units.Whole(40)))

	reloaded, err := custody.LoadLedger(basePath, "USDC")
	require.NoError(t, err)
	assert.Equal(t, units.Whole(40).String(), reloaded.BalanceOf("vault").String())
	assert.Equal(t, units.Whole(60).String(), reloaded.BalanceOf("alice").String())

	state, err := vault.LoadState(stateFile)
	require.NoError(t, err)
	assert.Equal(t, units.Whole(40).String(), state.Ledger.PendingDeposits.String())
}

func TestServe_RejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("vault:\n  frequency: 24h\n"), 0o644))

	_, err := execute(t, "serve", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vault.admin is required")

	_, err = execute(t, "--config", filepath.Join(dir, "missing.yaml"))
	require.Error(t, err, "the root command serves too")
}
