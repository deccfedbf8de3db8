package recorder

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

func openTest(t *testing.T) *SQLiteRecorder {
	t.Helper()
	r, err := NewSQLiteRecorder(filepath.Join(t.TempDir(), "vault.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestSQLiteRecorder_Rolls(t *testing.T) {
	r := openTest(t)
	e1 := time.Date(2026, 1, 6, 0, 0, 0, 0, time.UTC)

	for i, nav := range []string{"1", "1.234567890123456789"} {
		closed := e1.Add(time.Duration(i) * 24 * time.Hour)
		require.NoError(t, r.RecordRoll(&model.RollReport{
			ID:                 "roll-" + nav,
			ClosedEpoch:        closed,
			NextEpoch:          closed.Add(24 * time.Hour),
			PortfolioValue:     units.MustParse("150"),
			Payoff:             units.Zero(),
			NAV:                units.MustParse(nav),
			MintedShares:       units.MustParse("150"),
			SettledShares:      units.Zero(),
			SettledValue:       units.Zero(),
			TotalSupply:        units.MustParse("150"),
			LockedBasis:        units.MustParse("150"),
			PendingWithdrawals: units.Zero(),
			PendingPayoffs:     units.Zero(),
			Dead:               i == 1,
			DiedThisRoll:       i == 1,
			RolledAt:           closed.Add(time.Minute),
		}))
	}

	got, err := r.RecentRolls(10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "roll-1.234567890123456789", got[0].ID)
	assert.Equal(t, "1234567890123456789", got[0].NAV.String())
	assert.True(t, got[0].Dead)
	assert.True(t, got[0].ClosedEpoch.Equal(e1.Add(24*time.Hour)))
	assert.False(t, got[1].DiedThisRoll)

	one, err := r.RecentRolls(1)
	require.NoError(t, err)
	assert.Len(t, one, 1)
}

func TestSQLiteRecorder_AccountHistory(t *testing.T) {
	r := openTest(t)
	at := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	events := []*model.AccountEvent{
		{Type: model.EventDeposit, Account: "alice", Epoch: 1, Amount: units.MustParse("100"), Shares: units.Zero(), At: at},
		{Type: model.EventDeposit, Account: "bob", Epoch: 1, Amount: units.MustParse("50"), Shares: units.Zero(), At: at},
		{Type: model.EventTransfer, Account: "bob", Counterparty: "alice", Epoch: 2, Amount: units.MustParse("10"), Shares: units.MustParse("8"), At: at.Add(time.Hour)},
	}
	for _, e := range events {
		require.NoError(t, r.RecordAccountEvent(e))
	}

	got, err := r.AccountHistory("alice", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.EventTransfer, got[0].Type)
	assert.Equal(t, model.Account("alice"), got[0].Counterparty)
	assert.Equal(t, "8000000000000000000", got[0].Shares.String())
	assert.Equal(t, model.EventDeposit, got[1].Type)
	assert.Equal(t, int64(1), got[1].Epoch)
}

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoopRecorder()
	assert.NoError(t, r.RecordRoll(&model.RollReport{}))
	rolls, err := r.RecentRolls(5)
	assert.NoError(t, err)
	assert.Empty(t, rolls)
	assert.NoError(t, r.Close())
}
