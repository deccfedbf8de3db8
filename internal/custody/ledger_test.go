package custody

import (
	"path/filepath"
	"testing"

	"cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EpochVault/internal/units"
)

func TestTransfer(t *testing.T) {
	l := NewLedger("USDC")
	require.NoError(t, l.Mint("alice", units.Whole(100)))

	require.NoError(t, l.Transfer("alice", "bob", units.Whole(40)))
	assert.True(t, l.BalanceOf("alice").Equal(units.Whole(60)))
	assert.True(t, l.BalanceOf("bob").Equal(units.Whole(40)))
	assert.True(t, l.TotalSupply().Equal(units.Whole(100)))
}

func TestTransfer_InsufficientLeavesBalancesUntouched(t *testing.T) {
	l := NewLedger("USDC")
	require.NoError(t, l.Mint("alice", units.Whole(10)))

	err := l.Transfer("alice", "bob", units.Whole(11))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	assert.True(t, l.BalanceOf("alice").Equal(units.Whole(10)))
	assert.True(t, l.BalanceOf("bob").IsZero())
}

func TestTransfer_RejectsInvalidAmounts(t *testing.T) {
	l := NewLedger("USDC")
	assert.ErrorIs(t, l.Transfer("a", "b", math.Int{}), ErrInvalidAmount)
	assert.ErrorIs(t, l.Transfer("a", "b", units.Whole(-1)), ErrInvalidAmount)
	assert.NoError(t, l.Transfer("a", "b", units.Zero()))
}

func TestBurn(t *testing.T) {
	l := NewLedger("USDC")
	require.NoError(t, l.Mint("vault", units.Whole(100)))
	require.NoError(t, l.Burn("vault", units.Whole(100)))
	assert.True(t, l.BalanceOf("vault").IsZero())
	assert.True(t, l.TotalSupply().IsZero())
	assert.ErrorIs(t, l.Burn("vault", units.One), ErrInsufficientBalance)
}

func TestSaveAndLoadLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custody", "usdc.json")
	l := NewLedger("USDC")
	require.NoError(t, l.Mint("alice", units.Whole(70)))
	require.NoError(t, l.Mint("vault", units.MustParse("0.000000000000000001")))
	require.NoError(t, l.SaveFile(path))

	got, err := LoadLedger(path, "USDC")
	require.NoError(t, err)
	assert.True(t, got.BalanceOf("alice").Equal(units.Whole(70)))
	assert.Equal(t, "1", got.BalanceOf("vault").String())
	assert.True(t, got.TotalSupply().Equal(l.TotalSupply()))

	_, err = LoadLedger(path, "WETH")
	assert.Error(t, err)

	empty, err := LoadLedger(filepath.Join(t.TempDir(), "none.json"), "USDC")
	require.NoError(t, err)
	assert.True(t, empty.TotalSupply().IsZero())
}
