package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

func TestObserveRollAndOperations(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveRoll(&model.RollReport{NAV: units.MustParse("1.5")}, 10*time.Millisecond)
	m.ObserveRoll(&model.RollReport{NAV: units.Zero(), Dead: true}, time.Millisecond)
	m.ObserveRollFailure()
	m.ObserveOperation("deposit", nil)
	m.ObserveOperation("deposit", errors.New("boom"))

	assert.Equal(t, 1.5, testutil.ToFloat64(m.navPerShare), "dead roll keeps the last live NAV")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollsTotal.WithLabelValues("live")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollsTotal.WithLabelValues("dead")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rollsTotal.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("deposit", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("deposit", "error")))
}

func TestObserveLedger(t *testing.T) {
	m := New(prometheus.NewRegistry())
	l := model.Ledger{
		LockedBasis:        units.Whole(300),
		PendingDeposits:    units.Whole(10),
		PendingWithdrawals: units.Whole(20),
		PendingPayoffs:     units.Whole(5),
		HeldShares:         units.Whole(7),
		NewHeldShares:      units.Whole(3),
		TotalSupply:        units.Whole(150),
		RescuableDeposits:  units.Zero(),
		Dead:               true,
	}
	m.ObserveLedger(l)

	assert.Equal(t, 150.0, testutil.ToFloat64(m.totalSupply))
	assert.Equal(t, 300.0, testutil.ToFloat64(m.lockedBasis))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.heldShares))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.pending.WithLabelValues("withdrawals")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dead))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveLedger(model.Ledger{})
	m.ObserveRoll(&model.RollReport{}, 0)
	m.ObserveRollFailure()
	m.ObserveOperation("x", nil)
}
