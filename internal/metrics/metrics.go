package metrics

import (
	"time"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"EpochVault/internal/model"
	"EpochVault/internal/units"
)

const namespace = "epochvault"

// Metrics exports the vault's accounting state. A nil *Metrics is a valid no-op.
type Metrics struct {
	navPerShare     prometheus.Gauge
	totalSupply     prometheus.Gauge
	lockedBasis     prometheus.Gauge
	pending         *prometheus.GaugeVec
	heldShares      prometheus.Gauge
	dead            prometheus.Gauge
	rollsTotal      *prometheus.CounterVec
	rollDuration    prometheus.Histogram
	operationsTotal *prometheus.CounterVec
}

// New registers the vault metrics on reg. Tests pass a fresh prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		navPerShare: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nav_per_share",
			Help:      "NAV per share recorded at the last roll, in whole base units",
		}),
		totalSupply: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "total_supply_shares",
			Help:      "Total share supply",
		}),
		lockedBasis: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "locked_basis",
			Help:      "Capital locked to back outstanding shares (v0)",
		}),
		pending: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_amount",
			Help:      "Capital queued per bucket",
		}, []string{"bucket"}),
		heldShares: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "held_shares",
			Help:      "Shares held by the vault for queued exits",
		}),
		dead: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dead",
			Help:      "1 once the vault is dead",
		}),
		rollsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rolls_total",
			Help:      "Epoch rolls by result",
		}, []string{"result"}),
		rollDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "roll_duration_seconds",
			Help:      "Epoch roll duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
		operationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Vault operations by name and result",
		}, []string{"operation", "result"}),
	}
}

// ObserveLedger refreshes the state gauges.
func (m *Metrics) ObserveLedger(l model.Ledger) {
	if m == nil {
		return
	}
	m.totalSupply.Set(toFloat(l.TotalSupply))
	m.lockedBasis.Set(toFloat(l.LockedBasis))
	m.heldShares.Set(toFloat(l.HeldShares.Add(l.NewHeldShares)))
	m.pending.WithLabelValues("deposits").Set(toFloat(l.PendingDeposits))
	m.pending.WithLabelValues("withdrawals").Set(toFloat(l.PendingWithdrawals))
	m.pending.WithLabelValues("payoffs").Set(toFloat(l.PendingPayoffs))
	m.pending.WithLabelValues("rescuable_deposits").Set(toFloat(l.RescuableDeposits))
	if l.Dead {
		m.dead.Set(1)
	} else {
		m.dead.Set(0)
	}
}

// ObserveRoll records a committed roll.
func (m *Metrics) ObserveRoll(r *model.RollReport, took time.Duration) {
	if m == nil {
		return
	}
	m.rollDuration.Observe(took.Seconds())
	result := "live"
	if r.Dead {
		result = "dead"
	}
	m.rollsTotal.WithLabelValues(result).Inc()
	if !r.Dead {
		m.navPerShare.Set(toFloat(r.NAV))
	}
}

// ObserveRollFailure counts a roll that was rejected or aborted.
func (m *Metrics) ObserveRollFailure() {
	if m == nil {
		return
	}
	m.rollsTotal.WithLabelValues("error").Inc()
}

// ObserveOperation counts a user or admin operation.
func (m *Metrics) ObserveOperation(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operationsTotal.WithLabelValues(op, result).Inc()
}

func toFloat(x math.Int) float64 {
	return units.Decimal(x).InexactFloat64()
}
