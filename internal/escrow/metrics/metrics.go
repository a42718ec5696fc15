package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the escrow engine.
type Metrics struct {
	// Operation outcomes by operation and result ("ok" or the error code)
	OperationsTotal *prometheus.CounterVec

	// Operation latency by operation
	OperationLatency *prometheus.HistogramVec

	// Current aggregate committed amount
	AggregateAmount prometheus.Gauge

	// Active participants in the ledger
	ActiveInvestments prometheus.Gauge

	// Current cycle by name; exactly one label carries 1
	CycleState *prometheus.GaugeVec

	// Notices dropped on a full publisher buffer
	NoticesDropped prometheus.Counter
}

// New creates a Metrics instance with all escrow metrics registered.
func New() *Metrics {
	return &Metrics{
		OperationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdvault_escrow_operations_total",
			Help: "Total escrow operations by operation and result",
		}, []string{"operation", "result"}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crowdvault_escrow_operation_duration_seconds",
			Help:    "Duration of escrow operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),

		AggregateAmount: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crowdvault_escrow_aggregate_amount",
			Help: "Sum of active investment amounts held by the ledger",
		}),

		ActiveInvestments: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "crowdvault_escrow_active_investments",
			Help: "Number of active investments in the ledger",
		}),

		CycleState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "crowdvault_escrow_cycle_state",
			Help: "Current offer cycle; the active cycle's label carries 1",
		}, []string{"cycle"}),

		NoticesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "crowdvault_escrow_notices_dropped_total",
			Help: "Notices dropped because the publisher buffer was full",
		}),
	}
}

// ObserveOperation records one operation's outcome and duration.
func (m *Metrics) ObserveOperation(operation, result string, d time.Duration) {
	if m != nil {
		m.OperationsTotal.WithLabelValues(operation, result).Inc()
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}

// SetAggregate updates the aggregate and participant gauges.
func (m *Metrics) SetAggregate(amount uint64, participants int) {
	if m != nil {
		m.AggregateAmount.Set(float64(amount))
		m.ActiveInvestments.Set(float64(participants))
	}
}

// SetCycle marks the given cycle as active and clears the others.
func (m *Metrics) SetCycle(cycle string, all []string) {
	if m != nil {
		for _, c := range all {
			value := 0.0
			if c == cycle {
				value = 1.0
			}
			m.CycleState.WithLabelValues(c).Set(value)
		}
	}
}

// IncrementNoticesDropped counts a dropped notice.
func (m *Metrics) IncrementNoticesDropped() {
	if m != nil {
		m.NoticesDropped.Inc()
	}
}
