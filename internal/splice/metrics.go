package splice

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Skip reasons for the switch_skipped counter.
const (
	skipUnselected = "unselected"
	skipUnknown    = "unknown"
)

// Metrics holds the coordinator's Prometheus collectors.
type Metrics struct {
	LockWait      prometheus.Histogram
	LockTimeouts  prometheus.Counter
	Invocations   *prometheus.CounterVec
	Writes        *prometheus.CounterVec
	Skipped       *prometheus.CounterVec
	NewIdentities prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which is what tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "splice",
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring the splice lock, across all attempts.",
			Buckets:   []float64{.001, .01, .1, .5, 1, 5, 20, 60, 300},
		}),
		LockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splice",
			Name:      "lock_timeouts_total",
			Help:      "Lock attempts that timed out and were retried.",
		}),
		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splice",
			Name:      "invocations_total",
			Help:      "Completed splice invocations by outcome.",
		}, []string{"outcome"}),
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splice",
			Name:      "destination_writes_total",
			Help:      "Destination rows written, by sheet and whether the row was created.",
		}, []string{"sheet", "kind"}),
		Skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "splice",
			Name:      "switch_skipped_total",
			Help:      "Switch columns that routed nowhere, by reason.",
		}, []string{"reason"}),
		NewIdentities: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "splice",
			Name:      "new_identities_total",
			Help:      "Identities seen for the first time in the analytics sheet.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.LockWait, m.LockTimeouts, m.Invocations, m.Writes, m.Skipped, m.NewIdentities)
	}
	return m
}

func (m *Metrics) observeLockWait(d time.Duration) {
	m.LockWait.Observe(d.Seconds())
}

func (m *Metrics) write(sheet string, created bool) {
	kind := "updated"
	if created {
		kind = "created"
	}
	m.Writes.WithLabelValues(sheet, kind).Inc()
}

func (m *Metrics) outcome(err error) {
	if err != nil {
		m.Invocations.WithLabelValues("error").Inc()
		return
	}
	m.Invocations.WithLabelValues("ok").Inc()
}
