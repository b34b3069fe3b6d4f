// Package metrics counts run outcomes. The process is a batch job, so the
// registry is exported once at the end as a node-exporter textfile.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "scout_responder"

// Run holds the counters of one process run. A nil *Run is a no-op.
type Run struct {
	registry       *prometheus.Registry
	candidates     *prometheus.CounterVec
	submissions    *prometheus.CounterVec
	ledgerFailures *prometheus.CounterVec
	modeDuration   *prometheus.GaugeVec
	lastRun        prometheus.Gauge
}

func NewRun() *Run {
	r := &Run{
		registry: prometheus.NewRegistry(),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Processed candidates by mode and outcome",
		}, []string{"mode", "outcome"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Scout submissions by mode and terminal state",
		}, []string{"mode", "state"}),
		ledgerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_failures_total",
			Help:      "Failed ledger deliveries by destination",
		}, []string{"destination"}),
		modeDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mode_duration_seconds",
			Help:      "Wall time of the last run of each mode",
		}, []string{"mode"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the run finished",
		}),
	}

	r.registry.MustRegister(r.candidates, r.submissions, r.ledgerFailures, r.modeDuration, r.lastRun)
	return r
}

func (r *Run) Candidate(mode, outcome string) {
	if r == nil {
		return
	}
	r.candidates.WithLabelValues(mode, outcome).Inc()
}

func (r *Run) Submission(mode, state string) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(mode, state).Inc()
}

func (r *Run) LedgerFailure(destination string) {
	if r == nil {
		return
	}
	r.ledgerFailures.WithLabelValues(destination).Inc()
}

func (r *Run) ModeDuration(mode string, d time.Duration) {
	if r == nil {
		return
	}
	r.modeDuration.WithLabelValues(mode).Set(d.Seconds())
}

// WriteTextfile stamps the finish time and writes the registry to path.
func (r *Run) WriteTextfile(path string, finished time.Time) error {
	if r == nil || path == "" {
		return nil
	}
	r.lastRun.Set(float64(finished.Unix()))
	return prometheus.WriteToTextfile(path, r.registry)
}
