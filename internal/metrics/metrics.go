// Package metrics exposes harvest counters through a private Prometheus
// registry. A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/law-makers/harvest/pkg/models"
)

// Attempt outcomes
const (
	OutcomeSuccess    = "success"
	OutcomeTransient  = "transient"
	OutcomePermanent  = "permanent"
	OutcomeExtraction = "extraction"
	OutcomeCanceled   = "canceled"
	OutcomeCached     = "cached"
)

// Metrics groups the collectors for one process
type Metrics struct {
	registry *prometheus.Registry

	attempts   *prometheus.CounterVec
	results    *prometheus.CounterVec
	submitted  prometheus.Counter
	duplicates prometheus.Counter
	pending    prometheus.Gauge
	rounds     prometheus.Counter
	fetchTime  prometheus.Histogram
}

// New registers all collectors on a fresh registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_attempts_total",
			Help: "Fetch+extract attempts by outcome.",
		}, []string{"outcome"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvest_results_total",
			Help: "Terminal result entries by outcome.",
		}, []string{"outcome"}),
		submitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_items_submitted_total",
			Help: "Unique work items accepted by the collector.",
		}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_items_duplicate_total",
			Help: "Discovered links dropped because their key was already submitted.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvest_items_pending",
			Help: "Submitted work items without a result yet.",
		}),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "harvest_discovery_rounds_total",
			Help: "Extract/advance rounds run by the discovery loop.",
		}),
		fetchTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvest_fetch_duration_seconds",
			Help:    "Duration of successful item fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	m.registry.MustRegister(m.attempts, m.results, m.submitted, m.duplicates, m.pending, m.rounds, m.fetchTime)
	return m
}

// Registry returns the registry backing m
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveAttempt counts one attempt
func (m *Metrics) ObserveAttempt(outcome string) {
	if m == nil {
		return
	}
	m.attempts.WithLabelValues(outcome).Inc()
}

// ObserveFetch records the duration of a successful fetch in seconds
func (m *Metrics) ObserveFetch(seconds float64) {
	if m == nil {
		return
	}
	m.fetchTime.Observe(seconds)
}

// ObserveResult counts a terminal entry
func (m *Metrics) ObserveResult(entry models.ResultEntry) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if entry.Failure != nil {
		outcome = string(entry.Failure.Kind)
	}
	m.results.WithLabelValues(outcome).Inc()
}

// ObserveSubmit counts accepted and duplicate links of one batch
func (m *Metrics) ObserveSubmit(accepted, duplicates int) {
	if m == nil {
		return
	}
	m.submitted.Add(float64(accepted))
	m.duplicates.Add(float64(duplicates))
}

// ObserveStats updates the pending gauge
func (m *Metrics) ObserveStats(s models.Stats) {
	if m == nil {
		return
	}
	m.pending.Set(float64(s.Pending()))
}

// ObserveRound counts one discovery round
func (m *Metrics) ObserveRound() {
	if m == nil {
		return
	}
	m.rounds.Inc()
}

// WriteTextfile writes all metrics in the node-exporter textfile format
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
