// Package metrics exposes refresh statistics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/tomoru1741/Bloxd-Tools/pkg/plugin"
)

const namespace = "bloxd"

// Collector holds every metric the tool reports. It implements
// pipeline.Recorder.
type Collector struct {
	relayAttempts *prometheus.CounterVec
	relayLatency  *prometheus.HistogramVec
	strategies    *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   prometheus.Histogram
	items         prometheus.Gauge
	dictEntries   prometheus.Gauge
	coverage      prometheus.Gauge
}

// New creates a Collector and registers it with reg. A nil reg uses a fresh
// registry, which keeps tests independent.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	c := &Collector{
		relayAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relay_attempts_total",
			Help:      "Relay fetch attempts by relay and result.",
		}, []string{"relay", "result"}),
		relayLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "relay_attempt_seconds",
			Help:      "Latency of relay fetch attempts.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 8),
		}, []string{"relay"}),
		strategies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_results_total",
			Help:      "Extraction strategy results by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_runs_total",
			Help:      "Item-list extraction runs by outcome.",
		}, []string{"outcome"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_run_seconds",
			Help:      "Duration of item-list extraction runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 8),
		}),
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "Items in the last extracted list.",
		}),
		dictEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dictionary_entries",
			Help:      "Entries in the loaded dictionary.",
		}),
		coverage: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "translation_coverage_percent",
			Help:      "Share of items with a non-empty translation.",
		}),
	}
	reg.MustRegister(c.relayAttempts, c.relayLatency, c.strategies, c.runs,
		c.runDuration, c.items, c.dictEntries, c.coverage)
	return c
}

// ObserveAttempt records one relay try. Pass it to
// fetcher.WithAttemptObserver.
func (c *Collector) ObserveAttempt(a plugin.Attempt) {
	result := "ok"
	if a.Err != nil {
		result = "error"
	}
	c.relayAttempts.WithLabelValues(a.Relay, result).Inc()
	c.relayLatency.WithLabelValues(a.Relay).Observe(a.Duration.Seconds())
}

// ObserveStrategy records one strategy result on one chunk.
func (c *Collector) ObserveStrategy(strategy, outcome string, items int) {
	c.strategies.WithLabelValues(strategy, outcome).Inc()
}

// ObserveRun records a finished extraction run.
func (c *Collector) ObserveRun(outcome string, d time.Duration, items int) {
	c.runs.WithLabelValues(outcome).Inc()
	c.runDuration.Observe(d.Seconds())
	if outcome == "success" {
		c.items.Set(float64(items))
	}
}

// SetDictionary records the loaded dictionary size and current coverage.
func (c *Collector) SetDictionary(entries int, coverage float64) {
	c.dictEntries.Set(float64(entries))
	c.coverage.Set(coverage)
}
