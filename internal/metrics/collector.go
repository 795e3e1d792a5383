// Package metrics provides Prometheus metrics for go-spawn.
//
// The collector implements the spawn.Observer interface, so wiring it into
// a spawn.Config is enough to account for every spawn made through that
// config.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	spawn "github.com/randomizedcoder/go-spawn"
)

var (
	spawnInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "spawn_info",
			Help: "Information about the go-spawn instance (value always 1)",
		},
		[]string{"version"},
	)

	spawnStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spawn_started_total",
			Help: "Total processes successfully started",
		},
	)

	spawnRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "spawn_running",
			Help: "Processes currently running",
		},
	)

	spawnSettledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spawn_settled_total",
			Help: "Settled spawns by outcome (success, error, signal, launch_failure)",
		},
		[]string{"outcome"},
	)

	spawnSignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spawn_signals_total",
			Help: "Signal-terminated spawns by signal name",
		},
		[]string{"signal"},
	)

	spawnLaunchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spawn_launch_failures_total",
			Help: "Spawns where the process never started, by OS error code",
		},
		[]string{"code"},
	)

	spawnDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "spawn_duration_seconds",
			Help:    "Process run duration from start to settlement",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 18), // 1ms .. ~130s
		},
	)
)

// Outcome labels for spawn_settled_total.
const (
	OutcomeSuccess       = "success"
	OutcomeError         = "error"
	OutcomeSignal        = "signal"
	OutcomeLaunchFailure = "launch_failure"
)

// Collector records spawn lifecycle events into Prometheus metrics and
// keeps running totals for the end-of-run summary.
type Collector struct {
	mu           sync.Mutex
	totalStarts  int64
	totalSettled int64
	outcomes     map[string]int64
}

// CollectorConfig holds configuration for the collector.
type CollectorConfig struct {
	Version string
}

// NewCollector creates a collector registered on the default registry.
func NewCollector(cfg CollectorConfig) *Collector {
	return NewCollectorWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewCollectorWithRegistry creates a collector with a custom registry.
// Useful for testing.
func NewCollectorWithRegistry(cfg CollectorConfig, registry prometheus.Registerer) *Collector {
	c := &Collector{
		outcomes: make(map[string]int64),
	}

	registry.MustRegister(
		spawnInfo,
		spawnStartedTotal,
		spawnRunning,
		spawnSettledTotal,
		spawnSignalsTotal,
		spawnLaunchFailuresTotal,
		spawnDurationSeconds,
	)

	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	spawnInfo.WithLabelValues(version).Set(1)

	return c
}

// Started implements spawn.Observer.
func (c *Collector) Started(pid int) {
	spawnStartedTotal.Inc()
	spawnRunning.Inc()

	c.mu.Lock()
	c.totalStarts++
	c.mu.Unlock()
}

// Settled implements spawn.Observer. It classifies the settlement into an
// outcome label and records the run duration when a process actually ran.
func (c *Collector) Settled(res *spawn.Result, err error) {
	outcome := OutcomeSuccess
	var duration time.Duration
	ran := true

	if err == nil {
		duration = res.Duration
	} else if e, ok := spawn.AsError(err); ok {
		switch {
		case e.LaunchFailed():
			outcome = OutcomeLaunchFailure
			ran = false
			code := e.Code
			if code == "" {
				code = "unknown"
			}
			spawnLaunchFailuresTotal.WithLabelValues(code).Inc()
		case e.Signaled():
			outcome = OutcomeSignal
			duration = e.Duration
			spawnSignalsTotal.WithLabelValues(e.Signal).Inc()
		default:
			outcome = OutcomeError
			duration = e.Duration
		}
	} else {
		outcome = OutcomeError
		ran = false
	}

	spawnSettledTotal.WithLabelValues(outcome).Inc()
	if ran {
		spawnRunning.Dec()
		spawnDurationSeconds.Observe(duration.Seconds())
	}

	c.mu.Lock()
	c.totalSettled++
	c.outcomes[outcome]++
	c.mu.Unlock()
}

// TotalStarts returns the number of processes started.
func (c *Collector) TotalStarts() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalStarts
}

// TotalSettled returns the number of settled spawns.
func (c *Collector) TotalSettled() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalSettled
}

// Outcomes returns a copy of the per-outcome settlement counts.
func (c *Collector) Outcomes() map[string]int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.outcomes))
	for k, v := range c.outcomes {
		out[k] = v
	}
	return out
}

// Ensure Collector satisfies the library's observer contract.
var _ spawn.Observer = (*Collector)(nil)
