// Package stats aggregates run statistics for repeated spawn invocations.
// Durations are fed into a t-digest so quantiles stay cheap regardless of
// how many runs the CLI performs.
package stats

import (
	"sync"
	"time"

	"github.com/influxdata/tdigest"

	spawn "github.com/randomizedcoder/go-spawn"
)

// Aggregator accumulates per-run outcomes. Safe for concurrent use.
type Aggregator struct {
	mu sync.Mutex

	digest *tdigest.TDigest

	count          int64
	succeeded      int64
	failed         int64
	signaled       int64
	launchFailures int64

	// Runs that contributed a duration. Launch failures and failures
	// with no classification never do, so this is the divisor for the
	// mean, not count.
	measured int64

	minDuration   time.Duration
	maxDuration   time.Duration
	totalDuration time.Duration

	lastStatus int
	lastSignal string

	startTime time.Time
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		digest:    tdigest.NewWithCompression(100), // ~100 centroids, ~10KB
		startTime: time.Now(),
	}
}

// Record adds one settled run. err is the spawn failure, nil on success.
func (a *Aggregator) Record(res *spawn.Result, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.count++

	if err == nil {
		a.succeeded++
		a.recordDuration(res.Duration)
		a.lastStatus = res.Status
		a.lastSignal = ""
		return
	}

	e, ok := spawn.AsError(err)
	if !ok {
		a.failed++
		return
	}

	switch {
	case e.LaunchFailed():
		a.launchFailures++
	case e.Signaled():
		a.signaled++
		a.recordDuration(e.Duration)
	default:
		a.failed++
		a.recordDuration(e.Duration)
	}
	a.lastStatus = e.Status
	a.lastSignal = e.Signal
}

func (a *Aggregator) recordDuration(d time.Duration) {
	a.measured++
	a.digest.Add(d.Seconds(), 1)
	a.totalDuration += d
	if a.minDuration == 0 || d < a.minDuration {
		a.minDuration = d
	}
	if d > a.maxDuration {
		a.maxDuration = d
	}
}

// Snapshot is a point-in-time copy of the aggregate.
type Snapshot struct {
	Count          int64
	Succeeded      int64
	Failed         int64
	Signaled       int64
	LaunchFailures int64

	// Measured is how many runs the duration figures are computed over.
	Measured int64

	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
	P50  time.Duration
	P95  time.Duration
	P99  time.Duration

	LastStatus int
	LastSignal string

	Elapsed time.Duration
}

// Snapshot returns the current aggregate values.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := Snapshot{
		Count:          a.count,
		Succeeded:      a.succeeded,
		Failed:         a.failed,
		Signaled:       a.signaled,
		LaunchFailures: a.launchFailures,
		Measured:       a.measured,
		Min:            a.minDuration,
		Max:            a.maxDuration,
		LastStatus:     a.lastStatus,
		LastSignal:     a.lastSignal,
		Elapsed:        time.Since(a.startTime),
	}

	if a.measured > 0 {
		snap.Mean = a.totalDuration / time.Duration(a.measured)
		snap.P50 = secondsToDuration(a.digest.Quantile(0.50))
		snap.P95 = secondsToDuration(a.digest.Quantile(0.95))
		snap.P99 = secondsToDuration(a.digest.Quantile(0.99))
	}
	return snap
}

// Count returns the number of recorded runs.
func (a *Aggregator) Count() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// StartTime returns when the aggregator was created.
func (a *Aggregator) StartTime() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.startTime
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
