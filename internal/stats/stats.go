// Package stats keeps rolling latency statistics per request operation.
package stats

import (
	"slices"
	"sync"
	"time"
)

type sample struct {
	at         time.Time
	durationMs int64
	failed     bool
}

// Snapshot aggregates the samples of one operation inside the window.
type Snapshot struct {
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	MinMs  int64   `json:"min_ms"`
	MaxMs  int64   `json:"max_ms"`
	AvgMs  float64 `json:"avg_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
	P99Ms  float64 `json:"p99_ms"`
}

// Recorder collects operation latencies over a rolling window. It is safe
// for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	samples map[string][]sample
	window  time.Duration
	now     func() time.Time
}

func NewRecorder(window time.Duration) *Recorder {
	if window <= 0 {
		window = time.Hour
	}
	return &Recorder{
		samples: make(map[string][]sample),
		window:  window,
		now:     time.Now,
	}
}

// Record adds one completed operation.
func (r *Recorder) Record(op string, d time.Duration, failed bool) {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	r.samples[op] = append(r.prune(r.samples[op], now), sample{at: now, durationMs: ms, failed: failed})
}

// Snapshot returns the aggregate for every operation with samples in the
// window.
func (r *Recorder) Snapshot() map[string]Snapshot {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]Snapshot, len(r.samples))
	for op, ss := range r.samples {
		ss = r.prune(ss, now)
		if len(ss) == 0 {
			delete(r.samples, op)
			continue
		}
		r.samples[op] = ss
		out[op] = aggregate(ss)
	}
	return out
}

func (r *Recorder) prune(ss []sample, now time.Time) []sample {
	cutoff := now.Add(-r.window)
	keep := ss[:0]
	for _, s := range ss {
		if !s.at.Before(cutoff) {
			keep = append(keep, s)
		}
	}
	return keep
}

func aggregate(ss []sample) Snapshot {
	values := make([]int64, 0, len(ss))
	var sum int64
	errs := 0
	for _, s := range ss {
		values = append(values, s.durationMs)
		sum += s.durationMs
		if s.failed {
			errs++
		}
	}
	slices.Sort(values)

	return Snapshot{
		Count:  len(values),
		Errors: errs,
		MinMs:  values[0],
		MaxMs:  values[len(values)-1],
		AvgMs:  float64(sum) / float64(len(values)),
		P50Ms:  percentile(values, 50),
		P95Ms:  percentile(values, 95),
		P99Ms:  percentile(values, 99),
	}
}

// percentile interpolates linearly between the two closest ranks.
func percentile(sorted []int64, pct float64) float64 {
	switch {
	case len(sorted) == 0:
		return 0
	case pct <= 0:
		return float64(sorted[0])
	case pct >= 100:
		return float64(sorted[len(sorted)-1])
	}
	index := float64(len(sorted)-1) * pct / 100
	lower := int(index)
	if lower+1 >= len(sorted) {
		return float64(sorted[lower])
	}
	lo, hi := float64(sorted[lower]), float64(sorted[lower+1])
	return lo + (hi-lo)*(index-float64(lower))
}
