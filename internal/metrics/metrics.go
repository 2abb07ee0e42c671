// Package metrics provides the process-wide counter and gauge registry
package metrics

import (
	"sync"
)

// Metric names used across the application.
const (
	DownloadsTotal       = "downloads.total"
	DownloadsSuccess     = "downloads.success"
	DownloadsFailure     = "downloads.failure"
	DownloadsDenied      = "downloads.denied"
	DownloadsBlocked     = "downloads.blocked"
	DownloadsUnsupported = "downloads.unsupported"
	DownloadsCacheHits   = "downloads.cache_hits"
	DownloadsActive      = "downloads.active"
	QueueInUse           = "downloads.queue_in_use"
	QueueAvailable       = "downloads.queue_available"
	WaitTimeMsTotal      = "downloads.wait_time_ms_total"
	WaitTimeEvents       = "downloads.wait_time_events"
	DurationMsTotal      = "downloads.duration_ms_total"
	DurationEvents       = "downloads.duration_events"
	PendingTokens        = "downloads.pending_tokens"
	WaitLastMs           = "downloads.wait_last_ms"
)

// Registry holds named counters and gauges. Counters only grow; gauges are
// point-in-time values. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	counters map[string]int64
	gauges   map[string]int64
}

// NewRegistry creates an empty metrics registry
func NewRegistry() *Registry {
	return &Registry{
		counters: make(map[string]int64),
		gauges:   make(map[string]int64),
	}
}

// Inc increments a counter by one
func (r *Registry) Inc(name string) {
	r.Add(name, 1)
}

// Add increments a counter by delta. Negative deltas are ignored so counters
// stay monotonic.
func (r *Registry) Add(name string, delta int64) {
	if delta < 0 {
		return
	}
	r.mu.Lock()
	r.counters[name] += delta
	r.mu.Unlock()
}

// SetGauge records a point-in-time value
func (r *Registry) SetGauge(name string, value int64) {
	r.mu.Lock()
	r.gauges[name] = value
	r.mu.Unlock()
}

// Counter returns the current value of a counter
func (r *Registry) Counter(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[name]
}

// Gauge returns the current value of a gauge
func (r *Registry) Gauge(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gauges[name]
}

// Snapshot returns a copy of all counters and gauges by name
func (r *Registry) Snapshot() map[string]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int64, len(r.counters)+len(r.gauges))
	for name, v := range r.counters {
		out[name] = v
	}
	for name, v := range r.gauges {
		out[name] = v
	}
	return out
}
