// Package progress converts a high-frequency stream of extractor progress
// events into a low-frequency stream of user-visible status updates.
package progress

import (
	"fmt"
	"sync"
	"time"
)

// Update is one progress event from the extractor
type Update struct {
	Percent    float64
	Bytes      int64
	TotalBytes int64
	Speed      float64 // bytes per second
	ETA        time.Duration
}

// Text renders the update as a user-facing status line
func (u Update) Text() string {
	if u.TotalBytes > 0 {
		return fmt.Sprintf("Downloading... %.1f%% of %.1f MB at %.1f KB/s",
			u.Percent, float64(u.TotalBytes)/1024/1024, u.Speed/1024)
	}
	return fmt.Sprintf("Downloading... %.1f MB at %.1f KB/s",
		float64(u.Bytes)/1024/1024, u.Speed/1024)
}

type emitState struct {
	lastEmit    time.Time
	lastPercent float64
	emitted     bool
}

// Throttle decides which progress events become outbound message edits. An
// event is emitted when it is the first for the job, when the minimum
// interval has elapsed since the last emission, or when the percentage moved
// by at least the configured step. Terminal updates are sent by the caller
// directly and bypass the throttle entirely.
type Throttle struct {
	mu          sync.Mutex
	minInterval time.Duration
	percentStep float64
	jobs        map[string]*emitState

	now func() time.Time
}

// NewThrottle creates a throttle with the given emission policy
func NewThrottle(minInterval time.Duration, percentStep float64) *Throttle {
	return &Throttle{
		minInterval: minInterval,
		percentStep: percentStep,
		jobs:        make(map[string]*emitState),
		now:         time.Now,
	}
}

// Observe reports whether this update should be emitted for the job
func (t *Throttle) Observe(jobID string, u Update) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	s, ok := t.jobs[jobID]
	if !ok {
		s = &emitState{}
		t.jobs[jobID] = s
	}

	emit := !s.emitted ||
		now.Sub(s.lastEmit) >= t.minInterval ||
		(t.percentStep > 0 && u.Percent-s.lastPercent >= t.percentStep)

	if emit {
		s.emitted = true
		s.lastEmit = now
		s.lastPercent = u.Percent
	}
	return emit
}

// Close drops the per-job state once the job reaches a terminal state
func (t *Throttle) Close(jobID string) {
	t.mu.Lock()
	delete(t.jobs, jobID)
	t.mu.Unlock()
}

// Tracked returns the number of jobs with live throttle state
func (t *Throttle) Tracked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.jobs)
}
