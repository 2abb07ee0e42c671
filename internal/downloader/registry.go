package downloader

import (
	"context"
	"sort"
	"sync"
	"time"

	"mediabandit/pkg/models"
)

// job holds the mutable state of one in-flight download. All transitions go
// through the job's own mutex so admin cancellation is linearizable with the
// job's terminal transition.
type job struct {
	mu sync.Mutex

	req         models.DownloadRequest
	state       models.JobState
	cacheHit    bool
	bytes       int64
	waitStarted time.Time
	waitEnded   time.Time

	cancel    context.CancelFunc
	cancelled bool
}

// setState advances the job's state. Terminal states stick: once a job has
// finished, later transitions are ignored.
func (j *job) setState(state models.JobState) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() {
		return
	}
	j.state = state
}

// requestCancel cancels the job's context if it has not already finished.
// Returns true when the cancellation was delivered.
func (j *job) requestCancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state.Terminal() || j.cancelled {
		return false
	}
	j.cancelled = true
	j.cancel()
	return true
}

func (j *job) wasCancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cancelled
}

func (j *job) snapshot() models.JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return models.JobSnapshot{
		RequestID:   j.req.RequestID,
		UserID:      j.req.UserID,
		ChatID:      j.req.ChatID,
		URL:         j.req.URL,
		Platform:    j.req.Platform,
		State:       j.state,
		CacheHit:    j.cacheHit,
		Bytes:       j.bytes,
		SubmittedAt: j.req.SubmittedAt,
		WaitStarted: j.waitStarted,
		WaitEnded:   j.waitEnded,
	}
}

// registry tracks every live job by request ID
type registry struct {
	mu   sync.Mutex
	jobs map[string]*job
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*job)}
}

func (r *registry) add(j *job) {
	r.mu.Lock()
	r.jobs[j.req.RequestID] = j
	r.mu.Unlock()
}

func (r *registry) remove(requestID string) {
	r.mu.Lock()
	delete(r.jobs, requestID)
	r.mu.Unlock()
}

func (r *registry) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// snapshots returns every live job, oldest submission first
func (r *registry) snapshots() []models.JobSnapshot {
	r.mu.Lock()
	jobs := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()

	out := make([]models.JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.snapshot())
	}
	sort.Slice(out, func(i, k int) bool {
		if out[i].SubmittedAt.Equal(out[k].SubmittedAt) {
			return out[i].RequestID < out[k].RequestID
		}
		return out[i].SubmittedAt.Before(out[k].SubmittedAt)
	})
	return out
}

// cancelUser cancels every live job belonging to userID and returns how many
// cancellations were delivered
func (r *registry) cancelUser(userID int64) int {
	r.mu.Lock()
	jobs := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		if j.req.UserID == userID {
			jobs = append(jobs, j)
		}
	}
	r.mu.Unlock()

	cancelled := 0
	for _, j := range jobs {
		if j.requestCancel() {
			cancelled++
		}
	}
	return cancelled
}

// cancelAll cancels every live job
func (r *registry) cancelAll() int {
	r.mu.Lock()
	jobs := make([]*job, 0, len(r.jobs))
	for _, j := range r.jobs {
		jobs = append(jobs, j)
	}
	r.mu.Unlock()

	cancelled := 0
	for _, j := range jobs {
		if j.requestCancel() {
			cancelled++
		}
	}
	return cancelled
}
