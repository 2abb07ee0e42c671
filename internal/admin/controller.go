// Package admin exposes runtime inspection and mutation operations for
// operators.
package admin

import (
	"log/slog"

	"mediabandit/internal/admission"
	"mediabandit/internal/pending"
	"mediabandit/internal/ratelimit"
	"mediabandit/internal/videocache"
	"mediabandit/pkg/models"
)

// Jobs is the slice of the orchestrator the admin surface needs
type Jobs interface {
	ActiveJobs() []models.JobSnapshot
	CancelUserJobs(userID int64) int
	CancelAllJobs() int
}

// SemaphoreState describes the global download slot semaphore
type SemaphoreState struct {
	InUse     int `json:"in_use"`
	Available int `json:"available"`
	Max       int `json:"max"`
}

// RuntimeSnapshot is a point-in-time view of everything in flight
type RuntimeSnapshot struct {
	ActiveJobs    []models.JobSnapshot     `json:"active_jobs"`
	PendingTokens []pending.Token          `json:"pending_tokens"`
	Users         []ratelimit.UserActivity `json:"users"`
	Semaphore     SemaphoreState           `json:"semaphore"`
	Cache         videocache.State         `json:"cache"`
}

// Controller implements the administrative operations. Mutations go through
// the orchestrator's own job locks, so cancelling a job that just finished is
// a no-op rather than a race.
type Controller struct {
	jobs    Jobs
	pending *pending.Store
	gate    *admission.Gate
	users   *ratelimit.UserLimiter
	cache   *videocache.Cache
	logger  *slog.Logger
}

// NewController creates the admin controller
func NewController(jobs Jobs, store *pending.Store, gate *admission.Gate, users *ratelimit.UserLimiter, cache *videocache.Cache) *Controller {
	return &Controller{
		jobs:    jobs,
		pending: store,
		gate:    gate,
		users:   users,
		cache:   cache,
		logger:  slog.Default(),
	}
}

// ListActive returns every live job, oldest first
func (c *Controller) ListActive() []models.JobSnapshot {
	return c.jobs.ActiveJobs()
}

// CancelUserJobs cancels all of a user's live jobs and returns how many were
// cancelled
func (c *Controller) CancelUserJobs(userID int64) int {
	cancelled := c.jobs.CancelUserJobs(userID)
	c.logger.Info("Cancelled user jobs", "user_id", userID, "count", cancelled)
	return cancelled
}

// ResetUserLimit clears a user's cooldown and active counters. The per-job
// release path tolerates the reset, so this is safe with jobs in flight.
func (c *Controller) ResetUserLimit(userID int64) bool {
	return c.users.ResetUser(userID)
}

// ResetPendingToken drops a single pending confirmation token
func (c *Controller) ResetPendingToken(token string) bool {
	return c.pending.Drop(token)
}

// FlushPendingTokens drops every pending confirmation token and returns how
// many were removed
func (c *Controller) FlushPendingTokens() int {
	flushed := c.pending.Flush()
	c.logger.Info("Flushed pending tokens", "count", flushed)
	return flushed
}

// ClearQueue cancels every live job and returns how many were cancelled
func (c *Controller) ClearQueue() int {
	cancelled := c.jobs.CancelAllJobs()
	c.logger.Info("Cleared download queue", "cancelled", cancelled)
	return cancelled
}

// RuntimeSnapshot gathers the live state of every subsystem
func (c *Controller) RuntimeSnapshot() RuntimeSnapshot {
	return RuntimeSnapshot{
		ActiveJobs:    c.jobs.ActiveJobs(),
		PendingTokens: c.pending.Snapshot(50),
		Users:         c.users.Snapshot(),
		Semaphore: SemaphoreState{
			InUse:     c.gate.InUse(),
			Available: c.gate.Available(),
			Max:       c.gate.Capacity(),
		},
		Cache: c.cache.State(),
	}
}
