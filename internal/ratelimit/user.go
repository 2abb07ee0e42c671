// Package ratelimit implements per-user and per-chat admission throttling
package ratelimit

import (
	"math"
	"sync"
	"time"

	"mediabandit/pkg/models"
)

// UserActivity is an admin-facing row describing one user's live downloads
type UserActivity struct {
	UserID       int64     `json:"user_id"`
	Active       int       `json:"active"`
	LastAccepted time.Time `json:"last_accepted,omitzero"`
}

// UserLimiter enforces the per-user cooldown and the per-user concurrency
// cap. Admit and Release must bracket every job exactly once.
type UserLimiter struct {
	mu        sync.Mutex
	cooldown  time.Duration
	maxActive int

	lastAccepted map[int64]time.Time
	active       map[int64]int

	now func() time.Time
}

// NewUserLimiter creates a limiter with the given cooldown and per-user cap
func NewUserLimiter(cooldown time.Duration, maxActive int) *UserLimiter {
	return &UserLimiter{
		cooldown:     cooldown,
		maxActive:    maxActive,
		lastAccepted: make(map[int64]time.Time),
		active:       make(map[int64]int),
		now:          time.Now,
	}
}

// Admit decides whether a new request from userID may proceed. On success the
// cooldown timestamp is stamped and the active count incremented; the caller
// must call Release exactly once when the job terminates. A denial has no
// side effects.
func (l *UserLimiter) Admit(userID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	active := l.active[userID]
	if active >= l.maxActive {
		return models.NewDownloadError(models.KindRateLimited,
			"you already have %d active downloads (maximum %d)", active, l.maxActive)
	}

	now := l.now()
	if l.cooldown > 0 {
		if last, ok := l.lastAccepted[userID]; ok {
			elapsed := now.Sub(last)
			if elapsed < l.cooldown {
				wait := int(math.Ceil((l.cooldown - elapsed).Seconds()))
				if wait < 1 {
					wait = 1
				}
				return models.NewDownloadError(models.KindRateLimited,
					"too many requests, wait %d more seconds", wait)
			}
		}
	}

	l.lastAccepted[userID] = now
	l.active[userID] = active + 1
	return nil
}

// Release decrements the user's active count after a job terminates
func (l *UserLimiter) Release(userID int64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active[userID] > 0 {
		l.active[userID]--
	}
	if l.active[userID] == 0 {
		delete(l.active, userID)
	}
}

// Active returns the user's current number of admitted jobs
func (l *UserLimiter) Active(userID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active[userID]
}

// TotalActive returns the number of admitted jobs across all users
func (l *UserLimiter) TotalActive() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, n := range l.active {
		total += n
	}
	return total
}

// Snapshot returns one row per user with at least one active download
func (l *UserLimiter) Snapshot() []UserActivity {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows := make([]UserActivity, 0, len(l.active))
	for userID, n := range l.active {
		rows = append(rows, UserActivity{
			UserID:       userID,
			Active:       n,
			LastAccepted: l.lastAccepted[userID],
		})
	}
	return rows
}

// ResetUser drops the user's counters entirely. Used by the admin surface
// when cancelling a user's jobs.
func (l *UserLimiter) ResetUser(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, had := l.active[userID]
	delete(l.active, userID)
	delete(l.lastAccepted, userID)
	return had
}
