// Package models defines the data structures used throughout the application
package models

import (
	"time"
)

// Channel identifies how a download request reached the service
type Channel string

const (
	ChannelPrivate  Channel = "private"
	ChannelGroup    Channel = "group"
	ChannelCallback Channel = "callback"
)

// JobState represents the current state of a download job
type JobState string

const (
	StateQueued      JobState = "queued"
	StateWaiting     JobState = "waiting_for_slot"
	StateDownloading JobState = "downloading"
	StateFinalizing  JobState = "finalizing"
	StateCompleted   JobState = "completed"
	StateFailed      JobState = "failed"
	StateCancelled   JobState = "cancelled"
)

// Terminal reports whether a job in this state has finished for good
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// DownloadRequest is the immutable description of a single download. It is
// created at ingress and owned by the job it spawns.
type DownloadRequest struct {
	RequestID   string    `json:"request_id"`
	UserID      int64     `json:"user_id"`
	ChatID      int64     `json:"chat_id"`
	Channel     Channel   `json:"channel"`
	URL         string    `json:"url"`
	Platform    Platform  `json:"platform"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// JobSnapshot is a point-in-time copy of a job's mutable state, safe to hand
// to the admin surface.
type JobSnapshot struct {
	RequestID   string    `json:"request_id"`
	UserID      int64     `json:"user_id"`
	ChatID      int64     `json:"chat_id"`
	URL         string    `json:"url"`
	Platform    Platform  `json:"platform"`
	State       JobState  `json:"state"`
	CacheHit    bool      `json:"cache_hit"`
	Bytes       int64     `json:"bytes"`
	SubmittedAt time.Time `json:"submitted_at"`
	WaitStarted time.Time `json:"wait_started,omitzero"`
	WaitEnded   time.Time `json:"wait_ended,omitzero"`
}

// Outcome is the successful result of a submission
type Outcome struct {
	FilePath string `json:"file_path"`
	FileSize int64  `json:"file_size"`
	CacheHit bool   `json:"cache_hit"`
}
