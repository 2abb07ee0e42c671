package models

import "time"

// HistoryEvent is one durable record of a finished (or denied) download
type HistoryEvent struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	Username      string    `json:"username" db:"username"`
	ChatID        int64     `json:"chat_id" db:"chat_id"`
	Platform      Platform  `json:"platform" db:"platform"`
	URL           string    `json:"url" db:"url"`
	Status        string    `json:"status" db:"status"`
	ErrorKind     string    `json:"error_kind" db:"error_kind"`
	FileSizeBytes int64     `json:"file_size_bytes" db:"file_size_bytes"`
	DurationMs    int64     `json:"duration_ms" db:"duration_ms"`
	CacheHit      bool      `json:"cache_hit" db:"cache_hit"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// HistoryStatus values stored in HistoryEvent.Status
const (
	HistorySuccess   = "success"
	HistoryError     = "error"
	HistoryCancelled = "cancelled"
)

// StatsSummary aggregates the downloads table for the admin surface
type StatsSummary struct {
	Total      int64 `json:"total"`
	Success    int64 `json:"success"`
	Errors     int64 `json:"errors"`
	Cancelled  int64 `json:"cancelled"`
	CacheHits  int64 `json:"cache_hits"`
	TotalBytes int64 `json:"total_bytes"`
	Users      int64 `json:"users"`
}

// PlatformCount is one row of per-platform totals
type PlatformCount struct {
	Platform Platform `json:"platform"`
	Count    int64    `json:"count"`
}

// ChatInfo is one known chat the service has been used in
type ChatInfo struct {
	ChatID    int64     `json:"chat_id"`
	Title     string    `json:"title"`
	ChatType  string    `json:"chat_type"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserStats aggregates one user's history
type UserStats struct {
	UserID     int64     `json:"user_id"`
	Username   string    `json:"username"`
	Total      int64     `json:"total"`
	Success    int64     `json:"success"`
	TotalBytes int64     `json:"total_bytes"`
	LastSeen   time.Time `json:"last_seen"`
}
