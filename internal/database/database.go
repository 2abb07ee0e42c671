// Package database provides SQLite persistence for download history
package database

import (
	"database/sql"
	"fmt"
	"time"

	"mediabandit/pkg/models"

	_ "modernc.org/sqlite"
)

// DB wraps the SQLite database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	// Add connection parameters to help with concurrent access
	connString := dbPath
	if dbPath != ":memory:" {
		connString = dbPath + "?_busy_timeout=30000&_journal_mode=WAL&_synchronous=NORMAL"
	}

	conn, err := sql.Open("sqlite", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		username TEXT NOT NULL DEFAULT '',
		chat_id INTEGER NOT NULL,
		platform TEXT NOT NULL,
		url TEXT NOT NULL,
		status TEXT NOT NULL,
		error_kind TEXT NOT NULL DEFAULT '',
		file_size_bytes INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		cache_hit BOOLEAN DEFAULT FALSE,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_user_id ON downloads(user_id);
	CREATE INDEX IF NOT EXISTS idx_downloads_created_at ON downloads(created_at);
	CREATE INDEX IF NOT EXISTS idx_downloads_status ON downloads(status);

	CREATE TABLE IF NOT EXISTS chats (
		chat_id INTEGER PRIMARY KEY,
		title TEXT NOT NULL DEFAULT '',
		chat_type TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// AddEvent records one finished download attempt
func (db *DB) AddEvent(event *models.HistoryEvent) error {
	query := `
	INSERT INTO downloads (
		user_id, username, chat_id, platform, url, status,
		error_kind, file_size_bytes, duration_ms, cache_hit, created_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	result, err := db.conn.Exec(query,
		event.UserID, event.Username, event.ChatID, event.Platform,
		event.URL, event.Status, event.ErrorKind, event.FileSizeBytes,
		event.DurationMs, event.CacheHit, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to add history event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	event.ID = id
	return nil
}

// UpsertChat records a chat the service has been used in. Empty title or
// chat_type values keep whatever was stored before.
func (db *DB) UpsertChat(chatID int64, title, chatType string) error {
	query := `
	INSERT INTO chats (chat_id, title, chat_type, updated_at) VALUES (?, ?, ?, ?)
	ON CONFLICT(chat_id) DO UPDATE SET
		title = CASE WHEN excluded.title != '' THEN excluded.title ELSE chats.title END,
		chat_type = CASE WHEN excluded.chat_type != '' THEN excluded.chat_type ELSE chats.chat_type END,
		updated_at = excluded.updated_at
	`

	_, err := db.conn.Exec(query, chatID, title, chatType, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert chat: %w", err)
	}

	return nil
}

// Chats lists known chats, most recently active first
func (db *DB) Chats(limit int) ([]*models.ChatInfo, error) {
	query := `
	SELECT chat_id, title, chat_type, updated_at
	FROM chats
	ORDER BY updated_at DESC, chat_id ASC
	LIMIT ?
	`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var chats []*models.ChatInfo
	for rows.Next() {
		var chat models.ChatInfo
		if err := rows.Scan(&chat.ChatID, &chat.Title, &chat.ChatType, &chat.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		chats = append(chats, &chat)
	}

	return chats, rows.Err()
}

// RecentEvents retrieves the newest history records
func (db *DB) RecentEvents(limit int) ([]*models.HistoryEvent, error) {
	query := `
	SELECT id, user_id, username, chat_id, platform, url, status,
		   error_kind, file_size_bytes, duration_ms, cache_hit, created_at
	FROM downloads
	ORDER BY created_at DESC, id DESC
	LIMIT ?
	`

	rows, err := db.conn.Query(query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history events: %w", err)
	}
	defer rows.Close()

	var events []*models.HistoryEvent
	for rows.Next() {
		var event models.HistoryEvent
		err := rows.Scan(
			&event.ID, &event.UserID, &event.Username, &event.ChatID,
			&event.Platform, &event.URL, &event.Status, &event.ErrorKind,
			&event.FileSizeBytes, &event.DurationMs, &event.CacheHit,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan history event: %w", err)
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

// StatsSummary aggregates the whole downloads table
func (db *DB) StatsSummary() (*models.StatsSummary, error) {
	query := `
	SELECT
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN cache_hit THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN file_size_bytes ELSE 0 END), 0),
		COUNT(DISTINCT user_id)
	FROM downloads
	`

	var summary models.StatsSummary
	err := db.conn.QueryRow(query,
		models.HistorySuccess, models.HistoryError, models.HistoryCancelled,
		models.HistorySuccess,
	).Scan(
		&summary.Total, &summary.Success, &summary.Errors, &summary.Cancelled,
		&summary.CacheHits, &summary.TotalBytes, &summary.Users,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats summary: %w", err)
	}

	return &summary, nil
}

// UserStats aggregates one user's history
func (db *DB) UserStats(userID int64) (*models.UserStats, error) {
	query := `
	SELECT
		COALESCE(MAX(username), ''),
		COUNT(*),
		COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(CASE WHEN status = ? THEN file_size_bytes ELSE 0 END), 0)
	FROM downloads WHERE user_id = ?
	`

	stats := models.UserStats{UserID: userID}
	err := db.conn.QueryRow(query, models.HistorySuccess, models.HistorySuccess, userID).Scan(
		&stats.Username, &stats.Total, &stats.Success, &stats.TotalBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user stats: %w", err)
	}

	if stats.Total > 0 {
		lastSeen := `SELECT created_at FROM downloads WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`
		if err := db.conn.QueryRow(lastSeen, userID).Scan(&stats.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to get user last seen: %w", err)
		}
	}

	return &stats, nil
}

// PlatformStats counts downloads grouped by platform, most used first
func (db *DB) PlatformStats() ([]*models.PlatformCount, error) {
	query := `
	SELECT platform, COUNT(*)
	FROM downloads
	GROUP BY platform
	ORDER BY COUNT(*) DESC, platform ASC
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to get platform stats: %w", err)
	}
	defer rows.Close()

	var counts []*models.PlatformCount
	for rows.Next() {
		var count models.PlatformCount
		if err := rows.Scan(&count.Platform, &count.Count); err != nil {
			return nil, fmt.Errorf("failed to scan platform count: %w", err)
		}
		counts = append(counts, &count)
	}

	return counts, rows.Err()
}

// CleanupOldRecords deletes history older than the retention window and
// returns how many rows were removed
func (db *DB) CleanupOldRecords(retention time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-retention)

	result, err := db.conn.Exec(`DELETE FROM downloads WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup old records: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return deleted, nil
}
