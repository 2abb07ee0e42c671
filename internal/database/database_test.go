package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mediabandit/pkg/models"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		dbPath  string
		wantErr bool
	}{
		{
			name:    "in-memory database",
			dbPath:  ":memory:",
			wantErr: false,
		},
		{
			name:    "temporary file database",
			dbPath:  t.TempDir() + "/test.db",
			wantErr: false,
		},
		{
			name:    "invalid database path",
			dbPath:  "/invalid/nonexistent/path/test.db",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(tt.dbPath)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, db)
			require.NoError(t, db.Close())
		})
	}
}

func TestDB_AddEvent(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	event := &models.HistoryEvent{
		UserID:        42,
		Username:      "alice",
		ChatID:        -100123,
		Platform:      models.PlatformYouTube,
		URL:           "https://youtu.be/abc",
		Status:        models.HistorySuccess,
		FileSizeBytes: 1024,
		DurationMs:    2500,
	}

	require.NoError(t, db.AddEvent(event))
	require.Greater(t, event.ID, int64(0))
	require.False(t, event.CreatedAt.IsZero())

	events, err := db.RecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, int64(42), events[0].UserID)
	require.Equal(t, "alice", events[0].Username)
	require.Equal(t, models.PlatformYouTube, events[0].Platform)
	require.Equal(t, int64(1024), events[0].FileSizeBytes)
}

func TestDB_RecentEventsOrder(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		event := &models.HistoryEvent{
			UserID:    int64(i + 1),
			ChatID:    1,
			Platform:  models.PlatformTikTok,
			URL:       "https://tiktok.com/v",
			Status:    models.HistorySuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, db.AddEvent(event))
	}

	events, err := db.RecentEvents(2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, int64(3), events[0].UserID)
	require.Equal(t, int64(2), events[1].UserID)
}

func TestDB_StatsSummary(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	seed := []*models.HistoryEvent{
		{UserID: 1, ChatID: 1, Platform: models.PlatformYouTube, URL: "u1", Status: models.HistorySuccess, FileSizeBytes: 100},
		{UserID: 1, ChatID: 1, Platform: models.PlatformYouTube, URL: "u2", Status: models.HistorySuccess, FileSizeBytes: 200, CacheHit: true},
		{UserID: 2, ChatID: 2, Platform: models.PlatformTikTok, URL: "u3", Status: models.HistoryError, ErrorKind: string(models.KindExtractionFailed)},
		{UserID: 3, ChatID: 3, Platform: models.PlatformInstagram, URL: "u4", Status: models.HistoryCancelled},
	}
	for _, event := range seed {
		require.NoError(t, db.AddEvent(event))
	}

	summary, err := db.StatsSummary()
	require.NoError(t, err)
	require.Equal(t, int64(4), summary.Total)
	require.Equal(t, int64(2), summary.Success)
	require.Equal(t, int64(1), summary.Errors)
	require.Equal(t, int64(1), summary.Cancelled)
	require.Equal(t, int64(1), summary.CacheHits)
	require.Equal(t, int64(300), summary.TotalBytes)
	require.Equal(t, int64(3), summary.Users)
}

func TestDB_UserStats(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	seed := []*models.HistoryEvent{
		{UserID: 7, Username: "bob", ChatID: 1, Platform: models.PlatformYouTube, URL: "u1", Status: models.HistorySuccess, FileSizeBytes: 500},
		{UserID: 7, Username: "bob", ChatID: 1, Platform: models.PlatformYouTube, URL: "u2", Status: models.HistoryError},
		{UserID: 8, Username: "carol", ChatID: 1, Platform: models.PlatformYouTube, URL: "u3", Status: models.HistorySuccess, FileSizeBytes: 900},
	}
	for _, event := range seed {
		require.NoError(t, db.AddEvent(event))
	}

	stats, err := db.UserStats(7)
	require.NoError(t, err)
	require.Equal(t, "bob", stats.Username)
	require.Equal(t, int64(2), stats.Total)
	require.Equal(t, int64(1), stats.Success)
	require.Equal(t, int64(500), stats.TotalBytes)
}

func TestDB_PlatformStats(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	seed := []models.Platform{
		models.PlatformTikTok,
		models.PlatformYouTube,
		models.PlatformTikTok,
	}
	for i, platform := range seed {
		event := &models.HistoryEvent{
			UserID:   int64(i),
			ChatID:   1,
			Platform: platform,
			URL:      "u",
			Status:   models.HistorySuccess,
		}
		require.NoError(t, db.AddEvent(event))
	}

	counts, err := db.PlatformStats()
	require.NoError(t, err)
	require.Len(t, counts, 2)
	require.Equal(t, models.PlatformTikTok, counts[0].Platform)
	require.Equal(t, int64(2), counts[0].Count)
	require.Equal(t, models.PlatformYouTube, counts[1].Platform)
	require.Equal(t, int64(1), counts[1].Count)
}

func TestDB_CleanupOldRecords(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	old := &models.HistoryEvent{
		UserID:    1,
		ChatID:    1,
		Platform:  models.PlatformYouTube,
		URL:       "old",
		Status:    models.HistorySuccess,
		CreatedAt: time.Now().UTC().Add(-48 * time.Hour),
	}
	fresh := &models.HistoryEvent{
		UserID:   1,
		ChatID:   1,
		Platform: models.PlatformYouTube,
		URL:      "fresh",
		Status:   models.HistorySuccess,
	}
	require.NoError(t, db.AddEvent(old))
	require.NoError(t, db.AddEvent(fresh))

	deleted, err := db.CleanupOldRecords(24 * time.Hour)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	events, err := db.RecentEvents(10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "fresh", events[0].URL)
}

func TestDB_UpsertChat(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.UpsertChat(-100555, "media crew", "group"))
	require.NoError(t, db.UpsertChat(-100555, "media crew v2", "group"))

	chats, err := db.Chats(10)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, int64(-100555), chats[0].ChatID)
	require.Equal(t, "media crew v2", chats[0].Title)
	require.Equal(t, "group", chats[0].ChatType)
}

func TestDB_UpsertChatKeepsTitleWhenEmpty(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.UpsertChat(7, "movie night", "group"))
	require.NoError(t, db.UpsertChat(7, "", ""))

	chats, err := db.Chats(10)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, "movie night", chats[0].Title)
	require.Equal(t, "group", chats[0].ChatType)
}

func TestDB_ChatsOrder(t *testing.T) {
	db, err := New(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.UpsertChat(1, "first", "private"))
	require.NoError(t, db.UpsertChat(2, "second", "group"))
	require.NoError(t, db.UpsertChat(1, "first again", "private"))

	chats, err := db.Chats(10)
	require.NoError(t, err)
	require.Len(t, chats, 2)
}
