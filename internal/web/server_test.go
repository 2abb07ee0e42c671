package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mediabandit/internal/admin"
	"mediabandit/internal/admission"
	"mediabandit/internal/config"
	"mediabandit/internal/database"
	"mediabandit/internal/metrics"
	"mediabandit/internal/pending"
	"mediabandit/internal/ratelimit"
	"mediabandit/internal/videocache"
	"mediabandit/pkg/models"
)

type fakeSubmitter struct {
	outcome *models.Outcome
	err     error
}

func (f *fakeSubmitter) Submit(ctx context.Context, req models.DownloadRequest) (*models.Outcome, error) {
	return f.outcome, f.err
}

type fakeJobs struct{}

func (fakeJobs) ActiveJobs() []models.JobSnapshot { return nil }
func (fakeJobs) CancelUserJobs(int64) int         { return 1 }
func (fakeJobs) CancelAllJobs() int               { return 2 }

func newTestServer(t *testing.T, submitter *fakeSubmitter, adminToken string) (*Server, *pending.Store, *database.DB) {
	t.Helper()

	reg := metrics.NewRegistry()
	store := pending.NewStore(time.Minute, reg)
	gate := admission.NewGate(3, reg)
	users := ratelimit.NewUserLimiter(0, 5)
	cache, err := videocache.New(videocache.Options{Enabled: false})
	require.NoError(t, err)
	db, err := database.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	adminCtrl := admin.NewController(fakeJobs{}, store, gate, users, cache)
	cfg := &config.Config{ServerPort: "0", AdminAccessToken: adminToken}

	return NewServer(cfg, submitter, adminCtrl, store, db, reg), store, db
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSubmitter{}, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSubmitter{}, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snapshot map[string]int64
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshot))
	require.Contains(t, snapshot, metrics.QueueAvailable)
}

func TestRuntimeEndpoint(t *testing.T) {
	srv, store, _ := newTestServer(t, &fakeSubmitter{}, "")
	store.Issue(1, 2, 3, "https://youtu.be/abc")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/runtime", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var snap admin.RuntimeSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	require.Len(t, snap.PendingTokens, 1)
	require.Equal(t, 3, snap.Semaphore.Max)
}

func TestStatsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSubmitter{}, "")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "summary")
}

func TestHistoryEndpoint(t *testing.T) {
	srv, _, db := newTestServer(t, &fakeSubmitter{}, "")
	require.NoError(t, db.AddEvent(&models.HistoryEvent{
		UserID:   4,
		ChatID:   4,
		Platform: models.PlatformYouTube,
		URL:      "https://youtu.be/past",
		Status:   models.HistorySuccess,
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var events []models.HistoryEvent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	require.Equal(t, "https://youtu.be/past", events[0].URL)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history?limit=0", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUserStatsEndpoint(t *testing.T) {
	srv, _, db := newTestServer(t, &fakeSubmitter{}, "")
	require.NoError(t, db.AddEvent(&models.HistoryEvent{
		UserID:        9,
		Username:      "dana",
		ChatID:        9,
		Platform:      models.PlatformTikTok,
		URL:           "https://tiktok.com/v",
		Status:        models.HistorySuccess,
		FileSizeBytes: 256,
	}))

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/user?user_id=9", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var stats models.UserStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	require.Equal(t, "dana", stats.Username)
	require.Equal(t, int64(1), stats.Total)
	require.Equal(t, int64(256), stats.TotalBytes)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats/user", nil))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRecordsChat(t *testing.T) {
	srv, _, db := newTestServer(t, &fakeSubmitter{outcome: &models.Outcome{}}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/download",
		strings.NewReader(`{"user_id": 1, "chat_id": -200, "chat_title": "movie night", "channel": "group", "url": "https://youtu.be/abc"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	chats, err := db.Chats(10)
	require.NoError(t, err)
	require.Len(t, chats, 1)
	require.Equal(t, int64(-200), chats[0].ChatID)
	require.Equal(t, "movie night", chats[0].Title)
	require.Equal(t, "group", chats[0].ChatType)

	// The aggregate stats surface lists the chat too
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "movie night")
}

func TestSubmitDownload(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		submitter  *fakeSubmitter
		wantStatus int
	}{
		{
			name:       "success",
			body:       `{"user_id": 1, "url": "https://youtu.be/abc"}`,
			submitter:  &fakeSubmitter{outcome: &models.Outcome{FilePath: "/tmp/v.mp4", FileSize: 10}},
			wantStatus: http.StatusOK,
		},
		{
			name:       "missing url",
			body:       `{"user_id": 1}`,
			submitter:  &fakeSubmitter{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json",
			body:       `{`,
			submitter:  &fakeSubmitter{},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "rate limited",
			body:       `{"user_id": 1, "url": "https://youtu.be/abc"}`,
			submitter:  &fakeSubmitter{err: models.NewDownloadError(models.KindRateLimited, "slow down")},
			wantStatus: http.StatusTooManyRequests,
		},
		{
			name:       "unsupported platform",
			body:       `{"user_id": 1, "url": "https://example.com/x"}`,
			submitter:  &fakeSubmitter{err: models.NewDownloadError(models.KindUnsupportedPlatform, "nope")},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "timeout",
			body:       `{"user_id": 1, "url": "https://youtu.be/abc"}`,
			submitter:  &fakeSubmitter{err: models.NewDownloadError(models.KindTimeout, "too slow")},
			wantStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := newTestServer(t, tt.submitter, "")

			req := httptest.NewRequest(http.MethodPost, "/api/download", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestAdminAuth(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSubmitter{}, "secret-token")

	req := httptest.NewRequest(http.MethodPost, "/api/admin/queue/clear", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/queue/clear", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/admin/queue/clear", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cancelled":2`)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSubmitter{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/admin/pending/flush", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDeletePendingToken(t *testing.T) {
	srv, store, _ := newTestServer(t, &fakeSubmitter{}, "secret")
	token := store.Issue(1, 2, 3, "https://youtu.be/abc")

	req := httptest.NewRequest(http.MethodDelete, "/api/admin/pending/"+token, nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/api/admin/pending/"+token, nil)
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCancelUserEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSubmitter{}, "secret")

	req := httptest.NewRequest(http.MethodPost, "/api/admin/cancel-user",
		strings.NewReader(`{"user_id": 42}`))
	req.Header.Set("Authorization", "Bearer secret")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"cancelled":1`)
}

func TestPendingTokenFlow(t *testing.T) {
	srv, store, _ := newTestServer(t, &fakeSubmitter{outcome: &models.Outcome{CacheHit: true}}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/pending",
		strings.NewReader(`{"user_id": 5, "chat_id": -100, "message_id": 77, "url": "https://youtu.be/parked"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)
	require.Equal(t, 1, store.Count())

	confirm := `{"token": "` + issued.Token + `", "user_id": 9}`
	req = httptest.NewRequest(http.MethodPost, "/api/download/confirm", strings.NewReader(confirm))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, store.Count())

	// Tokens are single use
	req = httptest.NewRequest(http.MethodPost, "/api/download/confirm", strings.NewReader(confirm))
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssuePendingTokenRejectsUnsupportedLink(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSubmitter{}, "")

	req := httptest.NewRequest(http.MethodPost, "/api/pending",
		strings.NewReader(`{"user_id": 5, "url": "https://example.com/x"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRateLimitMiddleware(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeSubmitter{outcome: &models.Outcome{}}, "")

	rejected := 0
	for i := 0; i < 25; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/download",
			strings.NewReader(`{"user_id": 1, "url": "https://youtu.be/abc"}`))
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			rejected++
		}
	}
	require.Greater(t, rejected, 0)
}
