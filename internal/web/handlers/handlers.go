// Package handlers provides the HTTP handlers for the service API
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"mediabandit/internal/admin"
	"mediabandit/internal/database"
	"mediabandit/internal/metrics"
	"mediabandit/internal/pending"
	"mediabandit/pkg/models"
)

// Submitter is the slice of the orchestrator the API needs
type Submitter interface {
	Submit(ctx context.Context, req models.DownloadRequest) (*models.Outcome, error)
}

// Handlers contains all HTTP handlers and their dependencies
type Handlers struct {
	submitter Submitter
	admin     *admin.Controller
	pending   *pending.Store
	db        *database.DB
	metrics   *metrics.Registry
	logger    *slog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(submitter Submitter, adminCtrl *admin.Controller, store *pending.Store, db *database.DB, reg *metrics.Registry) *Handlers {
	return &Handlers{
		submitter: submitter,
		admin:     adminCtrl,
		pending:   store,
		db:        db,
		metrics:   reg,
		logger:    slog.Default(),
	}
}

// Health handles the liveness endpoint
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Metrics returns a snapshot of every counter and gauge by name
func (h *Handlers) Metrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.metrics.Snapshot())
}

// Runtime returns the live state of every subsystem
func (h *Handlers) Runtime(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.admin.RuntimeSnapshot())
}

// Stats returns aggregated download history
func (h *Handlers) Stats(w http.ResponseWriter, r *http.Request) {
	summary, err := h.db.StatsSummary()
	if err != nil {
		h.logger.Error("Failed to get stats summary", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	platforms, err := h.db.PlatformStats()
	if err != nil {
		h.logger.Error("Failed to get platform stats", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	chats, err := h.db.Chats(100)
	if err != nil {
		h.logger.Error("Failed to list chats", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"summary":   summary,
		"platforms": platforms,
		"chats":     chats,
	})
}

// History returns the most recent download history records
func (h *Handlers) History(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 500 {
			http.Error(w, "limit must be between 1 and 500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	events, err := h.db.RecentEvents(limit)
	if err != nil {
		h.logger.Error("Failed to list history", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []*models.HistoryEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}

// UserStats returns one user's aggregated history
func (h *Handlers) UserStats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil || userID == 0 {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	stats, err := h.db.UserStats(userID)
	if err != nil {
		h.logger.Error("Failed to get user stats", "user_id", userID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// submitRequest is the POST /api/download payload
type submitRequest struct {
	UserID    int64  `json:"user_id"`
	ChatID    int64  `json:"chat_id"`
	ChatTitle string `json:"chat_title"`
	URL       string `json:"url"`
	Channel   string `json:"channel"`
}

// rememberChat records chat metadata alongside the request. Best effort; a
// failed upsert never blocks the download.
func (h *Handlers) rememberChat(chatID int64, title string, channel models.Channel) {
	chatType := "group"
	if channel == models.ChannelPrivate {
		chatType = "private"
	}
	if err := h.db.UpsertChat(chatID, title, chatType); err != nil {
		h.logger.Warn("Failed to upsert chat", "chat_id", chatID, "error", err)
	}
}

// SubmitDownload runs one download request to completion and reports the
// outcome. Denials and failures map onto HTTP status codes by error kind.
func (h *Handlers) SubmitDownload(w http.ResponseWriter, r *http.Request) {
	var body submitRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if body.URL == "" || body.UserID == 0 {
		http.Error(w, "url and user_id are required", http.StatusBadRequest)
		return
	}

	channel := models.Channel(body.Channel)
	if channel == "" {
		channel = models.ChannelPrivate
	}
	chatID := body.ChatID
	if chatID == 0 {
		chatID = body.UserID
	}

	h.rememberChat(chatID, body.ChatTitle, channel)

	req := models.DownloadRequest{
		UserID:      body.UserID,
		ChatID:      chatID,
		Channel:     channel,
		URL:         body.URL,
		SubmittedAt: time.Now(),
	}

	outcome, err := h.submitter.Submit(r.Context(), req)
	if err != nil {
		kind := models.KindOf(err)
		writeJSON(w, statusForKind(kind), map[string]string{
			"error": err.Error(),
			"kind":  string(kind),
		})
		return
	}

	writeJSON(w, http.StatusOK, outcome)
}

// IssuePendingToken handles POST /api/pending. A link spotted in a group chat
// is parked behind a single-use token until someone confirms the download.
func (h *Handlers) IssuePendingToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID    int64  `json:"user_id"`
		ChatID    int64  `json:"chat_id"`
		ChatTitle string `json:"chat_title"`
		MessageID int64  `json:"message_id"`
		URL       string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" || body.UserID == 0 {
		http.Error(w, "url and user_id are required", http.StatusBadRequest)
		return
	}
	if models.DetectPlatform(body.URL) == models.PlatformUnknown {
		http.Error(w, "Unsupported link", http.StatusBadRequest)
		return
	}
	if body.ChatID != 0 {
		h.rememberChat(body.ChatID, body.ChatTitle, models.ChannelGroup)
	}

	token := h.pending.Issue(body.ChatID, body.MessageID, body.UserID, body.URL)
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// ConfirmDownload handles POST /api/download/confirm: consumes a pending
// token and runs the parked download on behalf of the confirming user.
func (h *Handlers) ConfirmDownload(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token  string `json:"token"`
		UserID int64  `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Token == "" || body.UserID == 0 {
		http.Error(w, "token and user_id are required", http.StatusBadRequest)
		return
	}

	parked, err := h.pending.Consume(body.Token)
	if err != nil {
		http.Error(w, "Token not found or expired", http.StatusNotFound)
		return
	}

	req := models.DownloadRequest{
		UserID:      body.UserID,
		ChatID:      parked.ChatID,
		Channel:     models.ChannelCallback,
		URL:         parked.URL,
		SubmittedAt: time.Now(),
	}

	outcome, err := h.submitter.Submit(r.Context(), req)
	if err != nil {
		kind := models.KindOf(err)
		writeJSON(w, statusForKind(kind), map[string]string{
			"error": err.Error(),
			"kind":  string(kind),
		})
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

// CancelUserDownloads handles POST /api/admin/cancel-user
func (h *Handlers) CancelUserDownloads(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.UserID == 0 {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}

	cancelled := h.admin.CancelUserJobs(body.UserID)
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": cancelled})
}

// DeletePendingToken handles DELETE /api/admin/pending/{token}
func (h *Handlers) DeletePendingToken(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if token == "" {
		http.Error(w, "token is required", http.StatusBadRequest)
		return
	}

	if !h.admin.ResetPendingToken(token) {
		http.Error(w, "Token not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

// FlushPendingTokens handles POST /api/admin/pending/flush
func (h *Handlers) FlushPendingTokens(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"flushed": h.admin.FlushPendingTokens()})
}

// ClearQueue handles POST /api/admin/queue/clear
func (h *Handlers) ClearQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"cancelled": h.admin.ClearQueue()})
}

// statusForKind maps an error kind onto an HTTP status code
func statusForKind(kind models.ErrorKind) int {
	switch kind {
	case models.KindRateLimited, models.KindChatThrottled:
		return http.StatusTooManyRequests
	case models.KindUnsupportedPlatform, models.KindBlockedURL:
		return http.StatusBadRequest
	case models.KindSizeExceeded:
		return http.StatusRequestEntityTooLarge
	case models.KindTimeout:
		return http.StatusGatewayTimeout
	case models.KindCancelled:
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("Failed to encode response", "error", err)
	}
}
