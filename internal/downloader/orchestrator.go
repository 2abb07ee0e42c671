// Package downloader implements the download pipeline: admission, cache
// lookup, slot acquisition, extraction, scanning and delivery.
package downloader

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"mediabandit/internal/admission"
	"mediabandit/internal/extractor"
	"mediabandit/internal/metrics"
	"mediabandit/internal/progress"
	"mediabandit/internal/ratelimit"
	"mediabandit/internal/videocache"
	"mediabandit/pkg/models"
)

// Deps bundles the orchestrator's collaborators and settings
type Deps struct {
	Users     *ratelimit.UserLimiter
	Callbacks *ratelimit.CallbackThrottle
	Cache     *videocache.Cache
	Gate      *admission.Gate
	Throttle  *progress.Throttle
	Extractor Extractor
	Scanner   Scanner
	Delivery  Delivery
	History   History
	Metrics   *metrics.Registry
	URLCheck  func(string) error

	TempDir         string
	DownloadTimeout time.Duration
	MaxFileBytes    int64
}

// Orchestrator runs download requests end to end. One Submit call is one job;
// admission denials return before any resource is consumed, everything after
// admission goes through a guaranteed cleanup step.
type Orchestrator struct {
	deps     Deps
	logger   *slog.Logger
	registry *registry
}

// NewOrchestrator creates an orchestrator from its collaborators
func NewOrchestrator(deps Deps) *Orchestrator {
	return &Orchestrator{
		deps:     deps,
		logger:   slog.Default(),
		registry: newRegistry(),
	}
}

// Submit runs one download request through the full pipeline and blocks until
// it reaches a terminal state.
func (o *Orchestrator) Submit(ctx context.Context, req models.DownloadRequest) (*models.Outcome, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now()
	}
	if req.Platform == models.PlatformUnknown {
		req.Platform = models.DetectPlatform(req.URL)
	}

	o.deps.Metrics.Inc(metrics.DownloadsTotal)

	if err := o.admit(req); err != nil {
		o.logger.Info("Request denied", "request_id", req.RequestID,
			"user_id", req.UserID, "reason", models.KindOf(err))
		return nil, err
	}

	// Admitted. From here on every exit path runs the cleanup step.
	return o.run(ctx, req)
}

// admit performs the admission-stage checks. A denial consumes no resources
// except the user cooldown stamp taken by a successful limiter admit.
func (o *Orchestrator) admit(req models.DownloadRequest) error {
	if req.Platform == models.PlatformUnknown {
		o.deps.Metrics.Inc(metrics.DownloadsUnsupported)
		return models.NewDownloadError(models.KindUnsupportedPlatform,
			"unsupported link: %s", req.URL)
	}

	if err := o.deps.URLCheck(req.URL); err != nil {
		o.deps.Metrics.Inc(metrics.DownloadsBlocked)
		return err
	}

	if req.Channel == models.ChannelCallback {
		if err := o.deps.Callbacks.Admit(req.ChatID); err != nil {
			o.deps.Metrics.Inc(metrics.DownloadsDenied)
			return err
		}
	}

	if err := o.deps.Users.Admit(req.UserID); err != nil {
		o.deps.Metrics.Inc(metrics.DownloadsDenied)
		return err
	}

	return nil
}

// run executes an admitted request. The user limiter slot is already held and
// is released in the cleanup step along with everything else.
func (o *Orchestrator) run(ctx context.Context, req models.DownloadRequest) (outcome *models.Outcome, err error) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	j := &job{req: req, state: models.StateQueued, cancel: cancel}
	o.registry.add(j)
	o.deps.Metrics.SetGauge(metrics.DownloadsActive, int64(o.registry.count()))

	jobDir := filepath.Join(o.deps.TempDir, req.RequestID)
	started := time.Now()
	var permit *admission.Permit

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Download job panicked", "request_id", req.RequestID,
				"panic", r, "stack", string(debug.Stack()))
			outcome = nil
			err = models.NewDownloadError(models.KindInternalFault, "job panicked: %v", r)
		}
		if permit != nil {
			permit.Release()
		}
		o.deps.Users.Release(req.UserID)
		o.finish(j, started, outcome, err)
		o.registry.remove(req.RequestID)
		o.deps.Metrics.SetGauge(metrics.DownloadsActive, int64(o.registry.count()))
		o.deps.Throttle.Close(req.RequestID)
		_ = os.RemoveAll(jobDir)
	}()

	// Cache first: a hit skips extraction and the admission gate entirely
	if path, size, ok := o.deps.Cache.Lookup(req.URL, jobDir); ok {
		o.deps.Metrics.Inc(metrics.DownloadsCacheHits)
		j.mu.Lock()
		j.cacheHit = true
		j.bytes = size
		j.mu.Unlock()
		j.setState(models.StateFinalizing)

		o.deliverFile(jobCtx, req, path, size)
		return &models.Outcome{FilePath: path, FileSize: size, CacheHit: true}, nil
	}

	j.setState(models.StateWaiting)
	j.mu.Lock()
	j.waitStarted = time.Now()
	j.mu.Unlock()

	permit, err = o.deps.Gate.Acquire(jobCtx)
	if err != nil {
		return nil, models.WrapDownloadError(models.KindCancelled, err)
	}

	j.mu.Lock()
	j.waitEnded = time.Now()
	j.mu.Unlock()
	j.setState(models.StateDownloading)

	result, err := o.extract(jobCtx, j, jobDir)
	if err != nil {
		return nil, err
	}

	if o.deps.Scanner.Enabled() {
		if scanErr := o.deps.Scanner.Scan(jobCtx, result.Path); scanErr != nil {
			_ = os.Remove(result.Path)
			return nil, scanErr
		}
	}

	if o.deps.MaxFileBytes > 0 && result.Size > o.deps.MaxFileBytes {
		_ = os.Remove(result.Path)
		return nil, models.NewDownloadError(models.KindSizeExceeded,
			"file is %d bytes, maximum is %d", result.Size, o.deps.MaxFileBytes)
	}

	j.setState(models.StateFinalizing)

	if cacheErr := o.deps.Cache.Insert(req.URL, result.Path); cacheErr != nil {
		// Cache population is best effort
		o.logger.Warn("Failed to cache downloaded file",
			"request_id", req.RequestID, "error", cacheErr)
	}

	o.deliverFile(jobCtx, req, result.Path, result.Size)
	return &models.Outcome{FilePath: result.Path, FileSize: result.Size}, nil
}

// extract invokes the extractor under the download timeout and classifies
// context failures into Timeout versus Cancelled.
func (o *Orchestrator) extract(jobCtx context.Context, j *job, jobDir string) (*extractor.Result, error) {
	extractCtx := jobCtx
	var cancel context.CancelFunc
	if o.deps.DownloadTimeout > 0 {
		extractCtx, cancel = context.WithTimeout(jobCtx, o.deps.DownloadTimeout)
		defer cancel()
	}

	req := j.req
	onProgress := func(u progress.Update) {
		j.mu.Lock()
		j.bytes = u.Bytes
		j.mu.Unlock()

		if o.deps.Throttle.Observe(req.RequestID, u) {
			if err := o.deps.Delivery.SendStatus(jobCtx, req.ChatID, req.RequestID, u.Text()); err != nil {
				o.logger.Warn("Failed to send status update",
					"request_id", req.RequestID, "error", err)
			}
		}
	}

	result, err := o.deps.Extractor.Extract(extractCtx, req.URL, jobDir, onProgress)
	if err != nil {
		switch {
		case jobCtx.Err() != nil:
			return nil, models.WrapDownloadError(models.KindCancelled, jobCtx.Err())
		case errors.Is(err, context.DeadlineExceeded):
			return nil, models.NewDownloadError(models.KindTimeout,
				"download exceeded %s", o.deps.DownloadTimeout)
		default:
			var de *models.DownloadError
			if errors.As(err, &de) {
				return nil, err
			}
			return nil, models.WrapDownloadError(models.KindInternalFault, err)
		}
	}
	return result, nil
}

// finish records the terminal state, emits terminal metrics, writes the
// history event and sends the terminal status intent.
func (o *Orchestrator) finish(j *job, started time.Time, outcome *models.Outcome, err error) {
	req := j.req
	durationMs := time.Since(started).Milliseconds()
	o.deps.Metrics.Add(metrics.DurationMsTotal, durationMs)
	o.deps.Metrics.Inc(metrics.DurationEvents)

	event := &models.HistoryEvent{
		UserID:     req.UserID,
		ChatID:     req.ChatID,
		Platform:   req.Platform,
		URL:        req.URL,
		DurationMs: durationMs,
		CreatedAt:  time.Now().UTC(),
	}

	switch {
	case err == nil:
		j.setState(models.StateCompleted)
		o.deps.Metrics.Inc(metrics.DownloadsSuccess)
		event.Status = models.HistorySuccess
		if outcome != nil {
			event.FileSizeBytes = outcome.FileSize
			event.CacheHit = outcome.CacheHit
		}
		o.logger.Info("Download completed", "request_id", req.RequestID,
			"user_id", req.UserID, "platform", req.Platform,
			"duration_ms", durationMs, "cache_hit", event.CacheHit)

	case models.KindOf(err) == models.KindCancelled:
		j.setState(models.StateCancelled)
		o.deps.Metrics.Inc(metrics.DownloadsFailure)
		event.Status = models.HistoryCancelled
		event.ErrorKind = string(models.KindCancelled)
		o.logger.Info("Download cancelled", "request_id", req.RequestID,
			"user_id", req.UserID, "duration_ms", durationMs)

	default:
		j.setState(models.StateFailed)
		o.deps.Metrics.Inc(metrics.DownloadsFailure)
		event.Status = models.HistoryError
		event.ErrorKind = string(models.KindOf(err))
		o.logger.Error("Download failed", "request_id", req.RequestID,
			"user_id", req.UserID, "kind", event.ErrorKind, "error", err)
	}

	if histErr := o.deps.History.AddEvent(event); histErr != nil {
		o.logger.Warn("Failed to record history event",
			"request_id", req.RequestID, "error", histErr)
	}

	if err != nil {
		// Terminal notifications bypass the throttle. The job context is
		// already done on cancellation, so use a fresh one.
		sendCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		text := "Download failed: " + err.Error()
		if models.KindOf(err) == models.KindCancelled {
			text = "Download cancelled"
		}
		if sendErr := o.deps.Delivery.SendStatus(sendCtx, req.ChatID, req.RequestID, text); sendErr != nil {
			o.logger.Warn("Failed to send terminal status",
				"request_id", req.RequestID, "error", sendErr)
		}
	}
}

// deliverFile hands the finished artifact to the delivery collaborator
func (o *Orchestrator) deliverFile(ctx context.Context, req models.DownloadRequest, path string, size int64) {
	if err := o.deps.Delivery.SendFile(ctx, req.ChatID, req.RequestID, path, size); err != nil {
		o.logger.Warn("Failed to deliver file",
			"request_id", req.RequestID, "file", path, "error", err)
	}
}

// ActiveJobs returns a snapshot of every live job, oldest first
func (o *Orchestrator) ActiveJobs() []models.JobSnapshot {
	return o.registry.snapshots()
}

// ActiveCount returns the number of live jobs
func (o *Orchestrator) ActiveCount() int {
	return o.registry.count()
}

// CancelUserJobs cancels every live job belonging to userID and returns how
// many cancellations were delivered. Terminal jobs are ignored.
func (o *Orchestrator) CancelUserJobs(userID int64) int {
	return o.registry.cancelUser(userID)
}

// CancelAllJobs cancels every live job
func (o *Orchestrator) CancelAllJobs() int {
	return o.registry.cancelAll()
}
