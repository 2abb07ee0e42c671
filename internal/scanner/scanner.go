// Package scanner runs an optional external malware scanner over finished
// downloads before they are delivered or cached.
package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"mediabandit/pkg/models"
)

// Service invokes the configured scan command with the file path appended.
// A non-zero exit code rejects the file; an empty command disables scanning.
type Service struct {
	command string
	timeout time.Duration
	logger  *slog.Logger
}

// NewService creates a scanner for the given shell-style command line
func NewService(command string, timeout time.Duration) *Service {
	return &Service{
		command: strings.TrimSpace(command),
		timeout: timeout,
		logger:  slog.Default(),
	}
}

// Enabled reports whether a scan command is configured
func (s *Service) Enabled() bool {
	return s.command != ""
}

// Scan checks the file at path. Returns a ScanRejected error when the
// scanner flags the file or cannot finish in time.
func (s *Service) Scan(ctx context.Context, path string) error {
	if !s.Enabled() {
		return nil
	}

	parts := strings.Fields(s.command)
	args := append(parts[1:], path)

	scanCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(scanCtx, parts[0], args...)
	output, err := cmd.CombinedOutput()

	if scanCtx.Err() == context.DeadlineExceeded {
		return models.NewDownloadError(models.KindScanRejected, "file scan timed out")
	}
	if err != nil {
		s.logger.Warn("Scanner rejected file",
			"file", path,
			"error", err,
			"output", truncate(string(output), 500))
		return models.NewDownloadError(models.KindScanRejected, "scanner blocked the file")
	}

	if out := strings.TrimSpace(string(output)); out != "" {
		s.logger.Info("Scan result", "file", path, "output", truncate(out, 500))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
