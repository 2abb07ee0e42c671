// Package extractor invokes yt-dlp as a subprocess and relays its progress
// stream.
package extractor

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"mediabandit/internal/progress"
	"mediabandit/pkg/models"
)

// Result describes a finished extraction
type Result struct {
	Path string
	Size int64
}

// Options configures the subprocess invocation
type Options struct {
	YtdlpPath   string
	CookiesFile string
	UserAgent   string
}

// Service runs the external extraction tool. The context bounds the whole
// invocation; cancelling it kills the subprocess.
type Service struct {
	opts   Options
	logger *slog.Logger
}

// NewService creates an extractor service
func NewService(opts Options) *Service {
	if opts.YtdlpPath == "" {
		opts.YtdlpPath = "yt-dlp"
	}
	return &Service{
		opts:   opts,
		logger: slog.Default(),
	}
}

// Extract downloads the media at url into outputDir, invoking onProgress for
// every progress event yt-dlp reports. The newest file in outputDir after a
// clean exit is the artifact.
func (s *Service) Extract(ctx context.Context, url, outputDir string, onProgress func(progress.Update)) (*Result, error) {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	args := s.buildArgs(url, outputDir)
	cmd := exec.CommandContext(ctx, s.opts.YtdlpPath, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open stdout pipe: %w", err)
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	s.logger.Info("Starting extraction", "url", url, "output_dir", outputDir)
	if err := cmd.Start(); err != nil {
		return nil, models.WrapDownloadError(models.KindExtractionFailed,
			fmt.Errorf("failed to start %s: %w", s.opts.YtdlpPath, err))
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if update, ok := ParseProgressLine(scanner.Text()); ok && onProgress != nil {
			onProgress(update)
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			// Timeout and cancellation are classified by the caller
			return nil, ctx.Err()
		}
		lastLine := lastStderrLine(stderr.String())
		s.logger.Error("Extraction failed", "url", url, "error", err, "stderr", lastLine)
		if lastLine == "" {
			lastLine = err.Error()
		}
		return nil, models.NewDownloadError(models.KindExtractionFailed, "%s", lastLine)
	}

	result, err := newestFile(outputDir)
	if err != nil {
		return nil, models.WrapDownloadError(models.KindExtractionFailed, err)
	}

	s.logger.Info("Extraction completed", "url", url, "file", result.Path, "size", result.Size)
	return result, nil
}

// buildArgs assembles the yt-dlp command line
func (s *Service) buildArgs(url, outputDir string) []string {
	args := []string{
		"--no-playlist",
		"-f", "bestvideo[ext=mp4]+bestaudio[ext=m4a]/best",
		"--merge-output-format", "mp4",
		"--no-warnings",
		"--restrict-filenames",
		"--newline",
		"--output", filepath.Join(outputDir, "%(title).100s-%(id)s.%(ext)s"),
		"--retries", "3",
		"--fragment-retries", "3",
	}
	if s.opts.UserAgent != "" {
		args = append(args, "--user-agent", s.opts.UserAgent)
	}
	if s.opts.CookiesFile != "" {
		args = append(args, "--cookies", s.opts.CookiesFile)
	}
	if strings.Contains(strings.ToLower(url), "instagram.com") {
		args = append(args, "--add-header", "Referer: https://www.instagram.com/")
	}
	return append(args, url)
}

// newestFile returns the most recently modified regular file in dir
func newestFile(dir string) (*Result, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list output directory: %w", err)
	}

	var best *Result
	var bestMod int64
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if best == nil || info.ModTime().UnixNano() > bestMod {
			best = &Result{Path: filepath.Join(dir, e.Name()), Size: info.Size()}
			bestMod = info.ModTime().UnixNano()
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no file found after extraction")
	}
	return best, nil
}

func lastStderrLine(stderr string) string {
	lines := strings.Split(strings.TrimSpace(stderr), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
