package downloader

import (
	"context"

	"mediabandit/internal/extractor"
	"mediabandit/internal/progress"
	"mediabandit/pkg/models"
)

// Extractor defines the media extraction operations used by the orchestrator
//
//go:generate mockgen -source=interfaces.go -destination=mocks/mock_interfaces.go -package=mocks
type Extractor interface {
	Extract(ctx context.Context, url, outputDir string, onProgress func(progress.Update)) (*extractor.Result, error)
}

// Scanner defines the optional malware scan over a finished file
type Scanner interface {
	Enabled() bool
	Scan(ctx context.Context, path string) error
}

// Delivery defines the outbound intents the orchestrator emits. The chat
// transport behind it is out of scope for the core.
type Delivery interface {
	SendStatus(ctx context.Context, chatID int64, requestID, text string) error
	SendFile(ctx context.Context, chatID int64, requestID, filePath string, fileSize int64) error
}

// History defines the fire-and-forget durable event sink
type History interface {
	AddEvent(event *models.HistoryEvent) error
}
