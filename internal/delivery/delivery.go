// Package delivery emits outbound delivery intents. The actual chat transport
// sits behind this seam; this implementation records the intents in the log.
package delivery

import (
	"context"
	"log/slog"
)

// Service is a log-backed delivery sink
type Service struct {
	logger *slog.Logger
}

// NewService creates a delivery service
func NewService() *Service {
	return &Service{logger: slog.Default()}
}

// SendStatus emits a status-edit intent for the request's chat
func (s *Service) SendStatus(ctx context.Context, chatID int64, requestID, text string) error {
	s.logger.Info("Delivery intent: status",
		"chat_id", chatID, "request_id", requestID, "text", text)
	return nil
}

// SendFile emits a send-file intent for the finished artifact
func (s *Service) SendFile(ctx context.Context, chatID int64, requestID, filePath string, fileSize int64) error {
	s.logger.Info("Delivery intent: file",
		"chat_id", chatID, "request_id", requestID, "file", filePath, "size", fileSize)
	return nil
}
