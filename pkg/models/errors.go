package models

import (
	"errors"
	"fmt"
)

// ErrorKind classifies download failures for metrics, history and user-facing
// messages.
type ErrorKind string

const (
	KindRateLimited         ErrorKind = "rate_limited"
	KindChatThrottled       ErrorKind = "chat_throttled"
	KindUnsupportedPlatform ErrorKind = "unsupported_platform"
	KindBlockedURL          ErrorKind = "blocked_url"
	KindExtractionFailed    ErrorKind = "extraction_failed"
	KindTimeout             ErrorKind = "timeout"
	KindScanRejected        ErrorKind = "scan_rejected"
	KindSizeExceeded        ErrorKind = "size_exceeded"
	KindCancelled           ErrorKind = "cancelled"
	KindInternalFault       ErrorKind = "internal_fault"
)

// AdmissionStage reports whether failures of this kind occur before any
// resource is consumed.
func (k ErrorKind) AdmissionStage() bool {
	switch k {
	case KindRateLimited, KindChatThrottled, KindUnsupportedPlatform, KindBlockedURL:
		return true
	}
	return false
}

// DownloadError is the typed failure returned by the orchestrator
type DownloadError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *DownloadError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}
	return string(e.Kind)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// NewDownloadError builds a DownloadError with a formatted message
func NewDownloadError(kind ErrorKind, format string, args ...any) *DownloadError {
	return &DownloadError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapDownloadError attaches a kind to an underlying error
func WrapDownloadError(kind ErrorKind, err error) *DownloadError {
	return &DownloadError{Kind: kind, Err: err}
}

// KindOf extracts the error kind from err, falling back to InternalFault for
// untyped errors.
func KindOf(err error) ErrorKind {
	var de *DownloadError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternalFault
}
