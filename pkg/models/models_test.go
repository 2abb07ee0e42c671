package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDetectPlatform(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want Platform
	}{
		{"youtube long", "https://www.youtube.com/watch?v=abc123", PlatformYouTube},
		{"youtube short", "https://youtu.be/abc123", PlatformYouTube},
		{"tiktok", "https://vm.tiktok.com/ZM123/", PlatformTikTok},
		{"instagram", "https://www.instagram.com/reel/xyz/", PlatformInstagram},
		{"instagram short", "https://instagr.am/p/xyz/", PlatformInstagram},
		{"uppercase host", "https://WWW.YOUTUBE.COM/watch?v=abc", PlatformYouTube},
		{"unsupported", "https://example.com/video.mp4", PlatformUnknown},
		{"empty", "", PlatformUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, DetectPlatform(tt.url))
		})
	}
}

func TestJobStateTerminal(t *testing.T) {
	terminal := []JobState{StateCompleted, StateFailed, StateCancelled}
	for _, s := range terminal {
		require.True(t, s.Terminal(), "state %s", s)
	}

	live := []JobState{StateQueued, StateWaiting, StateDownloading, StateFinalizing}
	for _, s := range live {
		require.False(t, s.Terminal(), "state %s", s)
	}
}

func TestDownloadError(t *testing.T) {
	err := NewDownloadError(KindRateLimited, "wait %d seconds", 5)
	require.Equal(t, "rate_limited: wait 5 seconds", err.Error())
	require.Equal(t, KindRateLimited, KindOf(err))

	cause := errors.New("exit status 1")
	wrapped := WrapDownloadError(KindExtractionFailed, cause)
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, KindExtractionFailed, KindOf(fmt.Errorf("submit: %w", wrapped)))

	require.Equal(t, KindInternalFault, KindOf(errors.New("boom")))
}

func TestErrorKindAdmissionStage(t *testing.T) {
	require.True(t, KindRateLimited.AdmissionStage())
	require.True(t, KindChatThrottled.AdmissionStage())
	require.True(t, KindUnsupportedPlatform.AdmissionStage())
	require.True(t, KindBlockedURL.AdmissionStage())

	require.False(t, KindExtractionFailed.AdmissionStage())
	require.False(t, KindTimeout.AdmissionStage())
	require.False(t, KindCancelled.AdmissionStage())
}
