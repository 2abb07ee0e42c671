package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mediabandit/pkg/models"
)

func TestScanDisabled(t *testing.T) {
	s := NewService("", time.Second)
	require.False(t, s.Enabled())
	require.NoError(t, s.Scan(context.Background(), "/tmp/whatever"))
}

func TestScanCleanFile(t *testing.T) {
	s := NewService("true", 5*time.Second)
	require.True(t, s.Enabled())
	require.NoError(t, s.Scan(context.Background(), "/tmp/file.mp4"))
}

func TestScanRejectedFile(t *testing.T) {
	s := NewService("false", 5*time.Second)

	err := s.Scan(context.Background(), "/tmp/file.mp4")
	require.Error(t, err)
	require.Equal(t, models.KindScanRejected, models.KindOf(err))
}

func TestScanTimeout(t *testing.T) {
	s := NewService("sleep 10", 50*time.Millisecond)

	err := s.Scan(context.Background(), "/tmp/file.mp4")
	require.Error(t, err)
	require.Equal(t, models.KindScanRejected, models.KindOf(err))
}
