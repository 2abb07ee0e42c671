package urlsafe

import (
	"testing"

	"github.com/stretchr/testify/require"

	"mediabandit/pkg/models"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"public https", "https://www.youtube.com/watch?v=abc", false},
		{"public http", "http://example.com/video", false},
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"ftp scheme", "ftp://example.com/file", true},
		{"file scheme", "file:///etc/passwd", true},
		{"localhost", "https://localhost/admin", true},
		{"loopback ip", "http://127.0.0.1:8080/", true},
		{"ipv6 loopback", "http://[::1]/", true},
		{"private ip", "http://192.168.1.10/cam", true},
		{"ten net", "http://10.0.0.5/", true},
		{"link local", "http://169.254.169.254/latest/meta-data/", true},
		{"dot local suffix", "https://nas.local/share", true},
		{"dot internal suffix", "https://api.corp.internal/v1", true},
		{"no host", "https:///path", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				require.Equal(t, models.KindBlockedURL, models.KindOf(err))
			} else {
				require.NoError(t, err)
			}
		})
	}
}
