// Package urlsafe screens URLs before they reach the extractor to minimize
// SSRF vectors.
package urlsafe

import (
	"net"
	"net/url"
	"strings"

	"mediabandit/pkg/models"
)

var localHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"::1":       true,
}

var forbiddenSuffixes = []string{".local", ".localhost", ".internal"}

// Check validates that the URL points at a public http/https resource.
// Returns a BlockedURL error otherwise.
func Check(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return models.NewDownloadError(models.KindBlockedURL, "empty link")
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return models.NewDownloadError(models.KindBlockedURL, "link cannot be parsed")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return models.NewDownloadError(models.KindBlockedURL, "only http/https links are supported")
	}

	host := strings.ToLower(u.Hostname())
	if host == "" {
		return models.NewDownloadError(models.KindBlockedURL, "link has no host")
	}
	if localHosts[host] {
		return models.NewDownloadError(models.KindBlockedURL, "link points at a local resource")
	}
	for _, sfx := range forbiddenSuffixes {
		if strings.HasSuffix(host, sfx) {
			return models.NewDownloadError(models.KindBlockedURL, "link points at a local resource")
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsUnspecified() ||
			ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast() {
			return models.NewDownloadError(models.KindBlockedURL, "link points at an internal address")
		}
	}

	return nil
}
