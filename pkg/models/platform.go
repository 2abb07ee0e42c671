package models

import "strings"

// Platform identifies the media source a URL belongs to
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformTikTok    Platform = "tiktok"
	PlatformInstagram Platform = "instagram"
	PlatformUnknown   Platform = ""
)

// DetectPlatform infers the platform from a URL. An empty result means the
// link is not supported.
func DetectPlatform(url string) Platform {
	u := strings.ToLower(url)
	switch {
	case strings.Contains(u, "youtu.be") || strings.Contains(u, "youtube.com"):
		return PlatformYouTube
	case strings.Contains(u, "tiktok.com"):
		return PlatformTikTok
	case strings.Contains(u, "instagram.com") || strings.Contains(u, "instagr.am"):
		return PlatformInstagram
	}
	return PlatformUnknown
}
