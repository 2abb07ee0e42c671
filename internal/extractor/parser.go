package extractor

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"mediabandit/internal/progress"
)

// yt-dlp --newline progress lines look like:
//
//	[download]  42.5% of 10.00MiB at 1.25MiB/s ETA 00:05
//	[download] 100% of ~3.52MiB at Unknown speed ETA Unknown
var progressRe = regexp.MustCompile(
	`^\[download\]\s+([\d.]+)%\s+of\s+~?\s*([\d.]+)(KiB|MiB|GiB|B)(?:\s+at\s+([\d.]+)(KiB|MiB|GiB|B)/s)?(?:\s+ETA\s+([\d:]+))?`)

var unitBytes = map[string]float64{
	"B":   1,
	"KiB": 1024,
	"MiB": 1024 * 1024,
	"GiB": 1024 * 1024 * 1024,
}

// ParseProgressLine converts one yt-dlp stdout line into a progress update.
// Non-progress lines return ok=false.
func ParseProgressLine(line string) (progress.Update, bool) {
	m := progressRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return progress.Update{}, false
	}

	percent, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return progress.Update{}, false
	}

	var update progress.Update
	update.Percent = percent

	if total, err := strconv.ParseFloat(m[2], 64); err == nil {
		update.TotalBytes = int64(total * unitBytes[m[3]])
		update.Bytes = int64(float64(update.TotalBytes) * percent / 100)
	}
	if m[4] != "" {
		if speed, err := strconv.ParseFloat(m[4], 64); err == nil {
			update.Speed = speed * unitBytes[m[5]]
		}
	}
	if m[6] != "" {
		update.ETA = parseETA(m[6])
	}
	return update, true
}

// parseETA converts "MM:SS" or "HH:MM:SS" into a duration
func parseETA(s string) time.Duration {
	parts := strings.Split(s, ":")
	total := 0
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		total = total*60 + n
	}
	return time.Duration(total) * time.Second
}
