package util

import (
	"fmt"
	"strconv"
	"strings"
)

// FormatTimestamp renders a timestamp in seconds as MM:SS, the format used
// for target-hit timestamps in result payloads. Minutes are not wrapped at
// the hour, so 3750s formats as "62:30".
func FormatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	mins := int(seconds) / 60
	secs := int(seconds) % 60
	return fmt.Sprintf("%02d:%02d", mins, secs)
}

// ParseFrameRate parses frame rate from ffprobe format (e.g., "30/1")
func ParseFrameRate(s string) float64 {
	parts := strings.Split(s, "/")
	if len(parts) != 2 {
		return 0
	}
	num, err1 := strconv.ParseFloat(parts[0], 64)
	den, err2 := strconv.ParseFloat(parts[1], 64)
	if err1 != nil || err2 != nil || den == 0 {
		return 0
	}
	return num / den
}
