package gtfs

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTime converts a GTFS "HH:MM:SS" string to seconds since local
// midnight. Hours may exceed 24 for post-midnight service ("25:15:00").
// Returns -1 for an empty or malformed value.
func ParseTime(hms string) int {
	if hms == "" {
		return -1
	}
	parts := strings.Split(hms, ":")
	if len(parts) != 3 {
		return -1
	}
	h, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return -1
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return -1
	}
	s, err := strconv.Atoi(parts[2])
	if err != nil {
		return -1
	}
	return h*3600 + m*60 + s
}

// DateString formats a time as a GTFS YYYYMMDD local calendar date.
func DateString(t time.Time) string {
	return t.Format("20060102")
}

// LocalMidnight returns midnight of the given instant in its own location.
func LocalMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// ClockString renders a second count as HH:MM:SS, clamping negatives to zero.
func ClockString(sec int64) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", sec/3600, (sec%3600)/60, sec%60)
}
