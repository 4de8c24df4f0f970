package service

import (
	"strconv"
	"strings"
	"time"
)

// displayTimeLayout is the wall-clock format shown in the timeline.
const displayTimeLayout = "2006-01-02 15:04:05"

// FormatTimestamp converts a millisecond-epoch numeric string into the
// display format, rendered in loc. Empty input yields an empty string;
// non-numeric input is returned unchanged, matching the upstream
// fallback behavior.
func FormatTimestamp(timestamp string, loc *time.Location) string {
	if strings.TrimSpace(timestamp) == "" {
		return ""
	}
	ms, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return timestamp
	}
	return time.UnixMilli(ms).In(loc).Format(displayTimeLayout)
}

// parseDisplayTime parses a formatted display time back into a
// timestamp for sorting. Empty or unparsable values return the zero
// time, which sorts before every real timestamp.
func parseDisplayTime(value string, loc *time.Location) time.Time {
	if value == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation(displayTimeLayout, value, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

// MapInstanceStatus maps the upstream instance status enumeration to
// its display label. Matching is case-insensitive; anything unknown or
// unset (including PENDING and DELETED) reads as in-progress.
func MapInstanceStatus(status string) string {
	switch strings.ToUpper(status) {
	case "APPROVED":
		return statusLabelApproved
	case "REJECTED":
		return statusLabelRejected
	case "CANCELED":
		return statusLabelCanceled
	default:
		return statusLabelInProgress
	}
}
