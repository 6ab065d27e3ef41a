package blockstats

import (
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	utcLayout  = "Mon, 02 Jan 2006 15:04:05 GMT"
	axisLayout = "15:04:05"
)

// FormatHash shortens a block hash for display: first 6 characters, "...",
// last 5. The hash itself is never altered.
func FormatHash(hash string) string {
	if hash == "" {
		return ""
	}
	head := hash
	if len(head) > 6 {
		head = head[:6]
	}
	tail := hash
	if len(tail) > 5 {
		tail = tail[len(tail)-5:]
	}
	return head + "..." + tail
}

// AxisLabel renders the time-of-day of t in UTC
func AxisLabel(t time.Time) string {
	return t.UTC().Format(axisLayout)
}

// FormatUTC renders t like an HTTP date
func FormatUTC(t time.Time) string {
	return t.UTC().Format(utcLayout)
}

// FormatCount groups digits the en-US way (3120 -> "3,120")
func FormatCount(n int64) string {
	return message.NewPrinter(language.English).Sprintf("%d", n)
}
