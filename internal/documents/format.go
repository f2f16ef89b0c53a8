package documents

import (
	"fmt"
	"time"
)

// FormatSize renders a byte count in megabytes with one decimal.
func FormatSize(bytes int64) string {
	return fmt.Sprintf("%.1f MB", float64(bytes)/1024/1024)
}

// FormatAge renders how long ago t was, in whole days.
func FormatAge(t, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}
	switch days := int(diff / (24 * time.Hour)); days {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	default:
		return fmt.Sprintf("%d days ago", days)
	}
}

// Describe is the one-line summary shown next to a filename.
func Describe(d Document, now time.Time) string {
	age := "unknown date"
	if t, ok := d.UploadedAt(); ok {
		age = FormatAge(t, now)
	}
	return fmt.Sprintf("%s • %s • %s", d.FileType, FormatSize(d.SizeBytes), age)
}
