package logging

import "time"

// consoleTimestampLayout shows local wall time with milliseconds; callbacks
// usually complete well inside one second.
const consoleTimestampLayout = "2006-01-02 15:04:05.000"

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return ""
	}
	return ts.Local().Format(consoleTimestampLayout)
}
