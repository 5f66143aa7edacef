package exporter

import (
	"math"
	"strconv"
	"time"
)

// minuteLayout is the minute_start format used in every output.
const minuteLayout = "2006-01-02T15:04:05Z"

// round4 rounds to 4 decimal places, matching the precision of the
// aggregated outputs.
func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}

// formatFloat formats a value rounded to 4 decimal places, with trailing
// zeros trimmed.
func formatFloat(f float64) string {
	return strconv.FormatFloat(round4(f), 'f', -1, 64)
}

// formatOptFloat formats a nullable statistic; an undefined value becomes
// an empty cell.
func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func formatMinute(t time.Time) string {
	return t.UTC().Format(minuteLayout)
}
