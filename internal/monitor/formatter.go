package monitor

import (
	"fmt"
	"math"
	"time"
)

// notAvailable stands in for values the daemon has not produced yet.
const notAvailable = "n/a"

// FormatRate renders retrievals per minute.
func FormatRate(perMinute float64) string {
	if !finite(perMinute) || perMinute < 0 {
		return notAvailable
	}
	return fmt.Sprintf("%.1f q/min", perMinute)
}

// FormatQueryTime renders a mean query time given in seconds, picking µs, ms
// or s so that at most four significant digits show.
func FormatQueryTime(seconds float64) string {
	if !finite(seconds) || seconds < 0 {
		return notAvailable
	}
	d := time.Duration(seconds * float64(time.Second))
	switch {
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

// FormatDistance renders a cosine distance against the gate threshold,
// e.g. "0.312 / 0.40". Zero means no queries have been observed.
func FormatDistance(distance, threshold float64) string {
	if !finite(distance) || distance == 0 {
		return fmt.Sprintf("%s / %.2f", notAvailable, threshold)
	}
	return fmt.Sprintf("%.3f / %.2f", distance, threshold)
}

// FormatRatio renders part of whole as "25.0% (3 of 12)".
func FormatRatio(part, whole float64) string {
	if whole <= 0 {
		return "0.0% (0 of 0)"
	}
	return fmt.Sprintf("%.1f%% (%.0f of %.0f)", 100*part/whole, part, whole)
}

// FormatMemoryMB renders heap use reported in MiB.
func FormatMemoryMB(mb float64) string {
	switch {
	case !finite(mb) || mb < 0:
		return notAvailable
	case mb >= 1024:
		return fmt.Sprintf("%.2f GB", mb/1024)
	case mb >= 1:
		return fmt.Sprintf("%.1f MB", mb)
	default:
		return fmt.Sprintf("%.0f KB", mb*1024)
	}
}

// FormatUptime renders daemon uptime: "3d 4h", "2h 15m", "15m" or "40s".
func FormatUptime(seconds int64) string {
	d := time.Duration(seconds) * time.Second
	days := int64(d / (24 * time.Hour))
	hours := int64(d/time.Hour) % 24
	minutes := int64(d/time.Minute) % 60

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh", days, hours)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm", minutes)
	default:
		return fmt.Sprintf("%ds", max(seconds, 0))
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
