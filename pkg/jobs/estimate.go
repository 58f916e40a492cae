package jobs

import (
	"fmt"
	"math"
	"time"
)

// InitialEstimate guesses a job's duration before any file has finished,
// from total payload size, file count and whether any file needs heavy
// conversion (PDF, Office, OCR).
func InitialEstimate(totalBytes int64, fileCount int, hasComplex bool) time.Duration {
	if fileCount <= 0 {
		return 0
	}

	perFile := 5 * time.Second
	if hasComplex {
		perFile = 20 * time.Second
	}

	// Rough throughput guess on top of the fixed per-file cost.
	perMB := 2 * time.Second
	if hasComplex {
		perMB = 8 * time.Second
	}
	mb := float64(totalBytes) / (1 << 20)

	est := time.Duration(fileCount)*perFile + time.Duration(mb*float64(perMB))
	if est < 5*time.Second {
		est = 5 * time.Second
	}
	return est
}

// RefineEstimate projects remaining time from observed throughput once
// at least one file has completed.
func RefineEstimate(elapsed time.Duration, completed, total int) time.Duration {
	if completed <= 0 || total <= completed {
		return 0
	}
	perFile := float64(elapsed) / float64(completed)
	return time.Duration(perFile * float64(total-completed))
}

// HumanDuration renders a duration the way progress messages show it:
// "about 30 seconds", "about 2 minutes", "about 1 hour 10 minutes".
func HumanDuration(d time.Duration) string {
	if d <= 0 {
		return "almost done"
	}
	switch {
	case d < time.Minute:
		secs := int(math.Ceil(d.Seconds()/5) * 5)
		if secs < 5 {
			secs = 5
		}
		return fmt.Sprintf("about %d seconds", secs)
	case d < time.Hour:
		mins := int(math.Round(d.Minutes()))
		if mins <= 1 {
			return "about 1 minute"
		}
		return fmt.Sprintf("about %d minutes", mins)
	default:
		hours := int(d.Hours())
		mins := int(math.Round(d.Minutes())) - hours*60
		if mins == 0 {
			if hours == 1 {
				return "about 1 hour"
			}
			return fmt.Sprintf("about %d hours", hours)
		}
		return fmt.Sprintf("about %d hour%s %d minutes", hours, plural(hours), mins)
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
