package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"outlookmcp/internal/status"
)

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "expired"
	}
	if d < time.Minute {
		return "< 1 minute"
	}
	if d < time.Hour {
		minutes := int(d.Minutes())
		if minutes == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", minutes)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}

// formatExpiryWithDirection formats a time as "in X" or "expired X ago".
func formatExpiryWithDirection(expiresAt, now time.Time) string {
	remaining := expiresAt.Sub(now)
	if remaining > 0 {
		return "in " + formatDuration(remaining)
	}
	return text.FgYellow.Sprintf("expired %s ago", formatDuration(-remaining))
}

// colorStatus renders a probe status for terminal output.
func colorStatus(st status.Status) string {
	switch st {
	case status.Valid:
		return text.FgGreen.Sprint("Authenticated")
	case status.Expired:
		return text.FgYellow.Sprint("Expired")
	case status.NoRecord:
		return text.FgRed.Sprint("Not authenticated")
	default:
		return text.FgRed.Sprint("No identity")
	}
}
