package earnings

import (
	"time"

	"EarningsTracker/internal/domain"
)

// DefaultWindow is the trailing span used when none is configured.
const DefaultWindow = 7 * 24 * time.Hour

// Cutoff returns the start of the calendar day that lies window before now.
// The day is taken in now's location, which must match the zone disclosure dates were parsed in.
func Cutoff(now time.Time, window time.Duration) time.Time {
	if window <= 0 {
		window = DefaultWindow
	}
	t := now.Add(-window)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Within keeps entities whose latest report was disclosed on or after Cutoff(now, window).
// Entities outside the window are omitted, not zero-filled.
func Within(latest map[string]domain.Report, window time.Duration, now time.Time) map[string]domain.Report {
	cutoff := Cutoff(now, window)
	out := make(map[string]domain.Report, len(latest))
	for code, r := range latest {
		if r.DisclosureDate.IsZero() || r.DisclosureDate.Before(cutoff) {
			continue
		}
		out[code] = r
	}
	return out
}
