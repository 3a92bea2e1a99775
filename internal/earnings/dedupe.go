package earnings

import (
	"sort"

	"EarningsTracker/internal/domain"
)

// PeriodKey identifies one entity's forecast for one fiscal period.
type PeriodKey struct {
	Code   string
	Period string
}

// KeyOf returns the (entity, period) key of a report.
func KeyOf(r domain.Report) PeriodKey {
	return PeriodKey{Code: r.Code, Period: r.PeriodKey()}
}

// LatestPerPeriod keeps the report with the greatest disclosure date for every (entity, period).
// Ties keep the first report seen. The result preserves first-seen key order.
func LatestPerPeriod(reports []domain.Report) []domain.Report {
	index := make(map[PeriodKey]int, len(reports))
	out := make([]domain.Report, 0, len(reports))
	for _, r := range reports {
		key := KeyOf(r)
		i, ok := index[key]
		if !ok {
			index[key] = len(out)
			out = append(out, r)
			continue
		}
		if r.DisclosureDate.After(out[i].DisclosureDate) {
			out[i] = r
		}
	}
	return out
}

// LatestPerEntity collapses periods so that each entity keeps only its newest report.
// Disclosure date decides first; on a tie the later fiscal period wins.
func LatestPerEntity(reports []domain.Report) map[string]domain.Report {
	latest := make(map[string]domain.Report)
	for _, r := range LatestPerPeriod(reports) {
		existing, ok := latest[r.Code]
		if !ok || newer(r, existing) {
			latest[r.Code] = r
		}
	}
	return latest
}

func newer(candidate, existing domain.Report) bool {
	if candidate.DisclosureDate.Equal(existing.DisclosureDate) {
		return candidate.Period.After(existing.Period)
	}
	return candidate.DisclosureDate.After(existing.DisclosureDate)
}

// Ordered returns the map values sorted by disclosure date (newest first), then code.
func Ordered(reports map[string]domain.Report) []domain.Report {
	out := make([]domain.Report, 0, len(reports))
	for _, r := range reports {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].DisclosureDate.Equal(out[j].DisclosureDate) {
			return out[i].DisclosureDate.After(out[j].DisclosureDate)
		}
		return out[i].Code < out[j].Code
	})
	return out
}
