// Package earnings turns a noisy upstream batch into the latest, recent report per entity.
package earnings

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"EarningsTracker/internal/domain"
)

// Normalizer converts raw upstream rows into canonical reports.
type Normalizer struct {
	loc    *time.Location
	logger *slog.Logger
}

// NewNormalizer parses dates in loc; nil falls back to UTC.
func NewNormalizer(loc *time.Location, logger *slog.Logger) *Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Normalizer{loc: loc, logger: logger}
}

// Normalize drops rows without an entity code and never fails on individual rows.
func (n *Normalizer) Normalize(records []domain.RawRecord) []domain.Report {
	reports := make([]domain.Report, 0, len(records))
	dropped := 0
	for _, rec := range records {
		report, ok := NormalizeRecord(rec, n.loc)
		if !ok {
			dropped++
			continue
		}
		reports = append(reports, report)
	}
	if dropped > 0 {
		n.logger.Debug("dropped incomplete records", "dropped", dropped, "kept", len(reports))
	}
	return reports
}

// NormalizeRecord maps one row; ok is false when the entity code is missing.
func NormalizeRecord(rec domain.RawRecord, loc *time.Location) (domain.Report, bool) {
	code := strings.TrimSpace(rec.SecurityCode.String())
	if code == "" {
		return domain.Report{}, false
	}

	changeMin, _ := rec.ChangeLower.Float()
	changeMax, _ := rec.ChangeUpper.Float()

	content := strings.TrimSpace(rec.PredictContent.String())
	reason := strings.TrimSpace(rec.ChangeReason.String())
	if content == "" {
		content = reason
	}

	return domain.Report{
		Code:           code,
		Name:           strings.TrimSpace(rec.SecurityName.String()),
		DisclosureDate: ParseDate(rec.NoticeDate.String(), loc),
		Period:         ParseDate(rec.ReportDate.String(), loc),
		ForecastType:   strings.TrimSpace(rec.PredictType.String()),
		ChangeMin:      changeMin,
		ChangeMax:      changeMax,
		Content:        content,
		PredictValue:   predictedValue(rec.PredictAmtLower, rec.PredictAmtUpper),
		LastYearValue:  optional(rec.PreviousYearValue),
		ChangeYoY:      optional(rec.ChangeYoY),
		ChangeQoQ:      optional(rec.ChangeQoQ),
		ChangeReason:   reason,
	}, true
}

// ParseDate keeps only the date portion of "2025-07-10 00:00:00" or RFC 3339 style values.
// Unparsable input yields the zero time, which every window excludes.
func ParseDate(value string, loc *time.Location) time.Time {
	value = strings.TrimSpace(value)
	if i := strings.IndexAny(value, " T"); i >= 0 {
		value = value[:i]
	}
	if value == "" {
		return time.Time{}
	}
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(domain.DateLayout, value, loc)
	if err != nil {
		return time.Time{}
	}
	return t
}

func predictedValue(lower, upper domain.Field) *float64 {
	lo, hasLo := lower.Float()
	hi, hasHi := upper.Float()
	switch {
	case hasLo && hasHi:
		v := (lo + hi) / 2
		return &v
	case hasHi:
		return &hi
	case hasLo:
		return &lo
	default:
		return nil
	}
}

func optional(f domain.Field) *float64 {
	v, ok := f.Float()
	if !ok {
		return nil
	}
	return &v
}
