package state

import (
	"context"
	"fmt"
	"time"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/ports"
)

const (
	// TodayKeyPrefix namespaces per-day buckets: daily_new_stocks:<YYYY-MM-DD>.
	TodayKeyPrefix = "daily_new_stocks:"
	// DefaultBucketTTL keeps a bucket long enough for the next morning's summary.
	DefaultBucketTTL = 72 * time.Hour
)

type bucket struct {
	Date      string          `json:"date"`
	Timestamp int64           `json:"timestamp"`
	Data      []domain.Report `json:"data"`
}

// Accumulator collects newly discovered reports into per-calendar-day buckets.
type Accumulator struct {
	store ports.KeyValueStore
	loc   *time.Location
	ttl   time.Duration
	now   func() time.Time
}

// NewAccumulator buckets by calendar day in loc.
func NewAccumulator(store ports.KeyValueStore, loc *time.Location, ttl time.Duration) *Accumulator {
	if loc == nil {
		loc = time.UTC
	}
	if ttl <= 0 {
		ttl = DefaultBucketTTL
	}
	return &Accumulator{store: store, loc: loc, ttl: ttl, now: time.Now}
}

// WithClock replaces the wall clock.
func (a *Accumulator) WithClock(now func() time.Time) *Accumulator {
	a.now = now
	return a
}

// BucketKey returns the key of the bucket containing day.
func (a *Accumulator) BucketKey(day time.Time) string {
	return TodayKeyPrefix + day.In(a.loc).Format(domain.DateLayout)
}

// Add appends reports whose entity code is not already in today's bucket and returns how many were added.
func (a *Accumulator) Add(ctx context.Context, reports []domain.Report) (int, error) {
	now := a.now()
	key := a.BucketKey(now)

	var b bucket
	if _, err := getJSON(ctx, a.store, key, &b); err != nil {
		return 0, fmt.Errorf("load bucket: %w", err)
	}
	seen := make(map[string]struct{}, len(b.Data))
	for _, r := range b.Data {
		seen[r.Code] = struct{}{}
	}

	added := 0
	for _, r := range reports {
		if _, ok := seen[r.Code]; ok {
			continue
		}
		seen[r.Code] = struct{}{}
		b.Data = append(b.Data, r)
		added++
	}
	if added == 0 {
		return 0, nil
	}

	b.Date = now.In(a.loc).Format(domain.DateLayout)
	b.Timestamp = now.UnixMilli()
	if err := setJSON(ctx, a.store, key, b, a.ttl); err != nil {
		return 0, fmt.Errorf("save bucket: %w", err)
	}
	return added, nil
}

// ForDay returns the bucket contents for the calendar day containing day.
func (a *Accumulator) ForDay(ctx context.Context, day time.Time) ([]domain.Report, error) {
	var b bucket
	found, err := getJSON(ctx, a.store, a.BucketKey(day), &b)
	if err != nil {
		return nil, fmt.Errorf("load bucket: %w", err)
	}
	if !found || b.Date != day.In(a.loc).Format(domain.DateLayout) {
		return nil, nil
	}
	return b.Data, nil
}

// Today returns the current day's bucket.
func (a *Accumulator) Today(ctx context.Context) ([]domain.Report, error) {
	return a.ForDay(ctx, a.now())
}

// Reset deletes every bucket.
func (a *Accumulator) Reset(ctx context.Context) (int, error) {
	keys, err := a.store.Keys(ctx, TodayKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list buckets: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := a.store.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete buckets: %w", err)
	}
	return len(keys), nil
}
