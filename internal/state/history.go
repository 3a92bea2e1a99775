package state

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/ports"
)

const (
	// HistoryKey holds the newest-first notification log.
	HistoryKey = "email_history"
	// DefaultHistoryLimit caps the log length.
	DefaultHistoryLimit = 100
)

// History is a bounded, newest-first notification log.
type History struct {
	store ports.KeyValueStore
	limit int
	now   func() time.Time
}

// NewHistory keeps at most limit entries; non-positive limits use DefaultHistoryLimit.
func NewHistory(store ports.KeyValueStore, limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{store: store, limit: limit, now: time.Now}
}

// WithClock replaces the wall clock used for SentAt defaults.
func (h *History) WithClock(now func() time.Time) *History {
	h.now = now
	return h
}

// Append prepends entry, dropping the oldest entries past the limit.
func (h *History) Append(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error) {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.SentAt.IsZero() {
		entry.SentAt = h.now().UTC()
	}
	if entry.Kind == "" {
		entry.Kind = domain.HistoryInstant
	}

	list, err := h.List(ctx)
	if err != nil {
		return domain.HistoryEntry{}, err
	}
	list = append([]domain.HistoryEntry{entry}, list...)
	if len(list) > h.limit {
		list = list[:h.limit]
	}
	if err := setJSON(ctx, h.store, HistoryKey, list, 0); err != nil {
		return domain.HistoryEntry{}, fmt.Errorf("save history: %w", err)
	}
	return entry, nil
}

// List returns entries newest first.
func (h *History) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	var list []domain.HistoryEntry
	if _, err := getJSON(ctx, h.store, HistoryKey, &list); err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return list, nil
}

// Clear empties the log.
func (h *History) Clear(ctx context.Context) error {
	if err := setJSON(ctx, h.store, HistoryKey, []domain.HistoryEntry{}, 0); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}
