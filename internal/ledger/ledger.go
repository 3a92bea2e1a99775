// Package ledger records which (entity, period) pairs have already been notified.
//
// Lookups favour availability: a storage error reads as "not marked", so an outage can cause
// an occasional duplicate but never suppresses notifications indefinitely. Every write touches
// a single key and is idempotent, so no multi-key transaction is needed.
package ledger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"EarningsTracker/internal/ports"
)

const (
	// KeyPrefix namespaces marker keys: sent_stocks:<code>:<period>.
	KeyPrefix = "sent_stocks:"
	// DefaultTTL bounds ledger growth while outlasting a period's re-disclosure cycle.
	DefaultTTL = 90 * 24 * time.Hour
)

// Ledger is the durable at-most-once notification record.
type Ledger struct {
	store  ports.KeyValueStore
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

// Option customises a Ledger.
type Option func(*Ledger)

// WithTTL overrides the marker lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(l *Ledger) {
		if ttl > 0 {
			l.ttl = ttl
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New builds a ledger over store.
func New(store ports.KeyValueStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Key returns the storage key of a marker.
func Key(code, period string) string {
	return KeyPrefix + code + ":" + period
}

// IsMarked reports whether (code, period) was notified. Storage errors read as false.
func (l *Ledger) IsMarked(ctx context.Context, code, period string) bool {
	_, found, err := l.store.Get(ctx, Key(code, period))
	if err != nil {
		l.logger.Warn("ledger lookup failed, treating as not marked", "code", code, "period", period, "error", err)
		return false
	}
	return found
}

// Mark records (code, period). Repeated calls leave the marker in place and refresh its TTL.
func (l *Ledger) Mark(ctx context.Context, code, period string) error {
	if err := l.store.Set(ctx, Key(code, period), l.stamp(), l.ttl); err != nil {
		return fmt.Errorf("mark %s/%s: %w", code, period, err)
	}
	return nil
}

// Claim marks (code, period) only if no marker exists and reports whether this caller created it.
// Two racing cycles can both see an entity as new; only the claimant goes on to notify it.
func (l *Ledger) Claim(ctx context.Context, code, period string) (bool, error) {
	ok, err := l.store.SetNX(ctx, Key(code, period), l.stamp(), l.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s/%s: %w", code, period, err)
	}
	return ok, nil
}

// Unmark removes one marker.
func (l *Ledger) Unmark(ctx context.Context, code, period string) error {
	if err := l.store.Delete(ctx, Key(code, period)); err != nil {
		return fmt.Errorf("unmark %s/%s: %w", code, period, err)
	}
	return nil
}

// Reset clears every marker and returns how many were removed.
func (l *Ledger) Reset(ctx context.Context) (int, error) {
	keys, err := l.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list markers: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := l.store.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete markers: %w", err)
	}
	return len(keys), nil
}

func (l *Ledger) stamp() []byte {
	return []byte(l.now().UTC().Format(time.RFC3339))
}
