package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"EarningsTracker/internal/ports"
)

const (
	// LastPollKey holds the RFC 3339 start time of the last cycle that passed the throttle.
	LastPollKey = "last_poll_timestamp"
	// SettingsKey holds runtime-adjustable settings.
	SettingsKey = "app_settings"

	MinIntervalMinutes = 5
	MaxIntervalMinutes = 1440
	// DefaultInterval applies when neither settings nor config provide one.
	DefaultInterval = 30 * time.Minute
)

// ErrIntervalOutOfRange rejects settings outside MinIntervalMinutes..MaxIntervalMinutes.
var ErrIntervalOutOfRange = errors.New("interval must be between 5 and 1440 minutes")

// Settings is the runtime-adjustable configuration document.
type Settings struct {
	NotificationFrequency int `json:"notificationFrequency"`
}

// PollState tracks the last run and the minimum interval between full cycles.
// It is a best-effort cost guard, not a lock: duplicate suppression lives in the ledger.
type PollState struct {
	store    ports.KeyValueStore
	fallback time.Duration
	logger   *slog.Logger
}

// NewPollState uses fallback when no runtime interval is stored.
func NewPollState(store ports.KeyValueStore, fallback time.Duration, logger *slog.Logger) *PollState {
	if fallback <= 0 {
		fallback = DefaultInterval
	}
	if logger == nil {
		logger = discardLogger()
	}
	return &PollState{store: store, fallback: fallback, logger: logger}
}

// LastRun returns the recorded last-run time, if any.
func (p *PollState) LastRun(ctx context.Context) (time.Time, bool, error) {
	raw, found, err := p.store.Get(ctx, LastPollKey)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("read last run: %w", err)
	}
	if !found {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last run %q: %w", raw, err)
	}
	return t, true, nil
}

// SetLastRun records t as the last-run time.
func (p *PollState) SetLastRun(ctx context.Context, t time.Time) error {
	if err := p.store.Set(ctx, LastPollKey, []byte(t.UTC().Format(time.RFC3339Nano)), 0); err != nil {
		return fmt.Errorf("write last run: %w", err)
	}
	return nil
}

// MinInterval reads the runtime interval, falling back to the configured default on any problem.
func (p *PollState) MinInterval(ctx context.Context) time.Duration {
	var s Settings
	found, err := getJSON(ctx, p.store, SettingsKey, &s)
	if err != nil {
		p.logger.Warn("read settings failed, using configured interval", "error", err)
		return p.fallback
	}
	if !found || s.NotificationFrequency < MinIntervalMinutes || s.NotificationFrequency > MaxIntervalMinutes {
		return p.fallback
	}
	return time.Duration(s.NotificationFrequency) * time.Minute
}

// SetMinInterval stores a new interval in minutes.
func (p *PollState) SetMinInterval(ctx context.Context, minutes int) error {
	if minutes < MinIntervalMinutes || minutes > MaxIntervalMinutes {
		return fmt.Errorf("%w: got %d", ErrIntervalOutOfRange, minutes)
	}
	if err := setJSON(ctx, p.store, SettingsKey, Settings{NotificationFrequency: minutes}, 0); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}
