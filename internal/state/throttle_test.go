package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarningsTracker/internal/infrastructure/storage"
)

func TestLastRunRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPollState(storage.NewMemoryStore(), 0, nil)

	_, found, err := p.LastRun(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	at := time.Date(2025, 7, 15, 9, 30, 0, 0, time.UTC)
	require.NoError(t, p.SetLastRun(ctx, at))

	got, found, err := p.LastRun(ctx)
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, at.Equal(got))
}

func TestMinIntervalFallsBackToConfigured(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPollState(storage.NewMemoryStore(), 45*time.Minute, nil)
	assert.Equal(t, 45*time.Minute, p.MinInterval(ctx))

	require.NoError(t, p.SetMinInterval(ctx, 10))
	assert.Equal(t, 10*time.Minute, p.MinInterval(ctx))
}

func TestSetMinIntervalRejectsOutOfRange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPollState(storage.NewMemoryStore(), 0, nil)

	for _, minutes := range []int{0, 4, 1441} {
		err := p.SetMinInterval(ctx, minutes)
		assert.True(t, errors.Is(err, ErrIntervalOutOfRange), "minutes=%d", minutes)
	}
	assert.Equal(t, DefaultInterval, p.MinInterval(ctx))

	require.NoError(t, p.SetMinInterval(ctx, MinIntervalMinutes))
	require.NoError(t, p.SetMinInterval(ctx, MaxIntervalMinutes))
	assert.Equal(t, 24*time.Hour, p.MinInterval(ctx))
}

func TestMinIntervalIgnoresCorruptSettings(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(ctx, SettingsKey, []byte("not json"), 0))

	p := NewPollState(store, 20*time.Minute, nil)
	assert.Equal(t, 20*time.Minute, p.MinInterval(ctx))
}
