package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EarningsTracker/internal/infrastructure/storage"
)

func TestScoresSaveGetReset(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewScores(storage.NewMemoryStore(), 0)

	_, found, err := s.Get(ctx, "600519", "2025-06-30")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Save(ctx, "600519", "2025-06-30", "评分：80"))
	comment, found, err := s.Get(ctx, "600519", "2025-06-30")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "评分：80", comment)

	n, err := s.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
