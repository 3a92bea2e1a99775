package state

import (
	"context"
	"fmt"
	"time"

	"EarningsTracker/internal/ports"
)

// ScoreKeyPrefix namespaces enrichment comments: ai_comments:<code>_<period>.
const ScoreKeyPrefix = "ai_comments:"

// Scores persists per-entity enrichment output so later views can reuse it.
type Scores struct {
	store ports.KeyValueStore
	ttl   time.Duration
}

// NewScores keeps comments for ttl (zero keeps them indefinitely).
func NewScores(store ports.KeyValueStore, ttl time.Duration) *Scores {
	return &Scores{store: store, ttl: ttl}
}

func scoreKey(code, period string) string {
	return ScoreKeyPrefix + code + "_" + period
}

// Save stores the comment for (code, period).
func (s *Scores) Save(ctx context.Context, code, period, comment string) error {
	if err := s.store.Set(ctx, scoreKey(code, period), []byte(comment), s.ttl); err != nil {
		return fmt.Errorf("save score %s/%s: %w", code, period, err)
	}
	return nil
}

// Get loads the comment for (code, period).
func (s *Scores) Get(ctx context.Context, code, period string) (string, bool, error) {
	raw, found, err := s.store.Get(ctx, scoreKey(code, period))
	if err != nil {
		return "", false, fmt.Errorf("load score %s/%s: %w", code, period, err)
	}
	return string(raw), found, nil
}

// Reset deletes every stored comment.
func (s *Scores) Reset(ctx context.Context) (int, error) {
	keys, err := s.store.Keys(ctx, ScoreKeyPrefix)
	if err != nil {
		return 0, fmt.Errorf("list scores: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := s.store.Delete(ctx, keys...); err != nil {
		return 0, fmt.Errorf("delete scores: %w", err)
	}
	return len(keys), nil
}
