package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/ports"
)

// CommentCache stores enrichment output per (entity, period).
type CommentCache interface {
	Get(ctx context.Context, code, period string) (string, bool, error)
	Save(ctx context.Context, code, period, comment string) error
}

// EnricherConfig bounds the scoring fan-out.
type EnricherConfig struct {
	BatchSize  int
	// BatchDelay is the minimum gap between the starts of two batches, shared by every
	// concurrent Enrich call. A batch that runs longer than the delay is followed immediately.
	BatchDelay time.Duration
	Timeout    time.Duration
}

// Enricher attaches a scorer comment to each report, a batch at a time.
type Enricher struct {
	scorer  ports.Scorer
	cache   CommentCache
	cfg     EnricherConfig
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewEnricher returns nil when scorer is nil so callers can skip enrichment.
func NewEnricher(scorer ports.Scorer, cache CommentCache, cfg EnricherConfig, logger *slog.Logger) *Enricher {
	if scorer == nil {
		return nil
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.BatchDelay > 0 {
		limit = rate.Every(cfg.BatchDelay)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Enricher{
		scorer:  scorer,
		cache:   cache,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("component", "enricher"),
	}
}

// Enrich returns one ScoredReport per input, in order. Per-report failures leave Comment empty.
func (e *Enricher) Enrich(ctx context.Context, reports []domain.Report) []domain.ScoredReport {
	out := make([]domain.ScoredReport, len(reports))
	for i, r := range reports {
		out[i].Report = r
	}
	if e == nil {
		return out
	}

	for start := 0; start < len(reports); start += e.cfg.BatchSize {
		if err := e.limiter.Wait(ctx); err != nil {
			e.logger.Warn("enrichment stopped", "error", err, "remaining", len(reports)-start)
			break
		}
		end := min(start+e.cfg.BatchSize, len(reports))

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				out[i].Comment = e.comment(ctx, reports[i])
			}(i)
		}
		wg.Wait()
	}
	return out
}

func (e *Enricher) comment(ctx context.Context, r domain.Report) (comment string) {
	defer func() {
		if rec := recover(); rec != nil {
			e.logger.Error("scorer panicked", "code", r.Code, "panic", rec)
			comment = ""
		}
	}()

	period := r.PeriodKey()
	if e.cache != nil {
		cached, found, err := e.cache.Get(ctx, r.Code, period)
		if err != nil {
			e.logger.Warn("read cached comment failed", "code", r.Code, "error", err)
		} else if found {
			return cached
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	comment, err := e.scorer.Score(callCtx, r)
	if err != nil {
		e.logger.Warn("score report failed", "code", r.Code, "period", period, "error", err)
		return ""
	}
	if e.cache != nil && comment != "" {
		if err := e.cache.Save(ctx, r.Code, period, comment); err != nil {
			e.logger.Warn("save comment failed", "code", r.Code, "error", err)
		}
	}
	return comment
}
