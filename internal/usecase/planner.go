package usecase

import (
	"context"
	"log/slog"
	"time"

	"EarningsTracker/internal/domain"
)

// ThrottleState is the last-run clock and interval the planner consults.
type ThrottleState interface {
	LastRun(ctx context.Context) (time.Time, bool, error)
	SetLastRun(ctx context.Context, t time.Time) error
	MinInterval(ctx context.Context) time.Duration
}

// MarkerReader answers whether an (entity, period) pair was already notified.
type MarkerReader interface {
	IsMarked(ctx context.Context, code, period string) bool
}

// PlanResult is the planner's verdict for one cycle.
type PlanResult struct {
	ShouldProceed bool
	Throttled     bool
	NewEntities   map[string]domain.Report
}

// Planner decides whether a cycle runs and which entities are new.
type Planner struct {
	throttle ThrottleState
	ledger   MarkerReader
	logger   *slog.Logger
}

// NewPlanner builds a planner over the throttle state and ledger.
func NewPlanner(throttle ThrottleState, ledger MarkerReader, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{throttle: throttle, ledger: ledger, logger: logger.With("component", "planner")}
}

// Admit applies the minimum-interval throttle. A throttled call writes nothing;
// an admitted call records now as the last run before returning.
// Storage errors admit the cycle: the throttle only saves cost, the ledger owns correctness.
func (p *Planner) Admit(ctx context.Context, now time.Time, force bool) bool {
	if !force {
		last, found, err := p.throttle.LastRun(ctx)
		if err != nil {
			p.logger.Warn("read last run failed, proceeding", "error", err)
		} else if found {
			interval := p.throttle.MinInterval(ctx)
			if since := now.Sub(last); since < interval {
				p.logger.Debug("throttled", "since", since, "interval", interval)
				return false
			}
		}
	}
	if err := p.throttle.SetLastRun(ctx, now); err != nil {
		p.logger.Warn("write last run failed", "error", err)
	}
	return true
}

// Diff returns the entities whose latest period is not yet in the ledger.
// Only the latest period per entity is ever tested.
func (p *Planner) Diff(ctx context.Context, windowed map[string]domain.Report) map[string]domain.Report {
	fresh := make(map[string]domain.Report, len(windowed))
	for code, report := range windowed {
		if p.ledger.IsMarked(ctx, code, report.PeriodKey()) {
			continue
		}
		fresh[code] = report
	}
	return fresh
}

// Plan composes Admit and Diff.
func (p *Planner) Plan(ctx context.Context, windowed map[string]domain.Report, now time.Time) PlanResult {
	if !p.Admit(ctx, now, false) {
		return PlanResult{Throttled: true, NewEntities: map[string]domain.Report{}}
	}
	fresh := p.Diff(ctx, windowed)
	return PlanResult{ShouldProceed: len(fresh) > 0, NewEntities: fresh}
}
