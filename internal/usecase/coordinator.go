package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/earnings"
	"EarningsTracker/internal/ports"
)

// Ledger is the sent-marker store as the coordinator uses it.
type Ledger interface {
	MarkerReader
	Mark(ctx context.Context, code, period string) error
	Claim(ctx context.Context, code, period string) (bool, error)
}

// DayBucket accumulates new reports per calendar day.
type DayBucket interface {
	Add(ctx context.Context, reports []domain.Report) (int, error)
	ForDay(ctx context.Context, day time.Time) ([]domain.Report, error)
}

// HistoryLog appends sent notifications.
type HistoryLog interface {
	Append(ctx context.Context, entry domain.HistoryEntry) (domain.HistoryEntry, error)
}

// CycleConfig parameterizes the cycle instead of keeping one code path per trigger.
type CycleConfig struct {
	Window                time.Duration
	AutoSend              bool
	MarkOnSendSuccessOnly bool
	Timeout               time.Duration
	// Location decides calendar days for the window; nil means UTC.
	Location              *time.Location
}

// RunOptions tweak a single invocation.
type RunOptions struct {
	// Force skips the throttle check; the last-run clock is still updated.
	Force bool
}

// CoordinatorDeps wires all driven adapters into the dispatch cycle.
type CoordinatorDeps struct {
	Source      ports.ReportSource
	Normalizer  *earnings.Normalizer
	Throttle    ThrottleState
	Ledger      Ledger
	Today       DayBucket
	Subscribers ports.SubscriberStore
	Mailer      ports.Mailer
	Renderer    ports.DigestRenderer
	History     HistoryLog
	Enricher    *Enricher
	Notifier    ports.Notifier
	Metrics     ports.Metrics
	Logger      *slog.Logger
	Clock       func() time.Time
}

// Coordinator runs fetch, normalize, dedupe, window, plan, mark, notify and record as one cycle.
type Coordinator struct {
	source      ports.ReportSource
	normalizer  *earnings.Normalizer
	planner     *Planner
	ledger      Ledger
	today       DayBucket
	subscribers ports.SubscriberStore
	mailer      ports.Mailer
	renderer    ports.DigestRenderer
	history     HistoryLog
	enricher    *Enricher
	notifier    ports.Notifier
	metrics     ports.Metrics
	cfg         CycleConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewCoordinator constructs the dispatch cycle.
func NewCoordinator(deps CoordinatorDeps, cfg CycleConfig) *Coordinator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = earnings.DefaultWindow
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 55 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	normalizer := deps.Normalizer
	if normalizer == nil {
		normalizer = earnings.NewNormalizer(cfg.Location, logger)
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		source:      deps.Source,
		normalizer:  normalizer,
		planner:     NewPlanner(deps.Throttle, deps.Ledger, logger),
		ledger:      deps.Ledger,
		today:       deps.Today,
		subscribers: deps.Subscribers,
		mailer:      deps.Mailer,
		renderer:    deps.Renderer,
		history:     deps.History,
		enricher:    deps.Enricher,
		notifier:    deps.Notifier,
		metrics:     metrics,
		cfg:         cfg,
		logger:      logger.With("component", "coordinator"),
		now:         now,
	}
}

// Run executes one cycle. It never panics and always returns a structured result.
func (c *Coordinator) Run(ctx context.Context, opts RunOptions) (res domain.CycleResult) {
	started := c.now()
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("cycle panicked", "panic", rec)
			res = domain.Failed(domain.OutcomeFailed, "cycle aborted", fmt.Errorf("panic: %v", rec))
		}
		c.metrics.ObserveCycle("check", res.Outcome, c.now().Sub(started))
		c.logger.Info("cycle finished", "outcome", res.Outcome, "stocks", res.StockCount, "emails", res.EmailCount)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	if !c.planner.Admit(ctx, started, opts.Force) {
		return domain.Succeeded(domain.OutcomeThrottled, "skipped: minimum interval not elapsed")
	}

	windowed, res, ok := c.collect(ctx, started)
	if !ok {
		return res
	}

	fresh := earnings.Ordered(c.planner.Diff(ctx, windowed))
	if len(fresh) == 0 {
		return domain.Succeeded(domain.OutcomeNoNew, "no new reports")
	}
	c.logger.Info("new reports found", "count", len(fresh))

	if _, err := c.today.Add(ctx, fresh); err != nil {
		c.logger.Warn("accumulate today's reports failed", "error", err)
	}
	if !c.cfg.AutoSend {
		res := domain.Succeeded(domain.OutcomeAccumulated, fmt.Sprintf("%d new reports queued for the daily summary", len(fresh)))
		res.StockCount = len(fresh)
		return res
	}

	if !c.cfg.MarkOnSendSuccessOnly {
		fresh = c.claim(ctx, fresh)
		if len(fresh) == 0 {
			return domain.Succeeded(domain.OutcomeNoNew, "new reports already claimed by a concurrent run")
		}
	}

	res = c.dispatch(ctx, fresh, started)
	if res.Outcome == domain.OutcomeSent && c.cfg.MarkOnSendSuccessOnly {
		for _, r := range fresh {
			if err := c.ledger.Mark(ctx, r.Code, r.PeriodKey()); err != nil {
				c.logger.Warn("mark sent failed", "code", r.Code, "error", err)
			}
		}
	}
	return res
}

// collect fetches and reduces upstream data to the windowed per-entity latest reports.
func (c *Coordinator) collect(ctx context.Context, now time.Time) (map[string]domain.Report, domain.CycleResult, bool) {
	if c.source == nil {
		return nil, domain.Succeeded(domain.OutcomeNoData, "no source configured"), false
	}
	records, err := c.source.Fetch(ctx)
	if err != nil {
		c.metrics.FetchFailed(c.source.Name())
		c.logger.Warn("fetch reports failed", "source", c.source.Name(), "error", err)
		return nil, domain.Succeeded(domain.OutcomeNoData, "upstream unavailable"), false
	}
	if len(records) == 0 {
		return nil, domain.Succeeded(domain.OutcomeNoData, "no data"), false
	}

	reports := c.normalizer.Normalize(records)
	latest := earnings.LatestPerEntity(earnings.LatestPerPeriod(reports))
	windowed := earnings.Within(latest, c.cfg.Window, now.In(c.cfg.Location))
	c.logger.Debug("reports reduced", "raw", len(records), "normalized", len(reports), "entities", len(latest), "windowed", len(windowed))
	return windowed, domain.CycleResult{}, true
}

// claim marks every report before sending and drops those another run already claimed.
// Claim errors keep the report: a storage outage must not silence notifications.
func (c *Coordinator) claim(ctx context.Context, reports []domain.Report) []domain.Report {
	kept := make([]domain.Report, 0, len(reports))
	for _, r := range reports {
		won, err := c.ledger.Claim(ctx, r.Code, r.PeriodKey())
		if err != nil {
			c.logger.Warn("claim marker failed, sending anyway", "code", r.Code, "error", err)
			kept = append(kept, r)
			continue
		}
		if !won {
			c.logger.Info("report claimed elsewhere", "code", r.Code, "period", r.PeriodKey())
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func (c *Coordinator) dispatch(ctx context.Context, reports []domain.Report, at time.Time) domain.CycleResult {
	recipients, err := c.subscribers.List(ctx)
	if err != nil {
		res := domain.Failed(domain.OutcomeFailed, "load subscribers", err)
		res.StockCount = len(reports)
		return res
	}
	if len(recipients) == 0 {
		res := domain.Succeeded(domain.OutcomeNoSubscribers, "no subscribers")
		res.StockCount = len(reports)
		return res
	}

	scored := c.enricher.Enrich(ctx, reports)
	subject, body, err := c.renderer.Instant(scored, at)
	if err != nil {
		res := domain.Failed(domain.OutcomeSendFailed, "render notification", err)
		res.StockCount = len(reports)
		return res
	}
	return c.send(ctx, domain.HistoryInstant, recipients, subject, body, scored)
}

func (c *Coordinator) send(ctx context.Context, kind domain.HistoryKind, recipients []string, subject, body string, scored []domain.ScoredReport) domain.CycleResult {
	reports := make([]domain.Report, len(scored))
	for i, s := range scored {
		reports[i] = s.Report
	}

	if err := c.mailer.Send(ctx, recipients, subject, body); err != nil {
		c.logger.Error("send notification failed", "kind", kind, "recipients", len(recipients), "error", err)
		res := domain.Failed(domain.OutcomeSendFailed, "send notification", err)
		res.StockCount = len(reports)
		return res
	}
	c.metrics.AddNotified(len(reports))

	if _, err := c.history.Append(ctx, domain.HistoryEntry{
		Kind:       kind,
		SentAt:     c.now().UTC(),
		Recipients: append([]string(nil), recipients...),
		StockCount: len(reports),
		Stocks:     domain.Summarize(reports),
	}); err != nil {
		c.logger.Warn("record history failed", "error", err)
	}

	if c.notifier != nil {
		if err := c.notifier.PublishDigest(ctx, c.renderer.PlainText(scored)); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Warn("mirror digest failed", "error", err)
		}
	}

	res := domain.Succeeded(domain.OutcomeSent, fmt.Sprintf("notified %d recipients about %d reports", len(recipients), len(reports)))
	res.StockCount = len(reports)
	res.EmailCount = len(recipients)
	return res
}

// SendDailySummary emails the bucket of the calendar day containing day.
func (c *Coordinator) SendDailySummary(ctx context.Context, day time.Time) (res domain.CycleResult) {
	started := c.now()
	defer func() {
		if rec := recover(); rec != nil {
			c.logger.Error("summary panicked", "panic", rec)
			res = domain.Failed(domain.OutcomeFailed, "summary aborted", fmt.Errorf("panic: %v", rec))
		}
		c.metrics.ObserveCycle("summary", res.Outcome, c.now().Sub(started))
		c.logger.Info("summary finished", "day", day.Format(domain.DateLayout), "outcome", res.Outcome, "stocks", res.StockCount)
	}()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	reports, err := c.today.ForDay(ctx, day)
	if err != nil {
		return domain.Failed(domain.OutcomeFailed, "load daily bucket", err)
	}
	if len(reports) == 0 {
		return domain.Succeeded(domain.OutcomeNoNew, "no new reports for "+day.Format(domain.DateLayout))
	}

	recipients, err := c.subscribers.List(ctx)
	if err != nil {
		return domain.Failed(domain.OutcomeFailed, "load subscribers", err)
	}
	if len(recipients) == 0 {
		res := domain.Succeeded(domain.OutcomeNoSubscribers, "no subscribers")
		res.StockCount = len(reports)
		return res
	}

	scored := c.enricher.Enrich(ctx, reports)
	subject, body, err := c.renderer.Summary(day, scored)
	if err != nil {
		return domain.Failed(domain.OutcomeSendFailed, "render summary", err)
	}
	return c.send(ctx, domain.HistorySummary, recipients, subject, body, scored)
}

type noopMetrics struct{}

func (noopMetrics) ObserveCycle(string, domain.Outcome, time.Duration) {}
func (noopMetrics) AddNotified(int)                                    {}
func (noopMetrics) FetchFailed(string)                                 {}
