package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"EarningsTracker/internal/config"
	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/earnings"
	"EarningsTracker/internal/httpapi"
	"EarningsTracker/internal/infrastructure/eastmoney"
	"EarningsTracker/internal/infrastructure/llm"
	"EarningsTracker/internal/infrastructure/mail"
	"EarningsTracker/internal/infrastructure/scheduler"
	"EarningsTracker/internal/infrastructure/storage"
	"EarningsTracker/internal/infrastructure/telegram"
	"EarningsTracker/internal/ledger"
	"EarningsTracker/internal/logging"
	"EarningsTracker/internal/metrics"
	"EarningsTracker/internal/ports"
	"EarningsTracker/internal/source"
	"EarningsTracker/internal/state"
	"EarningsTracker/internal/usecase"
)

// ErrMailerNotConfigured is reported by sends when SMTP settings are missing.
var ErrMailerNotConfigured = errors.New("smtp mailer is not configured")

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
	store  ports.KeyValueStore
	close  func() error

	Ledger      *ledger.Ledger
	Poll        *state.PollState
	Subscribers *state.Subscribers
	History     *state.History
	Today       *state.Accumulator
	Scores      *state.Scores
	Coordinator *usecase.Coordinator

	registry *prometheus.Registry
}

// New opens storage and builds every component named in cfg.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	loc := cfg.Cycle.Location()

	store, closeStore, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.New(registry)

	src, err := resolveSource(cfg.Upstream, baseLogger)
	if err != nil {
		_ = closeStore()
		return nil, err
	}

	a := &Application{
		cfg:         cfg,
		logger:      baseLogger.With("component", "app"),
		store:       store,
		close:       closeStore,
		Ledger:      ledger.New(store, ledger.WithTTL(cfg.Cycle.MarkerTTL), ledger.WithLogger(baseLogger)),
		Poll:        state.NewPollState(store, cfg.Cycle.MinInterval, baseLogger.With("component", "throttle")),
		Subscribers: state.NewSubscribers(store, cfg.Subscribers.Protected, baseLogger.With("component", "subscribers")),
		History:     state.NewHistory(store, cfg.Cycle.HistoryLimit),
		Today:       state.NewAccumulator(store, loc, cfg.Cycle.TodayTTL),
		Scores:      state.NewScores(store, cfg.Cycle.MarkerTTL),
		registry:    registry,
	}

	a.Coordinator = usecase.NewCoordinator(usecase.CoordinatorDeps{
		Source:      src,
		Normalizer:  earnings.NewNormalizer(loc, baseLogger.With("component", "normalizer")),
		Throttle:    a.Poll,
		Ledger:      a.Ledger,
		Today:       a.Today,
		Subscribers: a.Subscribers,
		Mailer:      a.buildMailer(baseLogger),
		Renderer:    mail.NewRenderer(loc),
		History:     a.History,
		Enricher:    a.buildEnricher(baseLogger),
		Notifier:    a.buildNotifier(),
		Metrics:     recorder,
		Logger:      baseLogger,
	}, usecase.CycleConfig{
		Window:                cfg.Cycle.Window,
		AutoSend:              cfg.Cycle.AutoSend,
		MarkOnSendSuccessOnly: cfg.Cycle.MarkOnSendSuccessOnly,
		Timeout:               cfg.Cycle.Timeout,
		Location:              loc,
	})

	return a, nil
}

// RunOnce executes a single cycle.
func (a *Application) RunOnce(ctx context.Context, force bool) domain.CycleResult {
	return a.Coordinator.Run(ctx, usecase.RunOptions{Force: force})
}

// Summary emails the bucket of the given calendar day.
func (a *Application) Summary(ctx context.Context, day time.Time) domain.CycleResult {
	return a.Coordinator.SendDailySummary(ctx, day.In(a.cfg.Cycle.Location()))
}

// Location is the zone used for day buckets and summary dates.
func (a *Application) Location() *time.Location {
	return a.cfg.Cycle.Location()
}

// Serve runs the cron scheduler and the trigger server until ctx is cancelled.
func (a *Application) Serve(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(a.cfg.Cycle.Location(), a.logger)
	jobs := usecase.NewScheduler(driver, a.Coordinator, usecase.ScheduleConfig{
		CheckSpec:   a.cfg.Scheduler.CheckSpec,
		SummarySpec: a.cfg.Scheduler.SummarySpec,
	})
	server := httpapi.NewServer(a.Coordinator, httpapi.Config{
		Addr:       a.cfg.HTTP.Addr,
		CronSecret: a.cfg.HTTP.CronSecret,
		Location:   a.cfg.Cycle.Location(),
	}, a.registry, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := jobs.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Cycle.Timeout)
		defer cancel()
		return jobs.Stop(stopCtx)
	})
	g.Go(func() error {
		return server.ListenAndServe(ctx)
	})
	return g.Wait()
}

// expiredPurger is implemented by stores that keep expired rows until asked to drop them.
type expiredPurger interface {
	Purge(ctx context.Context) (int64, error)
}

// ResetLedger clears every sent marker, every daily bucket and cached scores,
// then drops rows the store kept past their expiry.
func (a *Application) ResetLedger(ctx context.Context) (markers, buckets int, err error) {
	markers, err = a.Ledger.Reset(ctx)
	if err != nil {
		return 0, 0, err
	}
	buckets, err = a.Today.Reset(ctx)
	if err != nil {
		return markers, 0, err
	}
	if _, err := a.Scores.Reset(ctx); err != nil {
		return markers, buckets, err
	}
	if p, ok := a.store.(expiredPurger); ok {
		purged, err := p.Purge(ctx)
		if err != nil {
			return markers, buckets, fmt.Errorf("purge expired rows: %w", err)
		}
		a.logger.Info("expired rows purged", "rows", purged)
	}
	a.logger.Info("ledger reset", "markers", markers, "buckets", buckets)
	return markers, buckets, nil
}

// Close releases storage connections.
func (a *Application) Close() error {
	if a.close == nil {
		return nil
	}
	return a.close()
}

func (a *Application) buildMailer(logger *slog.Logger) ports.Mailer {
	m := a.cfg.Mail
	mailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
		Host:     m.Host,
		Port:     m.Port,
		Username: m.Username,
		Password: m.Password,
		From:     m.From,
		SSL:      m.SSL,
		Timeout:  m.Timeout,
	}, logger)
	if err != nil {
		a.logger.Warn("mail disabled", "reason", err)
		return disabledMailer{}
	}
	return mailer
}

func (a *Application) buildEnricher(logger *slog.Logger) *usecase.Enricher {
	s := a.cfg.Scoring
	if s.APIKey == "" {
		return nil
	}
	scorer, err := llm.NewScorer(llm.Config{
		Endpoint:  s.Endpoint,
		Model:     s.Model,
		APIKey:    s.APIKey,
		MaxTokens: s.MaxTokens,
		Timeout:   s.Timeout,
	})
	if err != nil {
		a.logger.Warn("scoring disabled", "reason", err)
		return nil
	}
	return usecase.NewEnricher(scorer, a.Scores, usecase.EnricherConfig{
		BatchSize:  s.BatchSize,
		BatchDelay: s.BatchDelay,
		Timeout:    s.Timeout,
	}, logger)
}

func (a *Application) buildNotifier() ports.Notifier {
	t := a.cfg.Telegram
	if t.BotToken == "" {
		return nil
	}
	notifier, err := telegram.NewNotifier(t.BotToken, t.ChatID)
	if err != nil {
		a.logger.Warn("telegram mirror disabled", "reason", err)
		return nil
	}
	return notifier
}

func openStore(ctx context.Context, cfg config.StorageConfig) (ports.KeyValueStore, func() error, error) {
	switch cfg.Driver {
	case config.DriverRedis:
		store := storage.NewRedisStore(storage.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.KeyPrefix,
		})
		if err := store.Ping(ctx); err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		return store, store.Close, nil
	case config.DriverPostgres:
		store, err := storage.OpenPostgres(ctx, cfg.Postgres.DSN, cfg.Postgres.Table)
		if err != nil {
			return nil, nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return storage.NewMemoryStore(), func() error { return nil }, nil
	}
}

func resolveSource(cfg config.UpstreamConfig, logger *slog.Logger) (ports.ReportSource, error) {
	registry := source.NewRegistry()
	registry.Register(eastmoney.NewClient(nil, eastmoney.Options{
		Endpoint: cfg.Endpoint,
		PageSize: cfg.PageSize,
		MaxPages: cfg.MaxPages,
		Timeout:  cfg.Timeout,
	}, logger))
	if cfg.FilePath != "" {
		registry.Register(eastmoney.NewFileSource(cfg.FilePath))
	}
	return registry.Resolve(cfg.Source)
}

type disabledMailer struct{}

func (disabledMailer) Send(context.Context, []string, string, string) error {
	return ErrMailerNotConfigured
}
