package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"EarningsTracker/internal/ports"
)

// CronScheduler runs jobs on standard five-field cron specs in a fixed location.
type CronScheduler struct {
	mu      sync.Mutex
	engine  *cron.Cron
	loc     *time.Location
	logger  *slog.Logger
	running bool
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler evaluates specs in loc; nil means time.Local.
func NewCronScheduler(loc *time.Location, logger *slog.Logger) *CronScheduler {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CronScheduler{
		engine: cron.New(cron.WithLocation(loc), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		loc:    loc,
		logger: logger.With("component", "cron"),
	}
}

// Schedule registers job under spec; it may be called before or after Start.
func (c *CronScheduler) Schedule(spec string, job func(time.Time)) error {
	if job == nil {
		return nil
	}
	id, err := c.engine.AddFunc(spec, func() {
		c.logger.Debug("job triggered", "spec", spec)
		job(time.Now().In(c.loc))
	})
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.logger.Info("job scheduled", "spec", spec, "next", c.engine.Entry(id).Next)
	return nil
}

// Start begins dispatching; cancelling ctx stops the engine.
func (c *CronScheduler) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}
	c.running = true
	c.engine.Start()

	go func() {
		<-ctx.Done()
		_ = c.Stop(context.Background())
	}()
	return nil
}

// Stop halts the engine and waits for running jobs until ctx expires.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	done := c.engine.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
