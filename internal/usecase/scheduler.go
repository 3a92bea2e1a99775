package usecase

import (
	"context"
	"time"

	"EarningsTracker/internal/ports"
)

// ScheduleConfig holds the cron specs for recurring jobs.
type ScheduleConfig struct {
	CheckSpec   string
	SummarySpec string
}

// Scheduler wires the cron driver with the dispatch cycle and the daily summary.
type Scheduler struct {
	driver      ports.Scheduler
	coordinator *Coordinator
	cfg         ScheduleConfig
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, coordinator *Coordinator, cfg ScheduleConfig) *Scheduler {
	return &Scheduler{driver: driver, coordinator: coordinator, cfg: cfg}
}

// Start registers the jobs and starts the driver.
// The summary job reports the calendar day before its trigger time.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.coordinator == nil {
		return nil
	}

	if s.cfg.CheckSpec != "" {
		err := s.driver.Schedule(s.cfg.CheckSpec, func(time.Time) {
			_ = s.coordinator.Run(ctx, RunOptions{})
		})
		if err != nil {
			return err
		}
	}
	if s.cfg.SummarySpec != "" {
		err := s.driver.Schedule(s.cfg.SummarySpec, func(trigger time.Time) {
			_ = s.coordinator.SendDailySummary(ctx, trigger.AddDate(0, 0, -1))
		})
		if err != nil {
			return err
		}
	}

	return s.driver.Start(ctx)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
