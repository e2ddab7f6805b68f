package usecase

import (
	"context"
	"log/slog"
	"time"

	"NewsAutopilot/internal/ports"
)

// Scheduler wires the external trigger driver with the monitoring runner.
type Scheduler struct {
	driver ports.Scheduler
	runner *MonitoringRunner
	logger *slog.Logger
}

// NewScheduler returns a helper to start/stop recurring due-config runs.
func NewScheduler(driver ports.Scheduler, runner *MonitoringRunner, logger *slog.Logger) *Scheduler {
	return &Scheduler{driver: driver, runner: runner, logger: loggerOrDiscard(logger)}
}

// Start registers ExecuteDue with the provided driver.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.runner == nil {
		return nil
	}

	job := func(trigger time.Time) {
		reports, err := s.runner.ExecuteDue(ctx)
		if err != nil {
			s.logger.Error("due monitoring run failed", "trigger", trigger, "error", err)
			return
		}
		s.logger.Debug("due monitoring run finished", "trigger", trigger, "configs", len(reports))
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying driver.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
