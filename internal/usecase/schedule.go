package usecase

import (
	"time"

	"NewsAutopilot/internal/domain"
)

// NextRun computes when a monitoring config should run next. Inactive
// configs are paused; configs that never ran, or whose next slot is not
// after now, are ready.
func NextRun(cfg domain.MonitoringConfig, now time.Time) domain.NextRunStatus {
	if !cfg.Active {
		return domain.NextRunStatus{State: domain.RunPaused}
	}
	if cfg.LastCheck == nil {
		return domain.NextRunStatus{State: domain.RunReady}
	}

	next := cfg.LastCheck.Add(cfg.Interval())
	if !next.After(now) {
		return domain.NextRunStatus{State: domain.RunReady}
	}
	return domain.NextRunStatus{State: domain.RunScheduled, At: next}
}
