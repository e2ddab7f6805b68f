package domain

import "time"

// MonitoringConfig binds one source to one destination site.
type MonitoringConfig struct {
	ID              string
	UserID          string
	SourceID        string
	SiteID          string
	IntervalMinutes int
	Active          bool
	RewriteEnabled  bool
	AutoPublish     bool
	ArticleLimit    int
	LastCheck       *time.Time
	Overrides       PublishDefaults
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Interval returns the check interval as a duration.
func (m MonitoringConfig) Interval() time.Duration {
	return time.Duration(m.IntervalMinutes) * time.Minute
}

// RunState is the schedule state of a monitoring config.
type RunState string

const (
	RunPaused    RunState = "paused"
	RunReady     RunState = "ready"
	RunScheduled RunState = "scheduled"
)

// NextRunStatus is the result of the schedule calculation.
// At is only set when State is RunScheduled.
type NextRunStatus struct {
	State RunState
	At    time.Time
}
