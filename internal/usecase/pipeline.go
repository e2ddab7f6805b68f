package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

// PipelineDeps wires the use cases a monitoring run chains together.
type PipelineDeps struct {
	Monitoring ports.MonitoringRegistry
	Processor  *SourceProcessor
	Rewriter   *RewriteOrchestrator
	Publisher  *PublishOrchestrator
	Notifier   ports.Notifier
	Logger     *slog.Logger
	Now        func() time.Time
}

// RunReport describes one monitoring execution.
type RunReport struct {
	ConfigID        string
	SourceID        string
	Skipped         bool
	State           domain.RunState
	Process         ProcessResult
	Rewrite         BatchResult
	Published       []PublishResult
	PublishFailures []RewriteFailure
	Err             error
}

// Summary renders a one-line description of the run.
func (r RunReport) Summary() string {
	if r.Skipped {
		return fmt.Sprintf("monitoring %s skipped (%s)", r.ConfigID, r.State)
	}
	parts := []string{
		fmt.Sprintf("monitoring %s", r.ConfigID),
		fmt.Sprintf("created %d", r.Process.Created),
		fmt.Sprintf("existing %d", r.Process.Existing),
	}
	if len(r.Rewrite.Rewritten)+len(r.Rewrite.Failures) > 0 {
		parts = append(parts, "rewrite "+r.Rewrite.Summary())
	}
	if len(r.Published)+len(r.PublishFailures) > 0 {
		parts = append(parts, fmt.Sprintf("published %d, %d failed", len(r.Published), len(r.PublishFailures)))
	}
	if r.Err != nil {
		parts = append(parts, "error: "+r.Err.Error())
	}
	return strings.Join(parts, ", ")
}

// MonitoringRunner executes monitoring configs: fetch, optional rewrite,
// optional auto-publish.
type MonitoringRunner struct {
	monitoring ports.MonitoringRegistry
	processor  *SourceProcessor
	rewriter   *RewriteOrchestrator
	publisher  *PublishOrchestrator
	notifier   ports.Notifier
	logger     *slog.Logger
	now        func() time.Time
}

// NewMonitoringRunner constructs the orchestration component.
func NewMonitoringRunner(deps PipelineDeps) *MonitoringRunner {
	return &MonitoringRunner{
		monitoring: deps.Monitoring,
		processor:  deps.Processor,
		rewriter:   deps.Rewriter,
		publisher:  deps.Publisher,
		notifier:   deps.Notifier,
		logger:     loggerOrDiscard(deps.Logger),
		now:        clockOrNow(deps.Now),
	}
}

// Execute runs one monitoring config. Paused configs are always skipped;
// configs that are not due yet are skipped unless force is set.
func (r *MonitoringRunner) Execute(ctx context.Context, configID string, force bool) (RunReport, error) {
	cfg, err := r.monitoring.GetMonitoring(ctx, configID)
	if err != nil {
		return RunReport{ConfigID: configID}, fmt.Errorf("load monitoring %s: %w", configID, err)
	}

	report := RunReport{ConfigID: cfg.ID, SourceID: cfg.SourceID}
	status := NextRun(cfg, r.now())
	report.State = status.State
	if status.State == domain.RunPaused || (status.State == domain.RunScheduled && !force) {
		report.Skipped = true
		r.logger.Debug("monitoring skipped", "config_id", cfg.ID, "state", status.State, "next_run", status.At)
		return report, nil
	}

	limit := cfg.ArticleLimit
	if limit <= 0 {
		limit = DefaultBatchSize
	}

	processed, err := r.processor.ProcessSource(ctx, cfg.SourceID, ProcessOptions{
		BatchSize:          limit,
		Offset:             0,
		SortOrder:          "desc",
		MonitoringConfigID: cfg.ID,
	})
	report.Process = processed
	if err != nil {
		report.Err = err
		r.markChecked(ctx, cfg)
		r.notify(ctx, report)
		return report, err
	}

	owner := cfg.UserID
	candidates := processed.Articles
	if cfg.RewriteEnabled && r.rewriter != nil && len(candidates) > 0 {
		report.Rewrite = r.rewriter.RewriteBatch(ctx, candidates, owner)
		candidates = report.Rewrite.Rewritten
	}

	if cfg.AutoPublish && r.publisher != nil {
		for _, article := range candidates {
			if err := ctx.Err(); err != nil {
				report.PublishFailures = append(report.PublishFailures, RewriteFailure{Article: article, Err: err})
				continue
			}
			// The article carries the config id, so the monitoring rule picks
			// the config's site before any fallback.
			published, err := r.publisher.Publish(ctx, article, PublishOptions{})
			if err != nil {
				report.PublishFailures = append(report.PublishFailures, RewriteFailure{Article: article, Err: err})
				r.logger.Warn("auto-publish failed", "config_id", cfg.ID, "article_id", article.ID, "kind", domain.KindOf(err))
				continue
			}
			report.Published = append(report.Published, published)
		}
	}

	r.markChecked(ctx, cfg)
	r.notify(ctx, report)
	r.logger.Info("monitoring executed", "config_id", cfg.ID, "summary", report.Summary())
	return report, nil
}

// ExecuteDue runs every active config that is ready, sequentially. A failing
// config is recorded in its report and the loop continues.
func (r *MonitoringRunner) ExecuteDue(ctx context.Context) ([]RunReport, error) {
	configs, err := r.monitoring.ListMonitoring(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("list monitoring: %w", err)
	}

	now := r.now()
	var reports []RunReport
	for _, cfg := range configs {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		if NextRun(cfg, now).State != domain.RunReady {
			continue
		}
		report, err := r.Execute(ctx, cfg.ID, false)
		if err != nil {
			r.logger.Error("monitoring run failed", "config_id", cfg.ID, "kind", domain.KindOf(err), "error", err)
			report.Err = err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (r *MonitoringRunner) markChecked(ctx context.Context, cfg domain.MonitoringConfig) {
	now := r.now()
	cfg.LastCheck = &now
	cfg.UpdatedAt = now
	if err := r.monitoring.UpdateMonitoring(ctx, cfg); err != nil {
		r.logger.Warn("persist monitoring last check failed", "config_id", cfg.ID, "error", err)
	}
}

func (r *MonitoringRunner) notify(ctx context.Context, report RunReport) {
	if r.notifier == nil {
		return
	}
	message := buildRunDigest(report)
	if message == "" {
		return
	}
	if err := r.notifier.PublishDigest(ctx, message); err != nil {
		r.logger.Warn("run summary notification failed", "config_id", report.ConfigID, "error", err)
	}
}

// buildRunDigest formats the operator message for a run. Runs that produced
// nothing and did not fail stay silent.
func buildRunDigest(report RunReport) string {
	if report.Err == nil && report.Process.Created == 0 && len(report.PublishFailures) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(report.Summary())
	b.WriteString("\n")
	for _, published := range report.Published {
		fmt.Fprintf(&b, "- %s\n%s\n", published.Article.Title, published.PublishedURL)
	}
	for _, failure := range report.Rewrite.Failures {
		fmt.Fprintf(&b, "- rewrite failed: %s (%s)\n", failure.Article.Title, domain.KindOf(failure.Err))
	}
	for _, failure := range report.PublishFailures {
		fmt.Fprintf(&b, "- publish failed: %s (%s)\n", failure.Article.Title, domain.KindOf(failure.Err))
	}
	return b.String()
}
