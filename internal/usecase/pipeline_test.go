package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAutopilot/internal/domain"
)

type runnerFixture struct {
	store     *memoryStore
	origin    *fakeOrigin
	ledger    *fakeLedger
	publisher *fakePublisher
	notifier  *recordingNotifier
	runner    *MonitoringRunner
}

func newRunnerFixture(t *testing.T, cfg domain.MonitoringConfig, failOn map[string]error) runnerFixture {
	t.Helper()
	ctx := context.Background()
	store := newMemoryStore()
	_, err := store.CreateSource(ctx, domain.Source{ID: "src-news", UserID: "user-1", Type: domain.SourceFeed, Active: true})
	require.NoError(t, err)
	_, err = store.CreateSite(ctx, completeSite("blog", "user-1"))
	require.NoError(t, err)
	_, err = store.CreateMonitoring(ctx, cfg)
	require.NoError(t, err)

	origin := &fakeOrigin{items: candidates(5)}
	ledger := newFakeLedger("user-1", 10)
	publisher := &fakePublisher{}
	notifier := &recordingNotifier{}

	processor := NewSourceProcessor(ProcessorDeps{Sources: store, Articles: store, Origin: origin, Now: fixedClock})
	rewriter := NewRewriteOrchestrator(RewriteDeps{
		Ledger:   ledger,
		Rewriter: &fakeRewriter{ledger: ledger, failOn: failOn},
		Articles: store,
		Now:      fixedClock,
	})
	publish := NewPublishOrchestrator(PublishDeps{
		Sources: store, Sites: store, Monitoring: store, Articles: store,
		Publisher: publisher, Now: fixedClock,
	})

	return runnerFixture{
		store:     store,
		origin:    origin,
		ledger:    ledger,
		publisher: publisher,
		notifier:  notifier,
		runner: NewMonitoringRunner(PipelineDeps{
			Monitoring: store,
			Processor:  processor,
			Rewriter:   rewriter,
			Publisher:  publish,
			Notifier:   notifier,
			Now:        fixedClock,
		}),
	}
}

func TestExecuteRewritesAndPublishes(t *testing.T) {
	cfg := domain.MonitoringConfig{
		ID: "mon-1", UserID: "user-1", SourceID: "src-news", SiteID: "blog",
		IntervalMinutes: 60, Active: true, RewriteEnabled: true, AutoPublish: true, ArticleLimit: 3,
	}
	f := newRunnerFixture(t, cfg, map[string]error{"Item 1": errors.New("model refused")})

	report, err := f.runner.Execute(context.Background(), "mon-1", false)
	require.NoError(t, err)

	assert.False(t, report.Skipped)
	assert.Equal(t, 3, report.Process.Created)
	assert.Len(t, report.Rewrite.Rewritten, 2)
	assert.Len(t, report.Rewrite.Failures, 1)
	assert.Len(t, report.Published, 2)
	for _, req := range f.publisher.published {
		assert.Equal(t, "blog", req.Site.ID)
		assert.Contains(t, req.Content, "rewritten:")
	}
	assert.Equal(t, 8, f.ledger.Available("user-1"))

	stored, err := f.store.GetMonitoring(context.Background(), "mon-1")
	require.NoError(t, err)
	require.NotNil(t, stored.LastCheck)
	assert.Equal(t, fixedNow, *stored.LastCheck)

	require.Len(t, f.notifier.messages, 1)
	assert.Contains(t, f.notifier.messages[0], "rewrite failed: Item 1")
}

func TestExecuteSkipsPausedAndNotDue(t *testing.T) {
	recent := fixedNow.Add(-10 * time.Minute)
	cfg := domain.MonitoringConfig{
		ID: "mon-1", UserID: "user-1", SourceID: "src-news", SiteID: "blog",
		IntervalMinutes: 60, Active: true, LastCheck: &recent,
	}
	f := newRunnerFixture(t, cfg, nil)

	report, err := f.runner.Execute(context.Background(), "mon-1", false)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, domain.RunScheduled, report.State)
	assert.Empty(t, f.origin.requests)

	report, err = f.runner.Execute(context.Background(), "mon-1", true)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, 5, report.Process.Created)
	assert.Empty(t, f.publisher.published)

	cfg.Active = false
	require.NoError(t, f.store.UpdateMonitoring(context.Background(), cfg))
	report, err = f.runner.Execute(context.Background(), "mon-1", true)
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.Equal(t, domain.RunPaused, report.State)
}

func TestExecuteDueContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	cfg := domain.MonitoringConfig{
		ID: "mon-1", UserID: "user-1", SourceID: "src-news", SiteID: "blog",
		IntervalMinutes: 30, Active: true,
	}
	f := newRunnerFixture(t, cfg, nil)
	_, err := f.store.CreateMonitoring(ctx, domain.MonitoringConfig{
		ID: "mon-0", UserID: "user-1", SourceID: "src-missing", SiteID: "blog",
		IntervalMinutes: 30, Active: true,
	})
	require.NoError(t, err)
	_, err = f.store.CreateMonitoring(ctx, domain.MonitoringConfig{
		ID: "mon-2", UserID: "user-1", SourceID: "src-news", SiteID: "blog",
		IntervalMinutes: 30, Active: false,
	})
	require.NoError(t, err)

	reports, err := f.runner.ExecuteDue(ctx)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, "mon-0", reports[0].ConfigID)
	require.ErrorIs(t, reports[0].Err, domain.ErrRecordNotFound)
	assert.Equal(t, "mon-1", reports[1].ConfigID)
	assert.NoError(t, reports[1].Err)
	assert.Equal(t, 5, reports[1].Process.Created)
}
