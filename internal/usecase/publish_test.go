package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAutopilot/internal/domain"
)

type publishFixture struct {
	store        *memoryStore
	publisher    *fakePublisher
	orchestrator *PublishOrchestrator
}

func newPublishFixture(t *testing.T) publishFixture {
	t.Helper()
	store := newMemoryStore()
	publisher := &fakePublisher{}
	return publishFixture{
		store:     store,
		publisher: publisher,
		orchestrator: NewPublishOrchestrator(PublishDeps{
			Sources:    store,
			Sites:      store,
			Monitoring: store,
			Articles:   store,
			Publisher:  publisher,
			Now:        fixedClock,
		}),
	}
}

func (f publishFixture) article(t *testing.T, a domain.Article) domain.Article {
	t.Helper()
	if a.UserID == "" {
		a.UserID = "user-1"
	}
	if a.Title == "" {
		a.Title = "Headline"
	}
	a.Content = "body"
	a.Status = domain.StatusProcessed
	created, err := f.store.CreateArticle(context.Background(), a)
	require.NoError(t, err)
	return created
}

func TestPublishFallsBackToSingleSite(t *testing.T) {
	ctx := context.Background()

	t.Run("exactly one site", func(t *testing.T) {
		f := newPublishFixture(t)
		_, err := f.store.CreateSite(ctx, completeSite("only", "user-1"))
		require.NoError(t, err)
		article := f.article(t, domain.Article{})

		result, err := f.orchestrator.Publish(ctx, article, PublishOptions{})
		require.NoError(t, err)
		assert.True(t, result.Fallback)
		assert.Equal(t, "only", result.SiteID)

		stored, err := f.store.GetArticle(ctx, article.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPublished, stored.Status)
		assert.Equal(t, result.PublishedURL, stored.PublishedURL)
		require.NotNil(t, stored.PublishedAt)
	})

	t.Run("no sites", func(t *testing.T) {
		f := newPublishFixture(t)
		article := f.article(t, domain.Article{})

		_, err := f.orchestrator.Publish(ctx, article, PublishOptions{})
		require.ErrorIs(t, err, domain.ErrDestinationUnresolved)
		assert.Empty(t, f.publisher.published)
	})

	t.Run("two sites", func(t *testing.T) {
		f := newPublishFixture(t)
		for _, id := range []string{"a", "b"} {
			_, err := f.store.CreateSite(ctx, completeSite(id, "user-1"))
			require.NoError(t, err)
		}
		article := f.article(t, domain.Article{})

		_, err := f.orchestrator.Publish(ctx, article, PublishOptions{})
		require.ErrorIs(t, err, domain.ErrDestinationUnresolved)
	})
}

func TestPublishResolutionOrder(t *testing.T) {
	ctx := context.Background()
	f := newPublishFixture(t)
	for _, id := range []string{"explicit", "monitored", "targeted"} {
		_, err := f.store.CreateSite(ctx, completeSite(id, "user-1"))
		require.NoError(t, err)
	}
	_, err := f.store.CreateSource(ctx, domain.Source{ID: "src-1", UserID: "user-1", TargetSiteID: "targeted",
		Defaults: domain.PublishDefaults{AuthorID: "7", Tags: []string{"source-tag"}}})
	require.NoError(t, err)
	_, err = f.store.CreateMonitoring(ctx, domain.MonitoringConfig{ID: "mon-1", UserID: "user-1", SourceID: "src-1", SiteID: "monitored",
		Overrides: domain.PublishDefaults{Categories: []string{"news"}}})
	require.NoError(t, err)

	article := f.article(t, domain.Article{SourceID: "src-1", MonitoringConfigID: "mon-1"})

	result, err := f.orchestrator.Publish(ctx, article, PublishOptions{SiteID: "explicit"})
	require.NoError(t, err)
	assert.Equal(t, "explicit", result.SiteID)

	result, err = f.orchestrator.Publish(ctx, article, PublishOptions{})
	require.NoError(t, err)
	assert.Equal(t, "monitored", result.SiteID)
	assert.False(t, result.Fallback)

	last := f.publisher.published[len(f.publisher.published)-1]
	assert.Equal(t, "7", last.Metadata.AuthorID)
	assert.Equal(t, []string{"news"}, last.Metadata.Categories)
	assert.Equal(t, []string{"source-tag"}, last.Metadata.Tags)

	require.NoError(t, f.store.DeleteSite(ctx, "monitored"))
	result, err = f.orchestrator.Publish(ctx, article, PublishOptions{})
	require.NoError(t, err)
	assert.Equal(t, "targeted", result.SiteID)

	_, err = f.orchestrator.Publish(ctx, article, PublishOptions{SiteID: "gone"})
	require.ErrorIs(t, err, domain.ErrDestinationUnresolved)
}

func TestPublishRejectsIncompleteSiteBeforeIO(t *testing.T) {
	ctx := context.Background()
	f := newPublishFixture(t)
	site := completeSite("partial", "user-1")
	site.Secret = ""
	_, err := f.store.CreateSite(ctx, site)
	require.NoError(t, err)
	article := f.article(t, domain.Article{})

	_, err = f.orchestrator.Publish(ctx, article, PublishOptions{SiteID: "partial"})
	require.ErrorIs(t, err, domain.ErrIncompleteDestinationConfig)
	assert.Contains(t, err.Error(), "secret")
	assert.Empty(t, f.publisher.published)
}

func TestPublishFailureLeavesArticleUntouched(t *testing.T) {
	ctx := context.Background()
	f := newPublishFixture(t)
	_, err := f.store.CreateSite(ctx, completeSite("only", "user-1"))
	require.NoError(t, err)
	article := f.article(t, domain.Article{})
	f.publisher.err = domain.NewError(domain.KindUnauthorized, "publish: status 401", nil)

	_, err = f.orchestrator.Publish(ctx, article, PublishOptions{})
	require.ErrorIs(t, err, domain.ErrUnauthorized)

	stored, err := f.store.GetArticle(ctx, article.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, stored.Status)
	assert.Empty(t, stored.PublishedURL)
}

func TestSchedulePublish(t *testing.T) {
	ctx := context.Background()
	f := newPublishFixture(t)
	_, err := f.store.CreateSite(ctx, completeSite("only", "user-1"))
	require.NoError(t, err)
	article := f.article(t, domain.Article{})

	_, err = f.orchestrator.SchedulePublish(ctx, article, fixedNow, "")
	require.ErrorIs(t, err, domain.ErrInvalidScheduleTime)
	_, err = f.orchestrator.SchedulePublish(ctx, article, fixedNow.Add(-time.Minute), "")
	require.ErrorIs(t, err, domain.ErrInvalidScheduleTime)
	assert.Empty(t, f.publisher.scheduled)

	when := fixedNow.Add(2 * time.Hour)
	scheduled, err := f.orchestrator.SchedulePublish(ctx, article, when, "")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusScheduled, scheduled.Status)
	require.NotNil(t, scheduled.ScheduledFor)
	assert.Equal(t, when, *scheduled.ScheduledFor)
	require.Len(t, f.publisher.scheduled, 1)
	assert.Equal(t, when, f.publisher.scheduled[0].When)
}
