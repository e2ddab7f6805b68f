package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"NewsAutopilot/internal/domain"
)

func TestValidateReportsOrphansAndHealsCacheOnly(t *testing.T) {
	cfg := domain.MonitoringConfig{ID: "mon-1", SourceID: "src-deleted", SiteID: "site-1"}
	snap := Snapshot{
		Sources:    []domain.Source{{ID: "src-live", TargetSiteID: "site-gone"}},
		Monitoring: []domain.MonitoringConfig{cfg},
		Sites:      []domain.Site{{ID: "site-1"}},
	}
	groups := domain.ArticleGroups{
		"src-live":    {{ID: "a1"}},
		"src-deleted": {{ID: "a2"}},
	}

	report := Validate(snap, groups)

	require.Len(t, report.Issues, 2)
	for _, issue := range report.Issues {
		assert.Equal(t, domain.KindIntegrityOrphan, issue.Kind)
	}
	assert.Equal(t, "source", report.Issues[0].Entity)
	assert.Equal(t, "site-gone", report.Issues[0].Reference)
	assert.Equal(t, "monitoring", report.Issues[1].Entity)
	assert.Equal(t, "src-deleted", report.Issues[1].Reference)

	assert.Equal(t, []string{"src-deleted"}, report.HealedGroups)
	assert.Contains(t, groups, "src-live")
	assert.NotContains(t, groups, "src-deleted")

	assert.Equal(t, cfg, snap.Monitoring[0])
}

func TestValidateStoreUsesRegistriesAndCache(t *testing.T) {
	ctx := context.Background()
	store := newMemoryStore()
	_, err := store.CreateSource(ctx, domain.Source{ID: "src-1", UserID: "user-1"})
	require.NoError(t, err)
	_, err = store.CreateMonitoring(ctx, domain.MonitoringConfig{ID: "mon-1", UserID: "user-2", SourceID: "src-removed", SiteID: "site-removed"})
	require.NoError(t, err)

	cache := NewArticleCache()
	cache.Put("src-1", []domain.Article{{ID: "a1"}})
	cache.Put("src-removed", []domain.Article{{ID: "a2"}})

	validator := NewIntegrityValidator(store, store, store, cache, nil, nil)
	report, err := validator.ValidateStore(ctx)
	require.NoError(t, err)

	assert.Len(t, report.Issues, 2)
	assert.Equal(t, []string{"src-removed"}, report.HealedGroups)
	assert.Equal(t, []string{"src-1"}, cache.Keys())

	stored, err := store.GetMonitoring(ctx, "mon-1")
	require.NoError(t, err)
	assert.Equal(t, "src-removed", stored.SourceID)
}
