package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

// ArticleCache is the in-process projection of articles grouped by source.
type ArticleCache struct {
	mu     sync.Mutex
	groups domain.ArticleGroups
}

// NewArticleCache builds an empty cache.
func NewArticleCache() *ArticleCache {
	return &ArticleCache{groups: domain.ArticleGroups{}}
}

// Put replaces the group of a source.
func (c *ArticleCache) Put(sourceID string, articles []domain.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.groups[sourceID] = append([]domain.Article(nil), articles...)
}

// Get returns a copy of the group of a source.
func (c *ArticleCache) Get(sourceID string) ([]domain.Article, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	group, ok := c.groups[sourceID]
	return append([]domain.Article(nil), group...), ok
}

// Keys lists cached source ids in sorted order.
func (c *ArticleCache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.groups))
	for k := range c.groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *ArticleCache) reconcile(fn func(domain.ArticleGroups)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fn(c.groups)
}

// Issue is one integrity finding.
type Issue struct {
	Kind      domain.Kind
	Entity    string
	ID        string
	Reference string
	Message   string
}

// Report is the result of an integrity pass.
type Report struct {
	Issues       []Issue
	HealedGroups []string
}

// Snapshot holds the canonical records an integrity pass checks.
type Snapshot struct {
	Sources    []domain.Source
	Monitoring []domain.MonitoringConfig
	Sites      []domain.Site
}

// Validate reports orphaned sources and monitoring configs and deletes
// cached article groups whose source no longer exists. Canonical records are
// never modified.
func Validate(snap Snapshot, groups domain.ArticleGroups) Report {
	sites := make(map[string]struct{}, len(snap.Sites))
	for _, s := range snap.Sites {
		sites[s.ID] = struct{}{}
	}
	sources := make(map[string]struct{}, len(snap.Sources))
	for _, s := range snap.Sources {
		sources[s.ID] = struct{}{}
	}

	var report Report
	for _, src := range snap.Sources {
		if src.TargetSiteID == "" {
			continue
		}
		if _, ok := sites[src.TargetSiteID]; !ok {
			report.Issues = append(report.Issues, Issue{
				Kind:      domain.KindIntegrityOrphan,
				Entity:    "source",
				ID:        src.ID,
				Reference: src.TargetSiteID,
				Message:   fmt.Sprintf("source %q targets missing site %s", src.Name, src.TargetSiteID),
			})
		}
	}

	for _, cfg := range snap.Monitoring {
		if _, ok := sources[cfg.SourceID]; !ok {
			report.Issues = append(report.Issues, Issue{
				Kind:      domain.KindIntegrityOrphan,
				Entity:    "monitoring",
				ID:        cfg.ID,
				Reference: cfg.SourceID,
				Message:   fmt.Sprintf("monitoring %s references missing source %s", cfg.ID, cfg.SourceID),
			})
		}
		if _, ok := sites[cfg.SiteID]; !ok {
			report.Issues = append(report.Issues, Issue{
				Kind:      domain.KindIntegrityOrphan,
				Entity:    "monitoring",
				ID:        cfg.ID,
				Reference: cfg.SiteID,
				Message:   fmt.Sprintf("monitoring %s references missing site %s", cfg.ID, cfg.SiteID),
			})
		}
	}

	for sourceID := range groups {
		if _, ok := sources[sourceID]; ok {
			continue
		}
		delete(groups, sourceID)
		report.HealedGroups = append(report.HealedGroups, sourceID)
	}
	sort.Strings(report.HealedGroups)

	return report
}

// IntegrityValidator runs Validate against the registries and the article
// cache.
type IntegrityValidator struct {
	sources    ports.SourceRegistry
	monitoring ports.MonitoringRegistry
	sites      ports.SiteRegistry
	cache      *ArticleCache
	observer   ports.Observer
	logger     *slog.Logger
}

// NewIntegrityValidator wires the validator.
func NewIntegrityValidator(sources ports.SourceRegistry, monitoring ports.MonitoringRegistry, sites ports.SiteRegistry, cache *ArticleCache, observer ports.Observer, logger *slog.Logger) *IntegrityValidator {
	if cache == nil {
		cache = NewArticleCache()
	}
	return &IntegrityValidator{
		sources:    sources,
		monitoring: monitoring,
		sites:      sites,
		cache:      cache,
		observer:   observerOrNop(observer),
		logger:     loggerOrDiscard(logger),
	}
}

// ValidateStore loads a fresh snapshot of every user's records and
// reconciles the cache against it. The snapshot is global because the cache
// holds groups of all users.
func (v *IntegrityValidator) ValidateStore(ctx context.Context) (Report, error) {
	const allUsers = ""
	sources, err := v.sources.ListSources(ctx, allUsers)
	if err != nil {
		return Report{}, fmt.Errorf("list sources: %w", err)
	}
	monitoring, err := v.monitoring.ListMonitoring(ctx, allUsers)
	if err != nil {
		return Report{}, fmt.Errorf("list monitoring: %w", err)
	}
	sites, err := v.sites.ListSites(ctx, allUsers)
	if err != nil {
		return Report{}, fmt.Errorf("list sites: %w", err)
	}

	snap := Snapshot{Sources: sources, Monitoring: monitoring, Sites: sites}
	var report Report
	v.cache.reconcile(func(groups domain.ArticleGroups) {
		report = Validate(snap, groups)
	})

	for _, issue := range report.Issues {
		v.logger.Warn("integrity issue", "entity", issue.Entity, "id", issue.ID, "reference", issue.Reference, "message", issue.Message)
	}
	if len(report.HealedGroups) > 0 {
		v.logger.Info("healed cached article groups", "sources", report.HealedGroups)
	}
	v.observer.IntegrityChecked(len(report.Issues), len(report.HealedGroups))
	return report, nil
}
