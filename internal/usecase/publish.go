package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

const defaultPublishTimeout = 45 * time.Second

// PublishOptions tune a single publish call.
type PublishOptions struct {
	// SiteID is the explicit destination; it wins over every other rule.
	SiteID   string
	Metadata domain.PublishDefaults
}

// PublishResult reports where an article went.
type PublishResult struct {
	Article      domain.Article
	SiteID       string
	PublishedURL string
	RemotePostID string
	// Fallback is set when the only site of the user was picked implicitly.
	Fallback bool
}

// PublishDeps wires the publish orchestrator.
type PublishDeps struct {
	Sources    ports.SourceRegistry
	Sites      ports.SiteRegistry
	Monitoring ports.MonitoringRegistry
	Articles   ports.ArticleStore
	Publisher  ports.Publisher
	Timeout    time.Duration
	Observer   ports.Observer
	Logger     *slog.Logger
	Now        func() time.Time
}

// PublishOrchestrator resolves an article's destination and hands it to the
// publisher collaborator.
type PublishOrchestrator struct {
	sources    ports.SourceRegistry
	sites      ports.SiteRegistry
	monitoring ports.MonitoringRegistry
	articles   ports.ArticleStore
	publisher  ports.Publisher
	timeout    time.Duration
	observer   ports.Observer
	logger     *slog.Logger
	now        func() time.Time
}

// NewPublishOrchestrator constructs the orchestrator.
func NewPublishOrchestrator(deps PublishDeps) *PublishOrchestrator {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = defaultPublishTimeout
	}
	return &PublishOrchestrator{
		sources:    deps.Sources,
		sites:      deps.Sites,
		monitoring: deps.Monitoring,
		articles:   deps.Articles,
		publisher:  deps.Publisher,
		timeout:    timeout,
		observer:   observerOrNop(deps.Observer),
		logger:     loggerOrDiscard(deps.Logger),
		now:        clockOrNow(deps.Now),
	}
}

// publishScope is the article plus the records its destination can come from.
type publishScope struct {
	article    domain.Article
	monitoring *domain.MonitoringConfig
	source     *domain.Source
}

// siteCandidate is the answer of one resolution rule.
type siteCandidate struct {
	siteID   string
	rule     string
	fallback bool
	strict   bool
}

// siteRule yields a candidate or an empty siteID when it does not apply.
type siteRule func(ctx context.Context, scope publishScope) (siteCandidate, error)

// Publish sends the article to its resolved destination. On failure the
// article status is left untouched.
func (o *PublishOrchestrator) Publish(ctx context.Context, article domain.Article, opts PublishOptions) (PublishResult, error) {
	scope := o.loadScope(ctx, article)

	site, candidate, err := o.resolveSite(ctx, scope, opts.SiteID)
	if err != nil {
		o.observer.PublishFinished(err)
		return PublishResult{Article: article}, err
	}
	if candidate.fallback {
		o.logger.Warn("publishing to the user's only site as fallback",
			"article_id", article.ID,
			"site_id", site.ID)
	}
	if err := requireComplete(site); err != nil {
		o.observer.PublishFinished(err)
		return PublishResult{Article: article}, err
	}
	if o.publisher == nil {
		return PublishResult{Article: article}, fmt.Errorf("publisher is not configured")
	}

	req := ports.PublishRequest{
		ArticleID: article.ID,
		Site:      site,
		Title:     article.Title,
		Content:   article.Body(),
		Metadata:  o.metadata(scope, opts.Metadata),
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	resp, err := o.publisher.Publish(callCtx, req)
	cancel()
	if err != nil {
		err = classifyCollaboratorError(callCtx, "publish article "+article.ID, err)
		o.observer.PublishFinished(err)
		o.logger.Error("publish failed", "article_id", article.ID, "site_id", site.ID, "kind", domain.KindOf(err), "error", err)
		return PublishResult{Article: article, SiteID: site.ID, Fallback: candidate.fallback}, err
	}

	now := o.now()
	published := article
	published.Status = domain.StatusPublished
	published.PublishedURL = resp.PostURL
	published.RemotePostID = resp.PostID
	published.PublishedAt = &now
	published.UpdatedAt = now
	if err := o.articles.UpdateArticle(ctx, published); err != nil {
		o.observer.PublishFinished(err)
		return PublishResult{Article: article, SiteID: site.ID}, fmt.Errorf("store published article %s: %w", article.ID, err)
	}

	o.observer.PublishFinished(nil)
	o.logger.Info("article published", "article_id", article.ID, "site_id", site.ID, "rule", candidate.rule, "url", resp.PostURL)
	return PublishResult{
		Article:      published,
		SiteID:       site.ID,
		PublishedURL: resp.PostURL,
		RemotePostID: resp.PostID,
		Fallback:     candidate.fallback,
	}, nil
}

// SchedulePublish asks the destination to publish at whenUTC, which must be
// strictly in the future.
func (o *PublishOrchestrator) SchedulePublish(ctx context.Context, article domain.Article, whenUTC time.Time, siteID string) (domain.Article, error) {
	now := o.now()
	if !whenUTC.After(now) {
		return article, domain.NewError(domain.KindInvalidScheduleTime,
			fmt.Sprintf("%s is not after %s", whenUTC.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339)), nil)
	}

	scope := o.loadScope(ctx, article)
	site, _, err := o.resolveSite(ctx, scope, siteID)
	if err != nil {
		return article, err
	}
	if err := requireComplete(site); err != nil {
		return article, err
	}
	if o.publisher == nil {
		return article, fmt.Errorf("publisher is not configured")
	}

	req := ports.ScheduleRequest{
		PublishRequest: ports.PublishRequest{
			ArticleID: article.ID,
			Site:      site,
			Title:     article.Title,
			Content:   article.Body(),
			Metadata:  o.metadata(scope, domain.PublishDefaults{}),
		},
		When: whenUTC.UTC(),
	}

	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	err = o.publisher.Schedule(callCtx, req)
	cancel()
	if err != nil {
		return article, classifyCollaboratorError(callCtx, "schedule article "+article.ID, err)
	}

	when := whenUTC.UTC()
	scheduled := article
	scheduled.Status = domain.StatusScheduled
	scheduled.ScheduledFor = &when
	scheduled.UpdatedAt = now
	if err := o.articles.UpdateArticle(ctx, scheduled); err != nil {
		return article, fmt.Errorf("store scheduled article %s: %w", article.ID, err)
	}

	o.logger.Info("article scheduled", "article_id", article.ID, "site_id", site.ID, "when", when)
	return scheduled, nil
}

// resolveSite walks the resolution rules in order: explicit site, the
// monitoring config's site, the source's target site, then the user's only
// site. The first rule that yields an existing site wins.
func (o *PublishOrchestrator) resolveSite(ctx context.Context, scope publishScope, explicit string) (domain.Site, siteCandidate, error) {
	rules := []siteRule{
		explicitRule(explicit),
		monitoringRule,
		sourceRule,
		o.singleSiteRule,
	}

	for _, rule := range rules {
		candidate, err := rule(ctx, scope)
		if err != nil {
			return domain.Site{}, candidate, err
		}
		if candidate.siteID == "" {
			continue
		}
		site, err := o.sites.GetSite(ctx, candidate.siteID)
		if err == nil {
			return site, candidate, nil
		}
		if !errors.Is(err, domain.ErrRecordNotFound) {
			return domain.Site{}, candidate, fmt.Errorf("load site %s: %w", candidate.siteID, err)
		}
		if candidate.strict {
			return domain.Site{}, candidate, domain.NewError(domain.KindDestinationUnresolved,
				fmt.Sprintf("site %s does not exist", candidate.siteID), err)
		}
		o.logger.Warn("destination site missing, trying next rule",
			"article_id", scope.article.ID,
			"rule", candidate.rule,
			"site_id", candidate.siteID)
	}

	return domain.Site{}, siteCandidate{}, domain.NewError(domain.KindDestinationUnresolved,
		fmt.Sprintf("no destination site for article %s", scope.article.ID), nil)
}

func explicitRule(siteID string) siteRule {
	return func(context.Context, publishScope) (siteCandidate, error) {
		return siteCandidate{siteID: siteID, rule: "explicit", strict: true}, nil
	}
}

func monitoringRule(_ context.Context, scope publishScope) (siteCandidate, error) {
	if scope.monitoring == nil {
		return siteCandidate{}, nil
	}
	return siteCandidate{siteID: scope.monitoring.SiteID, rule: "monitoring"}, nil
}

func sourceRule(_ context.Context, scope publishScope) (siteCandidate, error) {
	if scope.source == nil {
		return siteCandidate{}, nil
	}
	return siteCandidate{siteID: scope.source.TargetSiteID, rule: "source"}, nil
}

func (o *PublishOrchestrator) singleSiteRule(ctx context.Context, scope publishScope) (siteCandidate, error) {
	userID := scope.article.UserID
	if userID == "" && scope.source != nil {
		userID = scope.source.UserID
	}
	if userID == "" {
		return siteCandidate{}, nil
	}
	sites, err := o.sites.ListSites(ctx, userID)
	if err != nil {
		return siteCandidate{}, fmt.Errorf("list sites for %s: %w", userID, err)
	}
	if len(sites) != 1 {
		return siteCandidate{}, nil
	}
	return siteCandidate{siteID: sites[0].ID, rule: "single-site", fallback: true}, nil
}

// loadScope fetches the monitoring config and source of the article; missing
// records simply disable the corresponding rule.
func (o *PublishOrchestrator) loadScope(ctx context.Context, article domain.Article) publishScope {
	scope := publishScope{article: article}
	if article.MonitoringConfigID != "" && o.monitoring != nil {
		if cfg, err := o.monitoring.GetMonitoring(ctx, article.MonitoringConfigID); err == nil {
			scope.monitoring = &cfg
		} else {
			o.logger.Debug("monitoring config unavailable", "article_id", article.ID, "error", err)
		}
	}

	sourceID := article.SourceID
	if sourceID == "" && scope.monitoring != nil {
		sourceID = scope.monitoring.SourceID
	}
	if sourceID != "" && o.sources != nil {
		if src, err := o.sources.GetSource(ctx, sourceID); err == nil {
			scope.source = &src
		} else {
			o.logger.Debug("source unavailable", "article_id", article.ID, "error", err)
		}
	}
	return scope
}

func (o *PublishOrchestrator) metadata(scope publishScope, explicit domain.PublishDefaults) domain.PublishDefaults {
	meta := explicit
	if scope.monitoring != nil {
		meta = meta.Merge(scope.monitoring.Overrides)
	}
	if scope.source != nil {
		meta = meta.Merge(scope.source.Defaults)
	}
	return meta
}

func requireComplete(site domain.Site) error {
	if site.Complete() {
		return nil
	}
	return domain.NewError(domain.KindIncompleteDestinationConfig,
		fmt.Sprintf("site %s is missing %s", site.ID, strings.Join(site.MissingCredentials(), ", ")), nil)
}
