package ports

import (
	"context"
	"time"

	"NewsAutopilot/internal/domain"
)

// FetchRequest bounds a single origin read.
type FetchRequest struct {
	Limit  int
	Offset int
	// Order is "desc" (newest first) or "asc".
	Order  string
	SortBy string
}

// Origin pulls candidate articles from a source's upstream.
type Origin interface {
	Fetch(ctx context.Context, source domain.Source, req FetchRequest) ([]domain.Candidate, error)
}

// TypeDetector resolves the kind of an unknown origin.
type TypeDetector interface {
	Detect(ctx context.Context, rawURL string) (domain.SourceType, error)
}

// SourceRegistry is CRUD over content sources.
type SourceRegistry interface {
	CreateSource(ctx context.Context, source domain.Source) (domain.Source, error)
	GetSource(ctx context.Context, id string) (domain.Source, error)
	ListSources(ctx context.Context, userID string) ([]domain.Source, error)
	UpdateSource(ctx context.Context, source domain.Source) error
	DeleteSource(ctx context.Context, id string) error
}

// SiteRegistry is CRUD over destination sites.
type SiteRegistry interface {
	CreateSite(ctx context.Context, site domain.Site) (domain.Site, error)
	GetSite(ctx context.Context, id string) (domain.Site, error)
	ListSites(ctx context.Context, userID string) ([]domain.Site, error)
	DeleteSite(ctx context.Context, id string) error
}

// MonitoringRegistry is CRUD over monitoring configurations.
type MonitoringRegistry interface {
	CreateMonitoring(ctx context.Context, cfg domain.MonitoringConfig) (domain.MonitoringConfig, error)
	GetMonitoring(ctx context.Context, id string) (domain.MonitoringConfig, error)
	ListMonitoring(ctx context.Context, userID string) ([]domain.MonitoringConfig, error)
	UpdateMonitoring(ctx context.Context, cfg domain.MonitoringConfig) error
	DeleteMonitoring(ctx context.Context, id string) error
}

// ArticleStore is CRUD over fetched and derived articles.
type ArticleStore interface {
	CreateArticle(ctx context.Context, article domain.Article) (domain.Article, error)
	GetArticle(ctx context.Context, id string) (domain.Article, error)
	FindByIdentity(ctx context.Context, sourceID, identity string) (domain.Article, bool, error)
	ListBySource(ctx context.Context, sourceID string) ([]domain.Article, error)
	UpdateArticle(ctx context.Context, article domain.Article) error
	SetStatus(ctx context.Context, id string, status domain.ArticleStatus) error
}

// CounterStore persists per-source execution counts.
type CounterStore interface {
	Count(ctx context.Context, sourceID string) (int, error)
	Increment(ctx context.Context, sourceID string) (int, error)
	Reset(ctx context.Context, sourceID string) error
}

// CreditLedger tracks consumable quotas. Implementations must make Consume
// and Restore atomic from the caller's point of view.
type CreditLedger interface {
	Check(ctx context.Context, userID string, resource domain.ResourceType, qty int) (domain.CreditCheck, error)
	Consume(ctx context.Context, userID string, resource domain.ResourceType, qty int) (int, error)
	Restore(ctx context.Context, userID string, resource domain.ResourceType, qty int) error
}

// RewriteOptions steer the AI rewrite.
type RewriteOptions struct {
	UserID   string
	Tone     string
	Style    string
	Language string
	Length   string
}

// Rewriter is the AI rewrite collaborator. It owns credit consumption for
// successful rewrites.
type Rewriter interface {
	Rewrite(ctx context.Context, article domain.Article, opts RewriteOptions) (domain.Article, error)
}

// PublishRequest is sent to the destination publisher.
type PublishRequest struct {
	ArticleID string
	Site      domain.Site
	Title     string
	Content   string
	Metadata  domain.PublishDefaults
}

// PublishResponse is the remote outcome of a publish call.
type PublishResponse struct {
	PostURL string
	PostID  string
}

// ScheduleRequest asks the destination to publish later.
type ScheduleRequest struct {
	PublishRequest
	When time.Time
}

// Publisher is the destination collaborator. Failures must carry a
// domain.Error kind (unauthorized, forbidden, not-found, server-error,
// timeout).
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (PublishResponse, error)
	Schedule(ctx context.Context, req ScheduleRequest) error
}

// Notifier streams run summaries to an operator channel.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// Scheduler controls when the external trigger fires.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}

// Observer receives pipeline outcomes for metrics.
type Observer interface {
	SourceProcessed(created, existing int, status domain.ValidationStatus)
	RewriteFinished(err error)
	CreditRestored(resource domain.ResourceType)
	PublishFinished(err error)
	IntegrityChecked(issues, healed int)
}
