package domain

import "time"

// ArticleStatus enumerates pipeline milestones of a fetched article.
type ArticleStatus string

const (
	StatusPending   ArticleStatus = "pending"
	StatusProcessed ArticleStatus = "processed"
	StatusPublished ArticleStatus = "published"
	StatusScheduled ArticleStatus = "scheduled"
	StatusIgnored   ArticleStatus = "ignored"
	StatusDeleted   ArticleStatus = "deleted"
	StatusFailed    ArticleStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s ArticleStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessed, StatusPublished, StatusScheduled,
		StatusIgnored, StatusDeleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether the article left the automation flow.
func (s ArticleStatus) Terminal() bool {
	return s == StatusIgnored || s == StatusDeleted
}

// Candidate is an item returned by an origin before it is stored.
type Candidate struct {
	GUID        string
	Title       string
	URL         string
	Content     string
	Author      string
	PublishedAt time.Time
}

// Identity is the dedup key of a candidate inside its source.
func (c Candidate) Identity() string {
	if c.GUID != "" {
		return c.GUID
	}
	return c.URL
}

// Article is a fetched or derived content record.
type Article struct {
	ID                 string
	UserID             string
	SourceID           string
	MonitoringConfigID string
	GUID               string
	Title              string
	URL                string
	Content            string
	RewrittenContent   string
	Status             ArticleStatus
	OriginPublishedAt  time.Time
	PublishedURL       string
	RemotePostID       string
	PublishedAt        *time.Time
	ScheduledFor       *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Identity mirrors Candidate.Identity for stored records.
func (a Article) Identity() string {
	if a.GUID != "" {
		return a.GUID
	}
	return a.URL
}

// Rewritten reports whether the AI rewrite has produced content.
func (a Article) Rewritten() bool {
	return a.RewrittenContent != ""
}

// Body returns the content that should be published.
func (a Article) Body() string {
	if a.Rewritten() {
		return a.RewrittenContent
	}
	return a.Content
}

// ArticleGroups is a cached projection of articles keyed by source id.
type ArticleGroups map[string][]Article
