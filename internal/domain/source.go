package domain

import (
	"strings"
	"time"
)

// SourceType is the detected kind of a content origin.
type SourceType string

const (
	SourceFeed    SourceType = "feed"
	SourceWebsite SourceType = "website"
	SourceUnknown SourceType = "unknown"
)

// ValidationStatus describes the health of a source after processing.
type ValidationStatus string

const (
	ValidationValid   ValidationStatus = "valid"
	ValidationWarning ValidationStatus = "warning"
	ValidationInvalid ValidationStatus = "invalid"
	ValidationPending ValidationStatus = "pending"
)

// Validation is the outcome reported alongside a processing run.
type Validation struct {
	Status      ValidationStatus
	Message     string
	Suggestions []string
}

// PublishDefaults holds the author/category/tag metadata applied on publish.
type PublishDefaults struct {
	AuthorID   string
	Categories []string
	Tags       []string
}

// Merge fills empty fields of d from fallback.
func (d PublishDefaults) Merge(fallback PublishDefaults) PublishDefaults {
	if d.AuthorID == "" {
		d.AuthorID = fallback.AuthorID
	}
	if len(d.Categories) == 0 {
		d.Categories = fallback.Categories
	}
	if len(d.Tags) == 0 {
		d.Tags = fallback.Tags
	}
	return d
}

// Source is a configured external content origin.
type Source struct {
	ID                string
	UserID            string
	Name              string
	URL               string
	Type              SourceType
	TargetSiteID      string
	Defaults          PublishDefaults
	Active            bool
	ValidationStatus  ValidationStatus
	ValidationMessage string
	EmptyRuns         int
	LastCheck         *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Site is a destination the pipeline publishes to.
type Site struct {
	ID       string
	UserID   string
	Name     string
	URL      string
	Username string
	Secret   string
}

// Complete reports whether all destination credentials are present.
func (s Site) Complete() bool {
	return strings.TrimSpace(s.URL) != "" &&
		strings.TrimSpace(s.Username) != "" &&
		strings.TrimSpace(s.Secret) != ""
}

// MissingCredentials lists the names of absent credential fields.
func (s Site) MissingCredentials() []string {
	var missing []string
	if strings.TrimSpace(s.URL) == "" {
		missing = append(missing, "url")
	}
	if strings.TrimSpace(s.Username) == "" {
		missing = append(missing, "username")
	}
	if strings.TrimSpace(s.Secret) == "" {
		missing = append(missing, "secret")
	}
	return missing
}
