package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"NewsAutopilot/internal/domain"
	"NewsAutopilot/internal/ports"
)

// Repository persists sources, sites, monitoring configs, articles and
// execution counters.
type Repository struct {
	db  *DB
	now func() time.Time
}

var (
	_ ports.SourceRegistry     = (*Repository)(nil)
	_ ports.SiteRegistry       = (*Repository)(nil)
	_ ports.MonitoringRegistry = (*Repository)(nil)
	_ ports.ArticleStore       = (*Repository)(nil)
	_ ports.CounterStore       = (*Repository)(nil)
)

// NewRepository wires a database handle.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

var sourceColumns = []string{
	"id", "user_id", "name", "url", "type", "target_site_id", "author_id", "categories", "tags",
	"active", "validation_status", "validation_message", "empty_runs", "last_check", "created_at", "updated_at",
}

// CreateSource inserts a source, assigning an id when missing.
func (r *Repository) CreateSource(ctx context.Context, s domain.Source) (domain.Source, error) {
	if s.URL == "" {
		return domain.Source{}, domain.NewError(domain.KindValidation, "source url is required", nil)
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Type == "" {
		s.Type = domain.SourceUnknown
	}
	if s.ValidationStatus == "" {
		s.ValidationStatus = domain.ValidationPending
	}
	now := r.now()
	s.CreatedAt, s.UpdatedAt = now, now

	_, err := r.db.exec(ctx, r.db.builder.Insert("sources").Columns(sourceColumns...).Values(
		s.ID, s.UserID, s.Name, s.URL, string(s.Type), s.TargetSiteID, s.Defaults.AuthorID,
		encodeList(s.Defaults.Categories), encodeList(s.Defaults.Tags), s.Active,
		string(s.ValidationStatus), s.ValidationMessage, s.EmptyRuns, nullableTime(s.LastCheck),
		s.CreatedAt, s.UpdatedAt,
	))
	if err != nil {
		return domain.Source{}, fmt.Errorf("insert source: %w", err)
	}
	return s, nil
}

// GetSource loads one source.
func (r *Repository) GetSource(ctx context.Context, id string) (domain.Source, error) {
	row, err := r.db.queryRow(ctx, r.db.builder.Select(sourceColumns...).From("sources").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.Source{}, err
	}
	s, err := scanSource(row)
	if err != nil {
		return domain.Source{}, notFoundOr(err, "source", id)
	}
	return s, nil
}

// ListSources returns the sources of userID, or all when userID is empty.
func (r *Repository) ListSources(ctx context.Context, userID string) ([]domain.Source, error) {
	rows, err := r.db.query(ctx, r.db.builder.Select(sourceColumns...).From("sources").Where(ownedBy(userID)).OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	var out []domain.Source
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return out, nil
}

// UpdateSource overwrites the mutable fields of a source.
func (r *Repository) UpdateSource(ctx context.Context, s domain.Source) error {
	s.UpdatedAt = r.now()
	res, err := r.db.exec(ctx, r.db.builder.Update("sources").SetMap(map[string]any{
		"name":               s.Name,
		"url":                s.URL,
		"type":               string(s.Type),
		"target_site_id":     s.TargetSiteID,
		"author_id":          s.Defaults.AuthorID,
		"categories":         encodeList(s.Defaults.Categories),
		"tags":               encodeList(s.Defaults.Tags),
		"active":             s.Active,
		"validation_status":  string(s.ValidationStatus),
		"validation_message": s.ValidationMessage,
		"empty_runs":         s.EmptyRuns,
		"last_check":         nullableTime(s.LastCheck),
		"updated_at":         s.UpdatedAt,
	}).Where(sq.Eq{"id": s.ID}))
	if err != nil {
		return fmt.Errorf("update source %s: %w", s.ID, err)
	}
	return requireAffected(res, "source", s.ID)
}

// DeleteSource removes a source and its execution counter. Articles and
// monitoring configs are left in place for the integrity pass to report.
func (r *Repository) DeleteSource(ctx context.Context, id string) error {
	res, err := r.db.exec(ctx, r.db.builder.Delete("sources").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete source %s: %w", id, err)
	}
	if err := requireAffected(res, "source", id); err != nil {
		return err
	}
	return r.Reset(ctx, id)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (domain.Source, error) {
	var (
		s                        domain.Source
		kind, status, cats, tags string
		lastCheck                sql.NullTime
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Name, &s.URL, &kind, &s.TargetSiteID, &s.Defaults.AuthorID,
		&cats, &tags, &s.Active, &status, &s.ValidationMessage, &s.EmptyRuns, &lastCheck,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return domain.Source{}, err
	}
	s.Type = domain.SourceType(kind)
	s.ValidationStatus = domain.ValidationStatus(status)
	s.Defaults.Categories = decodeList(cats)
	s.Defaults.Tags = decodeList(tags)
	s.LastCheck = timePtr(lastCheck)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return s, nil
}

var siteColumns = []string{"id", "user_id", "name", "url", "username", "secret", "created_at"}

// CreateSite inserts a destination site.
func (r *Repository) CreateSite(ctx context.Context, site domain.Site) (domain.Site, error) {
	if site.ID == "" {
		site.ID = uuid.NewString()
	}
	_, err := r.db.exec(ctx, r.db.builder.Insert("sites").Columns(siteColumns...).Values(
		site.ID, site.UserID, site.Name, site.URL, site.Username, site.Secret, r.now(),
	))
	if err != nil {
		return domain.Site{}, fmt.Errorf("insert site: %w", err)
	}
	return site, nil
}

// GetSite loads one site.
func (r *Repository) GetSite(ctx context.Context, id string) (domain.Site, error) {
	row, err := r.db.queryRow(ctx, r.db.builder.Select(siteColumns...).From("sites").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.Site{}, err
	}
	site, err := scanSite(row)
	if err != nil {
		return domain.Site{}, notFoundOr(err, "site", id)
	}
	return site, nil
}

// ListSites returns the sites of userID, or all when userID is empty.
func (r *Repository) ListSites(ctx context.Context, userID string) ([]domain.Site, error) {
	rows, err := r.db.query(ctx, r.db.builder.Select(siteColumns...).From("sites").Where(ownedBy(userID)).OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return out, nil
}

// DeleteSite removes a site.
func (r *Repository) DeleteSite(ctx context.Context, id string) error {
	res, err := r.db.exec(ctx, r.db.builder.Delete("sites").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete site %s: %w", id, err)
	}
	return requireAffected(res, "site", id)
}

func scanSite(row rowScanner) (domain.Site, error) {
	var (
		site    domain.Site
		created time.Time
	)
	if err := row.Scan(&site.ID, &site.UserID, &site.Name, &site.URL, &site.Username, &site.Secret, &created); err != nil {
		return domain.Site{}, err
	}
	return site, nil
}

var monitoringColumns = []string{
	"id", "user_id", "source_id", "site_id", "interval_minutes", "active", "rewrite_enabled",
	"auto_publish", "article_limit", "last_check", "author_id", "categories", "tags",
	"created_at", "updated_at",
}

// CreateMonitoring inserts a monitoring config.
func (r *Repository) CreateMonitoring(ctx context.Context, cfg domain.MonitoringConfig) (domain.MonitoringConfig, error) {
	if cfg.SourceID == "" {
		return domain.MonitoringConfig{}, domain.NewError(domain.KindValidation, "monitoring source is required", nil)
	}
	if cfg.IntervalMinutes <= 0 {
		return domain.MonitoringConfig{}, domain.NewError(domain.KindValidation, "interval must be positive", nil)
	}
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	now := r.now()
	cfg.CreatedAt, cfg.UpdatedAt = now, now

	_, err := r.db.exec(ctx, r.db.builder.Insert("monitoring_configs").Columns(monitoringColumns...).Values(
		cfg.ID, cfg.UserID, cfg.SourceID, cfg.SiteID, cfg.IntervalMinutes, cfg.Active, cfg.RewriteEnabled,
		cfg.AutoPublish, cfg.ArticleLimit, nullableTime(cfg.LastCheck), cfg.Overrides.AuthorID,
		encodeList(cfg.Overrides.Categories), encodeList(cfg.Overrides.Tags), cfg.CreatedAt, cfg.UpdatedAt,
	))
	if err != nil {
		return domain.MonitoringConfig{}, fmt.Errorf("insert monitoring: %w", err)
	}
	return cfg, nil
}

// GetMonitoring loads one monitoring config.
func (r *Repository) GetMonitoring(ctx context.Context, id string) (domain.MonitoringConfig, error) {
	row, err := r.db.queryRow(ctx, r.db.builder.Select(monitoringColumns...).From("monitoring_configs").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.MonitoringConfig{}, err
	}
	cfg, err := scanMonitoring(row)
	if err != nil {
		return domain.MonitoringConfig{}, notFoundOr(err, "monitoring", id)
	}
	return cfg, nil
}

// ListMonitoring returns the configs of userID, or all when userID is empty.
func (r *Repository) ListMonitoring(ctx context.Context, userID string) ([]domain.MonitoringConfig, error) {
	rows, err := r.db.query(ctx, r.db.builder.Select(monitoringColumns...).From("monitoring_configs").Where(ownedBy(userID)).OrderBy("created_at", "id"))
	if err != nil {
		return nil, fmt.Errorf("query monitoring: %w", err)
	}
	defer rows.Close()

	var out []domain.MonitoringConfig
	for rows.Next() {
		cfg, err := scanMonitoring(rows)
		if err != nil {
			return nil, fmt.Errorf("scan monitoring: %w", err)
		}
		out = append(out, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate monitoring: %w", err)
	}
	return out, nil
}

// UpdateMonitoring overwrites the mutable fields of a config.
func (r *Repository) UpdateMonitoring(ctx context.Context, cfg domain.MonitoringConfig) error {
	res, err := r.db.exec(ctx, r.db.builder.Update("monitoring_configs").SetMap(map[string]any{
		"source_id":        cfg.SourceID,
		"site_id":          cfg.SiteID,
		"interval_minutes": cfg.IntervalMinutes,
		"active":           cfg.Active,
		"rewrite_enabled":  cfg.RewriteEnabled,
		"auto_publish":     cfg.AutoPublish,
		"article_limit":    cfg.ArticleLimit,
		"last_check":       nullableTime(cfg.LastCheck),
		"author_id":        cfg.Overrides.AuthorID,
		"categories":       encodeList(cfg.Overrides.Categories),
		"tags":             encodeList(cfg.Overrides.Tags),
		"updated_at":       r.now(),
	}).Where(sq.Eq{"id": cfg.ID}))
	if err != nil {
		return fmt.Errorf("update monitoring %s: %w", cfg.ID, err)
	}
	return requireAffected(res, "monitoring", cfg.ID)
}

// DeleteMonitoring removes a config.
func (r *Repository) DeleteMonitoring(ctx context.Context, id string) error {
	res, err := r.db.exec(ctx, r.db.builder.Delete("monitoring_configs").Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("delete monitoring %s: %w", id, err)
	}
	return requireAffected(res, "monitoring", id)
}

func scanMonitoring(row rowScanner) (domain.MonitoringConfig, error) {
	var (
		cfg        domain.MonitoringConfig
		cats, tags string
		lastCheck  sql.NullTime
	)
	err := row.Scan(&cfg.ID, &cfg.UserID, &cfg.SourceID, &cfg.SiteID, &cfg.IntervalMinutes, &cfg.Active,
		&cfg.RewriteEnabled, &cfg.AutoPublish, &cfg.ArticleLimit, &lastCheck, &cfg.Overrides.AuthorID,
		&cats, &tags, &cfg.CreatedAt, &cfg.UpdatedAt)
	if err != nil {
		return domain.MonitoringConfig{}, err
	}
	cfg.LastCheck = timePtr(lastCheck)
	cfg.Overrides.Categories = decodeList(cats)
	cfg.Overrides.Tags = decodeList(tags)
	cfg.CreatedAt = cfg.CreatedAt.UTC()
	cfg.UpdatedAt = cfg.UpdatedAt.UTC()
	return cfg, nil
}
