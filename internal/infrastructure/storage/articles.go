package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"NewsAutopilot/internal/domain"
)

var articleColumns = []string{
	"id", "user_id", "source_id", "monitoring_config_id", "guid", "title", "url", "content",
	"rewritten_content", "status", "origin_published_at", "published_url", "remote_post_id",
	"published_at", "scheduled_for", "created_at", "updated_at",
}

// CreateArticle inserts an article. The guid column always holds the
// article identity so that (source_id, guid) enforces dedup.
func (r *Repository) CreateArticle(ctx context.Context, a domain.Article) (domain.Article, error) {
	if a.SourceID == "" {
		return domain.Article{}, domain.NewError(domain.KindValidation, "article source is required", nil)
	}
	a.GUID = a.Identity()
	if a.GUID == "" {
		return domain.Article{}, domain.NewError(domain.KindValidation, "article needs a guid or url", nil)
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.Status == "" {
		a.Status = domain.StatusPending
	}
	now := r.now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := r.db.exec(ctx, r.db.builder.Insert("articles").Columns(articleColumns...).Values(
		a.ID, a.UserID, a.SourceID, a.MonitoringConfigID, a.GUID, a.Title, a.URL, a.Content,
		a.RewrittenContent, string(a.Status), originTime(a.OriginPublishedAt), a.PublishedURL, a.RemotePostID,
		nullableTime(a.PublishedAt), nullableTime(a.ScheduledFor), a.CreatedAt, a.UpdatedAt,
	))
	if err != nil {
		return domain.Article{}, fmt.Errorf("insert article %s: %w", a.GUID, err)
	}
	return a, nil
}

// GetArticle loads one article.
func (r *Repository) GetArticle(ctx context.Context, id string) (domain.Article, error) {
	row, err := r.db.queryRow(ctx, r.db.builder.Select(articleColumns...).From("articles").Where(sq.Eq{"id": id}))
	if err != nil {
		return domain.Article{}, err
	}
	a, err := scanArticle(row)
	if err != nil {
		return domain.Article{}, notFoundOr(err, "article", id)
	}
	return a, nil
}

// FindByIdentity looks an article up by its origin identity within a source.
func (r *Repository) FindByIdentity(ctx context.Context, sourceID, identity string) (domain.Article, bool, error) {
	row, err := r.db.queryRow(ctx, r.db.builder.Select(articleColumns...).From("articles").
		Where(sq.Eq{"source_id": sourceID, "guid": identity}))
	if err != nil {
		return domain.Article{}, false, err
	}
	a, err := scanArticle(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Article{}, false, nil
	}
	if err != nil {
		return domain.Article{}, false, fmt.Errorf("find article %s/%s: %w", sourceID, identity, err)
	}
	return a, true, nil
}

// ListBySource returns a source's articles, newest origin date first.
func (r *Repository) ListBySource(ctx context.Context, sourceID string) ([]domain.Article, error) {
	rows, err := r.db.query(ctx, r.db.builder.Select(articleColumns...).From("articles").
		Where(sq.Eq{"source_id": sourceID}).OrderBy("origin_published_at DESC", "created_at DESC", "id"))
	if err != nil {
		return nil, fmt.Errorf("query articles: %w", err)
	}
	defer rows.Close()

	var out []domain.Article
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, fmt.Errorf("scan article: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate articles: %w", err)
	}
	return out, nil
}

// UpdateArticle overwrites the mutable fields of an article.
func (r *Repository) UpdateArticle(ctx context.Context, a domain.Article) error {
	if !a.Status.Valid() {
		return domain.NewError(domain.KindValidation, fmt.Sprintf("unknown article status %q", a.Status), nil)
	}
	res, err := r.db.exec(ctx, r.db.builder.Update("articles").SetMap(map[string]any{
		"source_id":            a.SourceID,
		"monitoring_config_id": a.MonitoringConfigID,
		"title":                a.Title,
		"content":              a.Content,
		"rewritten_content":    a.RewrittenContent,
		"status":               string(a.Status),
		"published_url":        a.PublishedURL,
		"remote_post_id":       a.RemotePostID,
		"published_at":         nullableTime(a.PublishedAt),
		"scheduled_for":        nullableTime(a.ScheduledFor),
		"updated_at":           r.now(),
	}).Where(sq.Eq{"id": a.ID}))
	if err != nil {
		return fmt.Errorf("update article %s: %w", a.ID, err)
	}
	return requireAffected(res, "article", a.ID)
}

// SetStatus moves an article to status, e.g. the soft terminal states
// ignored and deleted.
func (r *Repository) SetStatus(ctx context.Context, id string, status domain.ArticleStatus) error {
	if !status.Valid() {
		return domain.NewError(domain.KindValidation, fmt.Sprintf("unknown article status %q", status), nil)
	}
	res, err := r.db.exec(ctx, r.db.builder.Update("articles").
		Set("status", string(status)).
		Set("updated_at", r.now()).
		Where(sq.Eq{"id": id}))
	if err != nil {
		return fmt.Errorf("set article %s status: %w", id, err)
	}
	return requireAffected(res, "article", id)
}

func scanArticle(row rowScanner) (domain.Article, error) {
	var (
		a                            domain.Article
		status                       string
		origin, published, scheduled sql.NullTime
	)
	err := row.Scan(&a.ID, &a.UserID, &a.SourceID, &a.MonitoringConfigID, &a.GUID, &a.Title, &a.URL,
		&a.Content, &a.RewrittenContent, &status, &origin, &a.PublishedURL, &a.RemotePostID,
		&published, &scheduled, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return domain.Article{}, err
	}
	a.Status = domain.ArticleStatus(status)
	if origin.Valid {
		a.OriginPublishedAt = origin.Time.UTC()
	}
	a.PublishedAt = timePtr(published)
	a.ScheduledFor = timePtr(scheduled)
	a.CreatedAt = a.CreatedAt.UTC()
	a.UpdatedAt = a.UpdatedAt.UTC()
	return a, nil
}

func originTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
