package storage

import (
	"context"
	"fmt"
)

// schema is idempotent and portable between sqlite and postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS sites (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		username TEXT NOT NULL DEFAULT '',
		secret TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sources (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL,
		type TEXT NOT NULL DEFAULT 'unknown',
		target_site_id TEXT NOT NULL DEFAULT '',
		author_id TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '[]',
		tags TEXT NOT NULL DEFAULT '[]',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		validation_status TEXT NOT NULL DEFAULT 'pending',
		validation_message TEXT NOT NULL DEFAULT '',
		empty_runs INTEGER NOT NULL DEFAULT 0,
		last_check TIMESTAMP NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS monitoring_configs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		source_id TEXT NOT NULL,
		site_id TEXT NOT NULL DEFAULT '',
		interval_minutes INTEGER NOT NULL DEFAULT 60,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		rewrite_enabled BOOLEAN NOT NULL DEFAULT FALSE,
		auto_publish BOOLEAN NOT NULL DEFAULT FALSE,
		article_limit INTEGER NOT NULL DEFAULT 10,
		last_check TIMESTAMP NULL,
		author_id TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '[]',
		tags TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL DEFAULT '',
		source_id TEXT NOT NULL,
		monitoring_config_id TEXT NOT NULL DEFAULT '',
		guid TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL DEFAULT '',
		rewritten_content TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		origin_published_at TIMESTAMP NULL,
		published_url TEXT NOT NULL DEFAULT '',
		remote_post_id TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMP NULL,
		scheduled_for TIMESTAMP NULL,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE (source_id, guid)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_articles_source ON articles (source_id)`,
	`CREATE TABLE IF NOT EXISTS execution_counters (
		source_id TEXT PRIMARY KEY,
		count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS credit_balances (
		user_id TEXT NOT NULL,
		resource TEXT NOT NULL,
		quota INTEGER NOT NULL DEFAULT 0,
		consumed INTEGER NOT NULL DEFAULT 0 CHECK (consumed >= 0),
		PRIMARY KEY (user_id, resource)
	)`,
}

func (db *DB) migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := db.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
