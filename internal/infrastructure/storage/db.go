package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsAutopilot/internal/domain"
)

// DB is a database handle plus the statement builder matching its dialect.
type DB struct {
	sql     *sql.DB
	builder sq.StatementBuilderType
	dialect string
}

// Open connects to the database named by dsn and applies the schema.
// postgres:// and postgresql:// DSNs use lib/pq; sqlite:, file: and bare
// paths use the pure-Go sqlite driver.
func Open(ctx context.Context, dsn string) (*DB, error) {
	driver, source, err := driverFor(dsn)
	if err != nil {
		return nil, err
	}

	conn, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	db := &DB{sql: conn, dialect: driver}
	switch driver {
	case "postgres":
		db.builder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		conn.SetMaxOpenConns(1)
		db.builder = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	}

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if err := db.migrate(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	return db.sql.Close()
}

// Dialect returns "postgres" or "sqlite".
func (db *DB) Dialect() string {
	return db.dialect
}

func driverFor(dsn string) (string, string, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return "", "", errors.New("database dsn is empty")
	}
	if dsn == ":memory:" {
		return "sqlite", dsn, nil
	}

	parsed, err := url.Parse(dsn)
	if err != nil {
		return "sqlite", dsn, nil
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return "postgres", dsn, nil
	case "sqlite":
		return "sqlite", strings.TrimPrefix(strings.TrimPrefix(dsn, "sqlite://"), "sqlite:"), nil
	case "file", "":
		return "sqlite", dsn, nil
	default:
		return "", "", fmt.Errorf("unsupported database scheme: %s", parsed.Scheme)
	}
}

func (db *DB) exec(ctx context.Context, query sq.Sqlizer) (sql.Result, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build statement: %w", err)
	}
	return db.sql.ExecContext(ctx, stmt, args...)
}

func (db *DB) query(ctx context.Context, query sq.Sqlizer) (*sql.Rows, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.sql.QueryContext(ctx, stmt, args...)
}

func (db *DB) queryRow(ctx context.Context, query sq.Sqlizer) (*sql.Row, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	return db.sql.QueryRowContext(ctx, stmt, args...), nil
}

// requireAffected turns an update that matched nothing into record-not-found.
func requireAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.NewError(domain.KindRecordNotFound, fmt.Sprintf("%s %s", entity, id), nil)
	}
	return nil
}

func notFoundOr(err error, entity, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewError(domain.KindRecordNotFound, fmt.Sprintf("%s %s", entity, id), err)
	}
	return fmt.Errorf("load %s %s: %w", entity, id, err)
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time.UTC()
	return &t
}

func encodeList(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func decodeList(raw string) []string {
	if raw == "" {
		return nil
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil
	}
	if len(values) == 0 {
		return nil
	}
	return values
}

func ownedBy(userID string) sq.Sqlizer {
	if userID == "" {
		return sq.Expr("1 = 1")
	}
	return sq.Eq{"user_id": userID}
}
