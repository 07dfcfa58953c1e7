// Package sqlite provides the SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"astra/internal/storage"
	"astra/internal/storage/sqlite/migrations"

	_ "modernc.org/sqlite"
)

// Store persists users, facts, and subscriptions in a single SQLite file.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for created/updated timestamps and the
// recent-users window.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens the database at path, applies migrations, and seeds the facts
// table on first run.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	sqlDB, err := sql.Open("sqlite", filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s := &Store{sqlDB: sqlDB, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.seedFacts(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("seed facts: %w", err)
	}
	return s, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Stats returns aggregate counts across all tables.
func (s *Store) Stats(ctx context.Context) (storage.Stats, error) {
	if err := ctx.Err(); err != nil {
		return storage.Stats{}, err
	}
	stats := storage.Stats{FactsByKind: make(map[string]int)}

	for _, q := range []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM users", &stats.Users},
		{"SELECT COUNT(*) FROM facts", &stats.Facts},
		{"SELECT COUNT(*) FROM subscriptions", &stats.Subscriptions},
	} {
		if err := s.sqlDB.QueryRowContext(ctx, q.query).Scan(q.dst); err != nil {
			return storage.Stats{}, fmt.Errorf("count: %w", err)
		}
	}

	rows, err := s.sqlDB.QueryContext(ctx, "SELECT kind, COUNT(*) FROM facts GROUP BY kind")
	if err != nil {
		return storage.Stats{}, fmt.Errorf("facts by kind: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return storage.Stats{}, fmt.Errorf("facts by kind: %w", err)
		}
		stats.FactsByKind[kind] = n
	}
	if err := rows.Err(); err != nil {
		return storage.Stats{}, fmt.Errorf("facts by kind: %w", err)
	}

	weekAgo := toMillis(s.now().AddDate(0, 0, -7))
	if err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE created_at >= ?", weekAgo,
	).Scan(&stats.RecentUsers); err != nil {
		return storage.Stats{}, fmt.Errorf("recent users: %w", err)
	}

	return stats, nil
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

var _ storage.Store = (*Store)(nil)
