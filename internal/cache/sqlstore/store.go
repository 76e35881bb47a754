// Package sqlstore implements the durable cache tier on SQLite or Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/cache"
)

// Store is a cache.Substrate persisting entries in a cache_entries table.
// Timestamps are unix milliseconds so expiry comparisons are plain integer
// comparisons in both dialects.
type Store struct {
	db      *sql.DB
	dialect string
	now     func() time.Time
}

var _ cache.Substrate = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewSQLite opens (and migrates) a SQLite-backed store at dsn. An empty dsn
// uses survey-coder-cache.db in the working directory.
func NewSQLite(dsn string, opts ...Option) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "survey-coder-cache.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite cache store: %w", err)
	}
	return newStore(db, "sqlite", opts)
}

// NewPostgres opens (and migrates) a Postgres-backed store.
func NewPostgres(dsn string, opts ...Option) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres cache store: %w", err)
	}
	return newStore(db, "postgres", opts)
}

// Open picks the backend by driver name ("sqlite" or "postgres").
func Open(driver, dsn string, opts ...Option) (*Store, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return NewSQLite(dsn, opts...)
	case "postgres", "postgresql":
		return NewPostgres(dsn, opts...)
	default:
		return nil, fmt.Errorf("unsupported cache store driver %q", driver)
	}
}

func newStore(db *sql.DB, dialect string, opts []Option) (*Store, error) {
	s := &Store{db: db, dialect: dialect, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("ping %s cache store: %w", s.dialect, err)
	}

	blob := "BLOB"
	if s.dialect == "postgres" {
		blob = "BYTEA"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS cache_entries (
	cache_key TEXT PRIMARY KEY,
	namespace TEXT NOT NULL,
	value ` + blob + ` NOT NULL,
	created_at BIGINT NOT NULL,
	expires_at BIGINT NOT NULL
);`,
		`CREATE INDEX IF NOT EXISTS idx_cache_entries_expires_at ON cache_entries(expires_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("initialize cache store schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *Store) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Get returns the value for key if present and not expired.
func (s *Store) Get(ctx context.Context, key cache.Key) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT value FROM cache_entries WHERE cache_key = ? AND expires_at > ?`),
		key.String(), s.now().UnixMilli(),
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache store get: %w", err)
	}
	return value, true, nil
}

// Set upserts key with a fresh expiry.
func (s *Store) Set(ctx context.Context, key cache.Key, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("cache store set: ttl must be positive, got %v", ttl)
	}
	now := s.now()
	_, err := s.db.ExecContext(ctx, s.rebind(`INSERT INTO cache_entries(cache_key, namespace, value, created_at, expires_at)
	VALUES(?, ?, ?, ?, ?)
	ON CONFLICT(cache_key) DO UPDATE SET
		namespace = excluded.namespace,
		value = excluded.value,
		created_at = excluded.created_at,
		expires_at = excluded.expires_at`),
		key.String(), string(key.Namespace), value, now.UnixMilli(), now.Add(ttl).UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("cache store set: %w", err)
	}
	return nil
}

// SweepExpired deletes expired rows and returns how many were removed.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM cache_entries WHERE expires_at <= ?`), s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("cache store sweep: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cache store sweep rows affected: %w", err)
	}
	return n, nil
}

// NamespaceStats counts rows in one namespace.
type NamespaceStats struct {
	Namespace generation.Namespace `json:"namespace"`
	Live      int64                `json:"live"`
	Expired   int64                `json:"expired"`
}

// Stats returns per-namespace live and expired row counts, ordered by
// namespace.
func (s *Store) Stats(ctx context.Context) ([]NamespaceStats, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(`SELECT namespace,
		SUM(CASE WHEN expires_at > ? THEN 1 ELSE 0 END),
		SUM(CASE WHEN expires_at <= ? THEN 1 ELSE 0 END)
	FROM cache_entries GROUP BY namespace ORDER BY namespace`), s.now().UnixMilli(), s.now().UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("cache store stats: %w", err)
	}
	defer rows.Close()

	var out []NamespaceStats
	for rows.Next() {
		var st NamespaceStats
		var ns string
		if err := rows.Scan(&ns, &st.Live, &st.Expired); err != nil {
			return nil, fmt.Errorf("scan cache store stats: %w", err)
		}
		st.Namespace = generation.Namespace(ns)
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cache store stats: %w", err)
	}
	return out, nil
}

// Clear deletes every row of ns, or every row when ns is empty.
func (s *Store) Clear(ctx context.Context, ns generation.Namespace) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if ns == "" {
		res, err = s.db.ExecContext(ctx, `DELETE FROM cache_entries`)
	} else {
		res, err = s.db.ExecContext(ctx, s.rebind(`DELETE FROM cache_entries WHERE namespace = ?`), string(ns))
	}
	if err != nil {
		return 0, fmt.Errorf("cache store clear: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
