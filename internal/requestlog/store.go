// Package requestlog persists one row per finished generation (served from
// cache, computed, or failed) to SQLite or Postgres.
package requestlog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Outcome values written to the outcome column.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one finished generation.
type Entry struct {
	ID              int64     `json:"id"`
	RequestID       string    `json:"request_id"`
	Task            string    `json:"task"`
	Priority        string    `json:"priority"`
	Outcome         string    `json:"outcome"`
	FailureCategory string    `json:"failure_category,omitempty"`
	Stage           string    `json:"stage,omitempty"`
	Model           string    `json:"model,omitempty"`
	Provider        string    `json:"provider,omitempty"`
	CacheTier       string    `json:"cache_tier,omitempty"`
	LatencyMs       int64     `json:"latency_ms"`
	CostUSD         float64   `json:"cost_usd"`
	DegradedSteps   int       `json:"degraded_steps"`
	ErrorMessage    string    `json:"error_message,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Query filters List. Zero fields do not filter.
type Query struct {
	Limit    int
	Offset   int
	Task     string
	Outcome  string
	Model    string
	Provider string
	Since    *time.Time
}

// ListResult is a page of entries, newest first, plus the filtered total.
type ListResult struct {
	Data  []Entry `json:"data"`
	Total int     `json:"total"`
}

// MaintenanceQuery selects rows for deletion. Before is required.
type MaintenanceQuery struct {
	Before  *time.Time
	Outcome string
}

// Writer persists request log entries.
type Writer interface {
	Write(ctx context.Context, entry Entry) error
}

// Reader lists request log entries.
type Reader interface {
	List(ctx context.Context, q Query) (ListResult, error)
}

// Maintainer deletes old entries.
type Maintainer interface {
	Delete(ctx context.Context, q MaintenanceQuery) (int64, error)
}

// NoopWriter ignores all log writes.
type NoopWriter struct{}

func (NoopWriter) Write(_ context.Context, _ Entry) error { return nil }

// SQLWriter persists entries to SQLite/Postgres.
type SQLWriter struct {
	db      *sql.DB
	dialect string
}

// DefaultLimit is the page size List uses when Query.Limit is unset.
const DefaultLimit = 50

func NewSQLiteWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		dsn = "survey-coder-requests.db"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite request log writer: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "sqlite"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

func NewPostgresWriter(dsn string) (*SQLWriter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres request log writer: %w", err)
	}
	w := &SQLWriter{db: db, dialect: "postgres"}
	if err := w.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return w, nil
}

// Open returns a writer for driver "sqlite" or "postgres".
func Open(driver, dsn string) (*SQLWriter, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite":
		return NewSQLiteWriter(dsn)
	case "postgres", "postgresql":
		return NewPostgresWriter(dsn)
	default:
		return nil, fmt.Errorf("unsupported request log driver %q", driver)
	}
}

func (w *SQLWriter) init() error {
	if err := w.db.Ping(); err != nil {
		return fmt.Errorf("ping %s request log writer: %w", w.dialect, err)
	}

	idType := "INTEGER PRIMARY KEY"
	if w.dialect == "postgres" {
		idType = "BIGSERIAL PRIMARY KEY"
	}
	ddl := `
CREATE TABLE IF NOT EXISTS generation_logs (
	id ` + idType + `,
	request_id TEXT,
	task TEXT NOT NULL,
	priority TEXT NOT NULL,
	outcome TEXT NOT NULL,
	failure_category TEXT,
	stage TEXT,
	model TEXT,
	provider TEXT,
	cache_tier TEXT,
	latency_ms BIGINT NOT NULL,
	cost_usd DOUBLE PRECISION NOT NULL,
	degraded_steps INTEGER NOT NULL,
	error_message TEXT,
	created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generation_logs_created_at ON generation_logs(created_at);`

	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := w.db.Exec(stmt); err != nil {
			return fmt.Errorf("initialize request log schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func (w *SQLWriter) rebind(query string) string {
	if w.dialect != "postgres" {
		return query
	}
	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&sb, "$%d", n)
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (w *SQLWriter) Write(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := w.rebind(`INSERT INTO generation_logs(request_id, task, priority, outcome, failure_category, stage, model, provider, cache_tier, latency_ms, cost_usd, degraded_steps, error_message, created_at)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := w.db.ExecContext(ctx, query,
		entry.RequestID,
		entry.Task,
		entry.Priority,
		entry.Outcome,
		entry.FailureCategory,
		entry.Stage,
		entry.Model,
		entry.Provider,
		entry.CacheTier,
		entry.LatencyMs,
		entry.CostUSD,
		entry.DegradedSteps,
		entry.ErrorMessage,
		entry.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("write request log: %w", err)
	}
	return nil
}

func (q Query) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(col, v string) {
		if v != "" {
			conds = append(conds, col+" = ?")
			args = append(args, v)
		}
	}
	add("task", q.Task)
	add("outcome", q.Outcome)
	add("model", q.Model)
	add("provider", q.Provider)
	if q.Since != nil {
		conds = append(conds, "created_at >= ?")
		args = append(args, q.Since.UnixMilli())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// List returns a page of entries matching q, newest first.
func (w *SQLWriter) List(ctx context.Context, q Query) (ListResult, error) {
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	where, args := q.where()

	var total int
	if err := w.db.QueryRowContext(ctx, w.rebind("SELECT COUNT(*) FROM generation_logs"+where), args...).Scan(&total); err != nil {
		return ListResult{}, fmt.Errorf("count request logs: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, w.rebind(`SELECT id, request_id, task, priority, outcome, failure_category, stage, model, provider, cache_tier, latency_ms, cost_usd, degraded_steps, error_message, created_at
	FROM generation_logs`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), append(args, q.Limit, q.Offset)...)
	if err != nil {
		return ListResult{}, fmt.Errorf("list request logs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := ListResult{Total: total, Data: make([]Entry, 0, q.Limit)}
	for rows.Next() {
		var (
			e         Entry
			createdAt int64
			reqID     sql.NullString
			category  sql.NullString
			stage     sql.NullString
			model     sql.NullString
			provider  sql.NullString
			tier      sql.NullString
			errMsg    sql.NullString
		)
		if err := rows.Scan(&e.ID, &reqID, &e.Task, &e.Priority, &e.Outcome, &category, &stage, &model, &provider, &tier,
			&e.LatencyMs, &e.CostUSD, &e.DegradedSteps, &errMsg, &createdAt); err != nil {
			return ListResult{}, fmt.Errorf("scan request log: %w", err)
		}
		e.RequestID = reqID.String
		e.FailureCategory = category.String
		e.Stage = stage.String
		e.Model = model.String
		e.Provider = provider.String
		e.CacheTier = tier.String
		e.ErrorMessage = errMsg.String
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		result.Data = append(result.Data, e)
	}
	if err := rows.Err(); err != nil {
		return ListResult{}, fmt.Errorf("iterate request logs: %w", err)
	}
	return result, nil
}

// Delete removes entries created before q.Before, optionally restricted to
// one outcome. It returns the number of rows removed.
func (w *SQLWriter) Delete(ctx context.Context, q MaintenanceQuery) (int64, error) {
	if q.Before == nil {
		return 0, fmt.Errorf("delete request logs: before is required")
	}
	query := "DELETE FROM generation_logs WHERE created_at < ?"
	args := []any{q.Before.UnixMilli()}
	if q.Outcome != "" {
		query += " AND outcome = ?"
		args = append(args, q.Outcome)
	}
	res, err := w.db.ExecContext(ctx, w.rebind(query), args...)
	if err != nil {
		return 0, fmt.Errorf("delete request logs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete request logs: %w", err)
	}
	return n, nil
}

func (w *SQLWriter) Close() error {
	if w == nil || w.db == nil {
		return nil
	}
	return w.db.Close()
}
