package requestlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSQLiteWriter_WriteListDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requests.db")
	w, err := NewSQLiteWriter(path)
	if err != nil {
		t.Fatalf("new sqlite writer: %v", err)
	}
	t.Cleanup(func() {
		_ = w.Close()
	})

	now := time.Now().UTC()
	entries := []Entry{
		{
			RequestID: "req-1",
			Task:      "coding",
			Priority:  "balanced",
			Outcome:   OutcomeSuccess,
			Model:     "claude-3-5-haiku-20241022",
			Provider:  "anthropic",
			CacheTier: "none",
			LatencyMs: 820,
			CostUSD:   0.0004,
			CreatedAt: now.Add(-2 * time.Hour),
		},
		{
			RequestID: "req-2",
			Task:      "coding",
			Priority:  "balanced",
			Outcome:   OutcomeSuccess,
			CacheTier: "memory",
			CreatedAt: now.Add(-1 * time.Hour),
		},
		{
			RequestID:       "req-3",
			Task:            "classification",
			Priority:        "fast",
			Outcome:         OutcomeFailure,
			FailureCategory: "retryable",
			Stage:           "provider_invoke",
			Model:           "gpt-4o-mini",
			Provider:        "openai",
			DegradedSteps:   1,
			ErrorMessage:    "provider timeout",
			CreatedAt:       now,
		},
	}

	for _, entry := range entries {
		if err := w.Write(context.Background(), entry); err != nil {
			t.Fatalf("write request log entry: %v", err)
		}
	}

	result, err := w.List(context.Background(), Query{Limit: 10, Offset: 0})
	if err != nil {
		t.Fatalf("list logs: %v", err)
	}
	if result.Total != 3 || len(result.Data) != 3 {
		t.Fatalf("expected 3 logs, total=%d len=%d", result.Total, len(result.Data))
	}
	if result.Data[0].RequestID != "req-3" {
		t.Fatalf("expected newest first, got %s", result.Data[0].RequestID)
	}

	filtered, err := w.List(context.Background(), Query{Limit: 10, Offset: 0, Outcome: OutcomeFailure})
	if err != nil {
		t.Fatalf("list filtered logs: %v", err)
	}
	if filtered.Total != 1 || len(filtered.Data) != 1 {
		t.Fatalf("expected 1 failure log, total=%d len=%d", filtered.Total, len(filtered.Data))
	}
	got := filtered.Data[0]
	if got.RequestID != "req-3" || got.FailureCategory != "retryable" || got.Stage != "provider_invoke" || got.DegradedSteps != 1 {
		t.Fatalf("unexpected filtered entry: %+v", got)
	}

	page, err := w.List(context.Background(), Query{Limit: 1, Offset: 1, Task: "coding"})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if page.Total != 2 || len(page.Data) != 1 || page.Data[0].RequestID != "req-1" {
		t.Fatalf("unexpected page: total=%d data=%+v", page.Total, page.Data)
	}

	since := now.Add(-90 * time.Minute)
	recent, err := w.List(context.Background(), Query{Since: &since})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	if recent.Total != 2 {
		t.Fatalf("expected 2 recent logs, got %d", recent.Total)
	}

	if _, err := w.Delete(context.Background(), MaintenanceQuery{}); err == nil {
		t.Fatal("expected error when before is missing")
	}

	deleted, err := w.Delete(context.Background(), MaintenanceQuery{Before: ptrTime(now.Add(-30 * time.Minute))})
	if err != nil {
		t.Fatalf("delete logs: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected deleted=2, got %d", deleted)
	}

	remaining, err := w.List(context.Background(), Query{})
	if err != nil {
		t.Fatalf("list remaining logs: %v", err)
	}
	if remaining.Total != 1 || len(remaining.Data) != 1 {
		t.Fatalf("expected 1 remaining log, total=%d len=%d", remaining.Total, len(remaining.Data))
	}
	if remaining.Data[0].RequestID != "req-3" {
		t.Fatalf("unexpected remaining request id: %s", remaining.Data[0].RequestID)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := Open("mysql", "x"); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestPostgresWriterContract(t *testing.T) {
	dsn := os.Getenv("SURVEYCODER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("set SURVEYCODER_TEST_POSTGRES_DSN to run Postgres requestlog integration tests")
	}

	w, err := NewPostgresWriter(dsn)
	if err != nil {
		t.Fatalf("new postgres writer: %v", err)
	}
	t.Cleanup(func() {
		_, _ = w.db.Exec("DELETE FROM generation_logs")
		_ = w.Close()
	})

	_, _ = w.db.Exec("DELETE FROM generation_logs")

	entry := Entry{
		RequestID: "pg-req",
		Task:      "coding",
		Priority:  "fast",
		Outcome:   OutcomeSuccess,
		Model:     "gpt-4o-mini",
		Provider:  "openai",
		CreatedAt: time.Now().UTC(),
	}
	if err := w.Write(context.Background(), entry); err != nil {
		t.Fatalf("write postgres log: %v", err)
	}

	result, err := w.List(context.Background(), Query{Limit: 10, Offset: 0, Provider: "openai"})
	if err != nil {
		t.Fatalf("list postgres logs: %v", err)
	}
	if result.Total != 1 || len(result.Data) != 1 {
		t.Fatalf("expected 1 postgres log, total=%d len=%d", result.Total, len(result.Data))
	}
}

func ptrTime(t time.Time) *time.Time {
	return &t
}
