package surveycoder

import (
	"context"
	"log/slog"
	"time"

	"github.com/ferro-labs/survey-coder/internal/logging"
	"github.com/ferro-labs/survey-coder/internal/requestlog"
)

// RequestLogHook returns a hook that writes one requestlog entry per
// finished generation. Write errors are logged and dropped.
func RequestLogHook(w requestlog.Writer) EventHookFunc {
	return func(ctx context.Context, subject string, data map[string]interface{}) {
		entry := entryFromEvent(subject, data)
		if err := w.Write(ctx, entry); err != nil {
			logging.FromContext(ctx).Warn("request log write failed", "request_id", entry.RequestID, "error", err.Error())
		}
	}
}

// LogHook returns a hook that emits each event as a structured log line at
// level. Failures are always logged at error level.
func LogHook(level slog.Level) EventHookFunc {
	return func(ctx context.Context, subject string, data map[string]interface{}) {
		lvl := level
		if subject == SubjectGenerationFailed {
			lvl = slog.LevelError
		}
		attrs := make([]any, 0, 2*len(data)+2)
		attrs = append(attrs, "subject", subject)
		for k, v := range data {
			attrs = append(attrs, k, v)
		}
		logging.FromContext(ctx).Log(ctx, lvl, "generation event", attrs...)
	}
}

func entryFromEvent(subject string, data map[string]interface{}) requestlog.Entry {
	e := requestlog.Entry{
		RequestID:     eventString(data, "request_id"),
		Task:          eventString(data, "task"),
		Priority:      eventString(data, "priority"),
		Model:         eventString(data, "model"),
		Provider:      eventString(data, "provider"),
		CacheTier:     eventString(data, "cache_tier"),
		LatencyMs:     eventInt64(data, "latency_ms"),
		CostUSD:       eventFloat(data, "cost_usd"),
		DegradedSteps: int(eventInt64(data, "degraded_steps")),
		Outcome:       requestlog.OutcomeSuccess,
	}
	if subject == SubjectGenerationFailed {
		e.Outcome = requestlog.OutcomeFailure
		e.FailureCategory = eventString(data, "category")
		e.Stage = eventString(data, "stage")
		e.ErrorMessage = eventString(data, "error")
	}
	if ts, ok := data["timestamp"].(time.Time); ok {
		e.CreatedAt = ts
	} else {
		e.CreatedAt = time.Now()
	}
	return e
}

func eventString(data map[string]interface{}, key string) string {
	s, _ := data[key].(string)
	return s
}

func eventInt64(data map[string]interface{}, key string) int64 {
	switch v := data[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	}
	return 0
}

func eventFloat(data map[string]interface{}, key string) float64 {
	switch v := data[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	case int:
		return float64(v)
	}
	return 0
}
