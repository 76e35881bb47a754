package surveycoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/ferro-labs/survey-coder/internal/circuitbreaker"
	"github.com/ferro-labs/survey-coder/providers"
)

// Category tells a caller what to do about a failed generation.
type Category string

const (
	// CategoryRetryable: the request may succeed later (timeouts, rate
	// limits, transient outages, cancellation).
	CategoryRetryable Category = "retryable"
	// CategoryNonRetryable: retrying will not help (credentials, malformed
	// request, hard quota).
	CategoryNonRetryable Category = "non_retryable"
	// CategoryConfiguration: the routing or provider setup cannot serve the
	// request.
	CategoryConfiguration Category = "configuration"
)

// Stage names the pipeline step a request was in.
type Stage string

// Pipeline stages, in order.
const (
	StageValidate       Stage = "validate"
	StageWhitelistCheck Stage = "whitelist_check"
	StageCacheCheck     Stage = "cache_check"
	StageLanguageDetect Stage = "language_detect"
	StageTranslate      Stage = "translate"
	StageContextEnrich  Stage = "context_enrich"
	StageModelSelect    Stage = "model_select"
	StageProviderInvoke Stage = "provider_invoke"
	StageSecondaryEval  Stage = "secondary_eval"
	StageCacheStore     Stage = "cache_store"
)

// Failure is the only error type Generate returns.
type Failure struct {
	Category Category
	Stage    Stage
	// Model is the last model attempted, if any.
	Model string
	// Attempts lists every model invoked, in order.
	Attempts []string
	Err      error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("generation failed at %s (%s)", f.Stage, f.Category)
	if f.Model != "" {
		msg += " on model " + f.Model
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Retryable reports whether the caller may retry later.
func (f *Failure) Retryable() bool { return f.Category == CategoryRetryable }

// ErrCanceled marks failures caused by the caller's context ending, as
// opposed to a per-step timeout.
var ErrCanceled = errors.New("request canceled")

// Canceled reports whether the caller's context ended the request.
func (f *Failure) Canceled() bool { return errors.Is(f.Err, ErrCanceled) }

func canceled(ctx context.Context, stage Stage, model string) *Failure {
	return &Failure{
		Category: CategoryRetryable,
		Stage:    stage,
		Model:    model,
		Err:      fmt.Errorf("%w: %w", ErrCanceled, context.Cause(ctx)),
	}
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	ok := errors.As(err, &f)
	return f, ok
}

// categorize maps a provider invocation error to a failure category.
func categorize(err error) Category {
	if isRetryable(err) {
		return CategoryRetryable
	}
	return CategoryNonRetryable
}

// isRetryable reports whether err should trigger the fallback attempt. An
// open circuit counts as retryable.
func isRetryable(err error) bool {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return true
	}
	var pe *providers.Error
	if errors.As(err, &pe) {
		return pe.Retryable()
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func errorKind(err error) string {
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
		return "circuit_open"
	}
	var pe *providers.Error
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	return string(providers.KindTransient)
}
