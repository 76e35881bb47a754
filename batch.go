package surveycoder

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ferro-labs/survey-coder/generation"
	"github.com/ferro-labs/survey-coder/internal/logging"
)

// DefaultBatchConcurrency bounds GenerateBatch when the caller passes zero.
const DefaultBatchConcurrency = 4

// BatchOutcome summarises a batch.
type BatchOutcome string

const (
	BatchSuccess BatchOutcome = "success"
	// BatchPartial means some items succeeded and some failed. Item results
	// are independent; successful ones are cached as usual.
	BatchPartial BatchOutcome = "partial"
	BatchFailure BatchOutcome = "failure"
)

// BatchItem is the outcome of one request in a batch. Exactly one of Result
// and Err is set.
type BatchItem struct {
	Index  int                `json:"index"`
	Result *generation.Result `json:"result,omitempty"`
	Err    *Failure           `json:"-"`
}

// BatchReport holds per-item outcomes in request order.
type BatchReport struct {
	Items     []BatchItem `json:"items"`
	Succeeded int         `json:"succeeded"`
	Failed    int         `json:"failed"`
}

// Outcome reports success when every item succeeded, failure when none did,
// and partial otherwise. An empty batch is a success.
func (b BatchReport) Outcome() BatchOutcome {
	switch {
	case b.Failed == 0:
		return BatchSuccess
	case b.Succeeded == 0:
		return BatchFailure
	default:
		return BatchPartial
	}
}

// GenerateBatch runs reqs with at most concurrency generations in flight.
// Each item gets its own request ID derived from the batch ID.
func (c *Coordinator) GenerateBatch(ctx context.Context, reqs []generation.Request, concurrency int) BatchReport {
	if concurrency <= 0 {
		concurrency = DefaultBatchConcurrency
	}
	ctx, batchID := logging.EnsureRequestID(ctx)

	items := make([]BatchItem, len(reqs))
	var g errgroup.Group
	g.SetLimit(concurrency)
	for i, req := range reqs {
		g.Go(func() error {
			ictx := logging.WithRequestID(ctx, fmt.Sprintf("%s.%d", batchID, i))
			res, err := c.Generate(ictx, req)
			items[i] = BatchItem{Index: i, Result: res}
			if err != nil {
				f, ok := AsFailure(err)
				if !ok {
					f = &Failure{Category: CategoryRetryable, Stage: StageValidate, Err: err}
				}
				items[i].Err = f
			}
			return nil
		})
	}
	_ = g.Wait()

	report := BatchReport{Items: items}
	for _, it := range items {
		if it.Err != nil {
			report.Failed++
		} else {
			report.Succeeded++
		}
	}
	logging.FromContext(ctx).Info("batch completed",
		"items", len(reqs),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"outcome", string(report.Outcome()),
	)
	return report
}
