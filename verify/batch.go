package verify

import (
	"context"

	"github.com/cottand/sigil/axiom"
	"golang.org/x/sync/errgroup"
)

// VerifyBatch verifies plans concurrently, at most e.Workers at a time.
// Results are in the order of plans; a failing plan does not stop the others.
func (e *Engine) VerifyBatch(ctx context.Context, plans []*axiom.Plan) ([]Result, Summary) {
	results := make([]Result, len(plans))
	g, ctx := errgroup.WithContext(ctx)
	if e.Workers > 0 {
		g.SetLimit(e.Workers)
	}
	for i, plan := range plans {
		g.Go(func() error {
			results[i] = e.Verify(ctx, plan)
			return nil
		})
	}
	_ = g.Wait()
	summary := Summarize(results)
	logger.Info("verified batch", "summary", summary.String())
	return results, summary
}
