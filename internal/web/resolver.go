package web

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/erazemk/skladnost/internal/submission"
)

// resolveSubmission loads the route data of a submission detail page. Both
// payloads are fetched concurrently.
func resolveSubmission(ctx context.Context, b Backend, complianceID, submissionID int64) (submission.RouteData, error) {
	var data submission.RouteData

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		raw, err := b.Compliance(ctx, complianceID)
		if err != nil {
			return fmt.Errorf("resolving compliance %d: %w", complianceID, err)
		}
		data.Compliance = submission.Resolved{Data: raw}
		return nil
	})
	g.Go(func() error {
		raw, err := b.Submission(ctx, complianceID, submissionID)
		if err != nil {
			return fmt.Errorf("resolving submission %d: %w", submissionID, err)
		}
		data.Submission = submission.Resolved{Data: raw}
		return nil
	})
	if err := g.Wait(); err != nil {
		return submission.RouteData{}, err
	}
	return data, nil
}
