package feed

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Gather calls fn for every input with at most limit calls in flight and
// returns the results indexed like inputs, whatever order the calls finish
// in. fn owns its failures: Gather has no error path, so one input can never
// fail another.
func Gather[In, Out any](ctx context.Context, limit int, inputs []In, fn func(ctx context.Context, in In) Out) []Out {
	out := make([]Out, len(inputs))
	if limit <= 0 {
		limit = len(inputs)
	}

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i, in := range inputs {
		g.Go(func() error {
			out[i] = fn(ctx, in)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
