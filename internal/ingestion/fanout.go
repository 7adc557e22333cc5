package ingestion

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/riskintel/backend/pkg/logger"
)

// fanOut runs fn over items with at most limit in flight. Results keep input
// order; items whose fn reports false or panics are dropped.
func fanOut[C, R any](ctx context.Context, limit int, items []C, fn func(context.Context, C) (R, bool)) []R {
	type slot struct {
		value R
		ok    bool
	}
	slots := make([]slot, len(items))

	var g errgroup.Group
	g.SetLimit(limit)
	for i := range items {
		i := i
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("Candidate processing panicked", zap.Int("index", i), zap.String("panic", fmt.Sprint(r)))
				}
			}()
			slots[i].value, slots[i].ok = fn(ctx, items[i])
			return nil
		})
	}
	_ = g.Wait()

	out := make([]R, 0, len(items))
	for _, s := range slots {
		if s.ok {
			out = append(out, s.value)
		}
	}
	return out
}
