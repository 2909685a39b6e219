package ctrl

import (
	"context"
	"time"
)

// WithTimeout runs op under a derived context bounded by d.
//
// d <= 0 runs op with ctx unchanged.
func WithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return op(ctx)
}
