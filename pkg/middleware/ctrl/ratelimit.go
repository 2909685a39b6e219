package ctrl

import (
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/calque-ai/movierag/pkg/calque"
)

// Limiter is a token bucket shared by the callers of an external service.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter allows n events per interval with a burst of n.
//
// n <= 0 disables limiting.
//
// Example:
//
//	limiter := ctrl.NewLimiter(50, time.Second) // 50 embedding calls/second
func NewLimiter(n int, per time.Duration) *Limiter {
	if n <= 0 || per <= 0 {
		return &Limiter{limiter: rate.NewLimiter(rate.Inf, 0)}
	}
	return &Limiter{limiter: rate.NewLimiter(rate.Every(per/time.Duration(n)), n)}
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// RateLimit creates a rate limiting middleware around the limiter.
//
// Input: any data
// Output: same as input
// Behavior: STREAMING - blocks until a token is available, then copies through
//
// Example:
//
//	h := ctrl.RateLimit(ctrl.NewLimiter(5, time.Second), rag.Handler(chain))
func RateLimit(l *Limiter, next calque.Handler) calque.Handler {
	return calque.HandlerFunc(func(req *calque.Request, res *calque.Response) error {
		if err := l.Wait(req.Context); err != nil {
			return calque.WrapErr(req.Context, err, "rate limited")
		}
		if next == nil {
			_, err := io.Copy(res.Data, req.Data)
			return err
		}
		return next.ServeFlow(req, res)
	})
}
