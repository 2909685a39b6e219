// Package ctrl holds the flow-control primitives of the pipeline: bounded
// retries with backoff, rate limiting and per-call timeouts.
package ctrl

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/calque-ai/movierag/pkg/calque"
)

// RetryPolicy bounds a retried operation.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// InitialInterval is the wait before the first retry.
	InitialInterval time.Duration

	// MaxInterval caps the wait between retries.
	MaxInterval time.Duration

	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	Retryable func(error) bool
}

// DefaultRetryPolicy allows one retry after 200ms for transient errors.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      1,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Retryable:       IsTransient,
	}
}

// Retry runs op and retries it with exponential backoff while the error is
// retryable and the retry budget lasts.
//
// Input: context, policy, operation
// Output: the last error from op, or nil
// Behavior: never retries past ctx cancellation; non-retryable errors are
// returned immediately and unchanged
//
// Example:
//
//	err := ctrl.Retry(ctx, ctrl.DefaultRetryPolicy(), func(ctx context.Context) error {
//	    vec, err = embedder.Embed(ctx, query)
//	    return err
//	})
func Retry(ctx context.Context, policy RetryPolicy, op func(context.Context) error) error {
	retryable := policy.Retryable
	if retryable == nil {
		retryable = IsTransient
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}

	eb := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		eb.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		eb.MaxInterval = policy.MaxInterval
	}
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(policy.MaxRetries)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !retryable(err) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		calque.LogWarn(ctx, "retrying after transient error", "attempt", attempt, "wait", wait, "error", err)
	}

	return backoff.RetryNotify(operation, b, notify)
}

// IsTransient reports whether err is worth retrying.
//
// Errors exposing Transient() bool decide for themselves; network timeouts
// and deadline errors are transient; cancellation is not.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
