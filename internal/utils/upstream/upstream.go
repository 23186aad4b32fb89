// Package upstream runs calls against external collaborators (database,
// cache, video provider) with a per-attempt timeout and a bounded retry.
package upstream

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"
)

// DefaultBackoff is the pause before a retry.
var DefaultBackoff = 100 * time.Millisecond

// Call runs fn, giving each attempt its own timeout, and retries up to
// retries times. Errors matching any of permanent are returned immediately.
// A zero timeout leaves the caller's deadline in charge.
func Call(ctx context.Context, timeout time.Duration, retries uint64, fn func(ctx context.Context) error, permanent ...error) error {
	backoff := retry.WithMaxRetries(retries, retry.NewConstant(DefaultBackoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx := ctx
		if timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		err := fn(attemptCtx)
		if err == nil {
			return nil
		}
		for _, p := range permanent {
			if errors.Is(err, p) {
				return err
			}
		}
		if ctx.Err() != nil {
			return err
		}
		return retry.RetryableError(err)
	})
}

// Once runs fn a single time under timeout. Used for non-idempotent writes.
func Once(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	return Call(ctx, timeout, 0, fn)
}
