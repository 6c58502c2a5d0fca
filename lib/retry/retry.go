// Package retry runs fallible operations a bounded number of times with a
// fixed delay in between.
package retry

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

type Policy struct {
	// Attempts is the total number of times the operation is run, values
	// below 1 mean a single attempt.
	Attempts int
	Interval time.Duration
	// Retryable selects the errors worth another attempt, a nil Retryable
	// retries every error. Other errors are returned immediately.
	Retryable func(error) bool
}

func (p Policy) attempts() int {
	return max(p.Attempts, 1)
}

func (p Policy) retryable(err error) bool {
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// Operation is anything that can be retried.
type Operation[T any] func(ctx context.Context) (T, error)

// Wrap returns an operation that runs op under the given policy. The name
// only shows up in logs.
func Wrap[T any](policy Policy, name string, op Operation[T]) Operation[T] {
	return func(ctx context.Context) (T, error) {
		return Do(ctx, policy, name, op)
	}
}

// Do runs op until it succeeds, fails with a non retryable error, or runs
// out of attempts. The error of the last attempt is returned as is.
func Do[T any](ctx context.Context, policy Policy, name string, op Operation[T]) (T, error) {
	attempts := policy.attempts()
	attempt := 0

	b := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewConstantBackOff(policy.Interval),
			uint64(attempts-1),
		),
		ctx,
	)

	result, err := backoff.RetryNotifyWithData(
		func() (T, error) {
			attempt++
			res, err := op(ctx)
			if err != nil && !policy.retryable(err) {
				return res, backoff.Permanent(err)
			}
			return res, err
		},
		b,
		func(err error, next time.Duration) {
			slog.WarnContext(
				ctx, "operation failed, retrying",
				"operation", name,
				"attempt", attempt,
				"retry_in", next,
				"err", err,
			)
		},
	)
	if err != nil && attempt == attempts && policy.retryable(err) {
		slog.ErrorContext(
			ctx, "operation failed, giving up",
			"operation", name,
			"attempt", attempt,
			"err", err,
		)
	}
	return result, err
}
