package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errFlaky = errors.New("flaky")

func TestDoExhaustsAttempts(t *testing.T) {
	calls := 0
	op := func(context.Context) (string, error) {
		calls++
		return "", errFlaky
	}

	_, err := Do(context.Background(), Policy{Attempts: 3}, "always-fails", op)
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, errFlaky, err)
	require.Equal(t, 3, calls)
}

func TestDoSucceedsOnSecondAttempt(t *testing.T) {
	calls := 0
	op := func(context.Context) (int, error) {
		calls++
		if calls < 2 {
			return 0, errFlaky
		}
		return 42, nil
	}

	result, err := Do(context.Background(), Policy{Attempts: 3}, "second-time", op)
	require.NoError(t, err)
	require.Equal(t, 42, result)
	require.Equal(t, 2, calls)
}

func TestDoSkipsNonRetryableErrors(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	op := func(context.Context) (struct{}, error) {
		calls++
		return struct{}{}, fatal
	}

	policy := Policy{
		Attempts:  5,
		Retryable: func(err error) bool { return errors.Is(err, errFlaky) },
	}
	_, err := Do(context.Background(), policy, "fatal", op)
	require.Equal(t, fatal, err)
	require.Equal(t, 1, calls)
}

func TestDoSingleAttemptForInvalidCount(t *testing.T) {
	for _, attempts := range []int{0, -1} {
		calls := 0
		_, err := Do(context.Background(), Policy{Attempts: attempts}, "once", func(context.Context) (int, error) {
			calls++
			return 0, errFlaky
		})
		require.ErrorIs(t, err, errFlaky)
		require.Equal(t, 1, calls)
	}
}

func TestDoWaitsInterval(t *testing.T) {
	calls := 0
	start := time.Now()
	_, err := Do(context.Background(), Policy{Attempts: 3, Interval: 20 * time.Millisecond}, "slow", func(context.Context) (int, error) {
		calls++
		return 0, errFlaky
	})
	require.ErrorIs(t, err, errFlaky)
	require.Equal(t, 3, calls)
	require.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestDoStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Do(ctx, Policy{Attempts: 10, Interval: time.Hour}, "cancelled", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, errFlaky
	})
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, calls)
}

func TestWrap(t *testing.T) {
	calls := 0
	wrapped := Wrap(Policy{Attempts: 2}, "wrapped", func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	result, err := wrapped(context.Background())
	require.NoError(t, err)
	require.Equal(t, "ok", result)
	require.Equal(t, 1, calls)
}
