package scraper

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/codeGROOVE-dev/retry"
)

// RetryPolicy bounds how a page fetch is retried.
type RetryPolicy struct {
	// Retryable decides whether a failed attempt is worth repeating.
	Retryable func(error) bool
	Attempts  uint
	Delay     time.Duration
}

// DefaultRetryPolicy makes three attempts one second apart and retries every failure,
// page structure mismatches included.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Attempts:  3,
		Delay:     time.Second,
		Retryable: RetryAll,
	}
}

// RetryAll retries everything except cancellation.
func RetryAll(err error) bool {
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// RetryTransportOnly does not retry page structure mismatches, which will not fix themselves
// within one invocation.
func RetryTransportOnly(err error) bool {
	return RetryAll(err) && !IsParseError(err)
}

// Do runs fn until it succeeds, the policy gives up, or ctx is done.
// It returns the number of attempts made and the last error.
func (p RetryPolicy) Do(ctx context.Context, logger *slog.Logger, fn func() error) (uint, error) {
	attempts := max(p.Attempts, 1)
	retryable := p.Retryable
	if retryable == nil {
		retryable = RetryAll
	}

	var made uint
	err := retry.Do(
		func() error {
			made++
			return fn()
		},
		retry.Attempts(attempts),
		retry.Delay(p.Delay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			logger.Info("Retrying fetch after error", "attempt", n+1, "max_attempts", attempts, "error", err)
		}),
	)
	return made, err
}
