package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v3"
	"github.com/benbjohnson/clock"

	"github.com/pfrederiksen/saic-ls/internal/saic"
	"github.com/pfrederiksen/saic-ls/internal/validate"
)

var (
	// ErrRetained means every attempt failed and the caller should keep the
	// previous payload. The last cause is wrapped alongside it.
	ErrRetained = errors.New("previous value retained")

	// ErrGeneric is the per-attempt cause for a placeholder payload.
	ErrGeneric = errors.New("generic response")

	// ErrNoData is the per-attempt cause for an empty payload.
	ErrNoData = errors.New("no data in response")
)

// RetryPolicy bounds FetchWithRetries.
type RetryPolicy struct {
	Limit       uint
	Backoff     time.Duration
	Exponential bool
}

// FetchWithRetries calls fetch until it returns a non-nil payload that
// isGeneric rejects as a placeholder, at most policy.Limit times.
//
// Authentication failures, malformed payloads and context cancellation end
// the loop at once and are returned as they are. Anything else is retried;
// when the attempts run out the error wraps ErrRetained and the last cause.
// onAttempt, if set, sees every failed attempt. Backoff waits run on the
// wall clock.
func FetchWithRetries[T any](
	ctx context.Context,
	fetch func(context.Context) (*T, error),
	isGeneric func(*T) (bool, error),
	policy RetryPolicy,
	onAttempt func(attempt uint, err error),
) (*T, error) {
	return fetchWithRetries(ctx, clock.New(), fetch, isGeneric, policy, onAttempt)
}

// fetchWithRetries is FetchWithRetries with the backoff waits on clk.
func fetchWithRetries[T any](
	ctx context.Context,
	clk clock.Clock,
	fetch func(context.Context) (*T, error),
	isGeneric func(*T) (bool, error),
	policy RetryPolicy,
	onAttempt func(attempt uint, err error),
) (*T, error) {
	var accepted *T

	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		value, err := fetch(ctx)
		if err != nil {
			return err
		}
		if value == nil {
			return ErrNoData
		}
		if isGeneric != nil {
			generic, err := isGeneric(value)
			if err != nil {
				return err
			}
			if generic {
				return ErrGeneric
			}
		}
		accepted = value
		return nil
	}

	delayOf := retry.FixedDelay
	if policy.Exponential {
		delayOf = retry.BackOffDelay
	}

	// retry-go sleeps on the wall clock, so wait on clk here and hand it a
	// zero delay.
	wait := func(n uint, err error, config *retry.Config) time.Duration {
		d := delayOf(n, err, config)
		if d <= 0 {
			return 0
		}
		timer := clk.Timer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
		return 0
	}

	limit := policy.Limit
	if limit == 0 {
		limit = 1
	}

	err := retry.Do(attempt,
		retry.Context(ctx),
		retry.Attempts(limit),
		retry.Delay(policy.Backoff),
		retry.DelayType(wait),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			if onAttempt != nil {
				onAttempt(n+1, err)
			}
		}),
	)
	if err == nil {
		return accepted, nil
	}

	if !retryable(err) {
		return nil, err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetained, limit, err)
}

func retryable(err error) bool {
	switch {
	case saic.IsAuthError(err),
		errors.Is(err, saic.ErrNotAuthenticated),
		errors.Is(err, validate.ErrMalformedPayload),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}
