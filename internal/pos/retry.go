package pos

import (
	"context"
	"errors"
	"time"

	"github.com/sethvargo/go-retry"

	pkgerrors "github.com/angelmondragon/packfinderz-inventory/pkg/errors"
)

const jitterPercent = 20

// CallPolicy bounds every outbound provider call.
type CallPolicy struct {
	Timeout    time.Duration
	MaxRetries uint64
	Backoff    time.Duration
}

func (p CallPolicy) backoff() retry.Backoff {
	base := p.Backoff
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	b := retry.NewExponential(base)
	b = retry.WithJitterPercent(jitterPercent, b)
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// call runs fn with a per-attempt timeout, retrying transient failures.
func call[T any](ctx context.Context, policy CallPolicy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attemptCtx := ctx
		cancel := func() {}
		if policy.Timeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, policy.Timeout)
		}
		defer cancel()

		value, err := fn(attemptCtx)
		if err == nil {
			result = value
			return nil
		}
		err = classify(ctx, err, op)
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	return result, err
}

func classify(parent context.Context, err error, op string) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" timed out")
	}
	if pkgerrors.As(err) == nil && !errors.Is(err, ErrNotImplemented) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op+" failed")
	}
	return err
}

func retryable(err error) bool {
	return pkgerrors.IsRetryable(err) || pkgerrors.IsCode(err, pkgerrors.CodeRateLimit)
}
