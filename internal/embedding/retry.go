package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/timmy/docqueue/internal/logger"
)

// retryPolicy runs an operation up to maxAttempts times with a fixed delay
// between attempts. Each attempt gets its own deadline; when it fires the
// attempt's context is cancelled so the in-flight call is torn down.
type retryPolicy struct {
	maxAttempts    int
	attemptTimeout time.Duration
	delay          time.Duration
}

// do returns the number of attempts made and nil, or the aggregate error.
func (p retryPolicy) do(ctx context.Context, op func(ctx context.Context) error) (int, error) {
	var lastErr error
	attempt := 0
	for attempt < p.maxAttempts {
		if err := ctx.Err(); err != nil {
			return attempt, err
		}
		attempt++

		lastErr = p.runAttempt(ctx, op)
		if lastErr == nil {
			if attempt > 1 {
				logger.With(logger.Fields{logger.FieldAttempt: attempt}).Debug(ctx, "Embedding succeeded after retry")
			}
			return attempt, nil
		}

		logger.With(logger.Fields{
			logger.FieldAttempt: attempt,
			"max_attempts":      p.maxAttempts,
		}).Warn(ctx, "Embedding attempt failed: %v", lastErr)

		if attempt == p.maxAttempts {
			break
		}

		timer := time.NewTimer(p.delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return attempt, ctx.Err()
		case <-timer.C:
		}
	}

	return attempt, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempt, lastErr)
}

func (p retryPolicy) runAttempt(ctx context.Context, op func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, p.attemptTimeout)
	defer cancel()

	err := op(attemptCtx)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w after %s: %w", ErrAttemptTimeout, p.attemptTimeout, err)
	}
	return err
}
