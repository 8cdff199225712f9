package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/pictor-io/pictor/internal/remote"
	"go.uber.org/zap"
)

// Retrier wraps a single remote call with bounded, jittered exponential
// backoff. It owns no admission slot of its own: it runs inside a slot
// already held by its caller, so time spent sleeping between attempts
// keeps occupying capacity instead of admitting new work.
type Retrier struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *zap.SugaredLogger
}

type Option func(retrier *Retrier)

func WithLogger(logger *zap.SugaredLogger) Option {
	return func(retrier *Retrier) {
		retrier.logger = logger
	}
}

func New(maxAttempts int, baseDelay time.Duration, opts ...Option) *Retrier {
	retrier := &Retrier{
		maxAttempts: maxAttempts,
		baseDelay:   baseDelay,
	}

	for _, opt := range opts {
		opt(retrier)
	}

	if retrier.logger == nil {
		retrier.logger = zap.NewNop().Sugar()
	}

	return retrier
}

// Do invokes op up to the configured number of attempts and returns the
// result, the number of attempts actually made, and the final error.
// Terminal failures short-circuit without spending retry budget;
// exhausting the budget surfaces the last retryable error.
func (retrier *Retrier) Do(
	ctx context.Context,
	op func(ctx context.Context) (*remote.Result, error),
) (*remote.Result, int, error) {
	var lastErr error

	for attempt := 1; attempt <= retrier.maxAttempts; attempt++ {
		if attempt > 1 {
			delay := retrier.delay(attempt)

			retrier.logger.With(
				"attempt", attempt,
				"delay", delay,
			).Debugf("retrying after failure: %v", lastErr)

			select {
			case <-ctx.Done():
				return nil, attempt - 1, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := op(ctx)
		if err == nil {
			return result, attempt, nil
		}

		lastErr = err

		if !remote.Retryable(err) {
			return nil, attempt, err
		}
	}

	return nil, retrier.maxAttempts, fmt.Errorf("giving up after %d attempts: %w",
		retrier.maxAttempts, lastErr)
}

// delay computes baseDelay * 2^(attempt-2) plus random jitter
// of up to the same magnitude.
func (retrier *Retrier) delay(attempt int) time.Duration {
	backoff := retrier.baseDelay << (attempt - 2)

	return backoff + time.Duration(rand.Int63n(int64(backoff)+1))
}
