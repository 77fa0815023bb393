package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"panel-lab/errors"
)

// Retrier runs one participant's generation operation with a bounded
// attempt budget. Each attempt races the operation against a per-attempt
// deadline; failed attempts back off exponentially before retrying.
// The worst case is bounded by maxAttempts*attemptTimeout plus the sum
// of backoff delays, which is what guarantees every started task
// eventually settles.
type Retrier struct {
	log            *slog.Logger
	maxAttempts    int
	attemptTimeout time.Duration
	backoffBase    time.Duration
}

func NewRetrier(log *slog.Logger, maxAttempts int, attemptTimeout, backoffBase time.Duration) Retrier {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return Retrier{
		log:            log,
		maxAttempts:    maxAttempts,
		attemptTimeout: attemptTimeout,
		backoffBase:    backoffBase,
	}
}

type attemptResult struct {
	output string
	err    error
}

// Do attempts op until it succeeds or the attempt budget is exhausted.
// It emits no events itself; translating outcomes to events belongs to
// the caller. Returns the output, the number of attempts consumed, and
// the last error when every attempt failed.
func (r Retrier) Do(ctx context.Context, participantID string, op func(ctx context.Context) (string, error)) (string, int, error) {
	var lastErr error

	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", attempt, err
		}

		output, err := r.attempt(ctx, op)
		if err == nil {
			return output, attempt + 1, nil
		}
		lastErr = err
		r.log.Warn("Generation attempt failed",
			"participant", participantID,
			"attempt", attempt+1,
			"max_attempts", r.maxAttempts,
			"error", err)

		if attempt == r.maxAttempts-1 {
			break
		}

		// backoffBase * 2^attempt, honoring cancellation
		delay := r.backoffBase << attempt
		select {
		case <-ctx.Done():
			return "", attempt + 1, ctx.Err()
		case <-time.After(delay):
		}
	}

	return "", r.maxAttempts, fmt.Errorf("%w (%d attempts): %v", errors.ErrRetriesExhausted, r.maxAttempts, lastErr)
}

// attempt races op against the per-attempt deadline. An operation that
// neither returns nor fails before the deadline counts as a timeout
// failure; its goroutine is released once op honors the cancelled ctx.
func (r Retrier) attempt(ctx context.Context, op func(ctx context.Context) (string, error)) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()

	resChan := make(chan attemptResult, 1)
	go func() {
		output, err := op(attemptCtx)
		resChan <- attemptResult{output: output, err: err}
	}()

	select {
	case res := <-resChan:
		return res.output, res.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", errors.ErrAttemptTimeout
	}
}
