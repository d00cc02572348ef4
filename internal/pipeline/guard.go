package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ppiankov/chartrisk/internal/llm"
	"github.com/ppiankov/chartrisk/internal/metrics"
	"github.com/ppiankov/chartrisk/internal/worker"
)

// Collaborator names, also used as rate limiter keys and metric labels
const (
	CollaboratorNER       = "ner"
	CollaboratorGuideline = "guideline"
	CollaboratorNarrative = "narrative"
)

// ErrorKind classifies a collaborator failure
type ErrorKind string

const (
	KindTimeout ErrorKind = "timeout"
	KindError   ErrorKind = "error"
)

// CollaboratorError reports a failed call to an external collaborator.
// It never aborts an analysis; the affected stage is skipped and the
// result is marked degraded.
type CollaboratorError struct {
	Collaborator string
	Kind         ErrorKind
	Attempts     int
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s after %d attempt(s): %v", e.Collaborator, e.Kind, e.Attempts, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// guard is the single seam every collaborator call passes through:
// rate limiting, a per-call timeout and bounded retries of retryable errors.
type guard struct {
	limiter    *worker.Limiter
	maxRetries int
	backoff    func(attempt int) time.Duration
	metrics    *metrics.Recorder
	log        *slog.Logger
}

func newGuard(limiter *worker.Limiter, maxRetries int, rec *metrics.Recorder, log *slog.Logger) *guard {
	if limiter == nil {
		limiter = worker.NewLimiter(0, 0)
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &guard{
		limiter:    limiter,
		maxRetries: maxRetries,
		backoff:    llm.Backoff,
		metrics:    rec,
		log:        log,
	}
}

// call runs fn for collaborator name. The call itself runs detached from
// ctx cancellation so an in-flight request completes; cancellation is only
// observed before each attempt.
func call[T any](ctx context.Context, g *guard, name string, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	base := context.WithoutCancel(ctx)

	var lastErr error
	attempts := 0
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		var delay time.Duration
		if attempt > 0 {
			delay = g.backoff(attempt - 1)
			g.log.Debug("Retrying collaborator call", "collaborator", name, "attempt", attempt, "delay", delay, "error", lastErr)
		}
		if err := g.limiter.WaitWithDelay(ctx, name, delay); err != nil {
			return zero, err
		}

		attempts++
		v, err := invoke(base, timeout, fn)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if !llm.IsRetryable(err) {
			break
		}
	}

	kind := KindError
	if errors.Is(lastErr, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	g.metrics.CollaboratorError(name, string(kind))
	return zero, &CollaboratorError{Collaborator: name, Kind: kind, Attempts: attempts, Err: lastErr}
}

func invoke[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
