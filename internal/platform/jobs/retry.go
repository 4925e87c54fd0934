// Package jobs wraps background jobs with exponential-backoff retry,
// metrics, and dead-letter persistence on retry exhaustion.
package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/rs/zerolog"

	"github.com/lantern-intel/lantern/internal/platform/observability"
	"github.com/lantern-intel/lantern/internal/platform/worker"
)

// Defaults, tunable per runner.
const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
	DefaultMaxDelay    = 60 * time.Second
)

// DeadLetterStore persists jobs that exhausted their retry budget.
type DeadLetterStore interface {
	InsertDeadLetter(ctx context.Context, jobName, errText, stackTrace string, attempts int) error
}

// Runner executes jobs with retry. The retry boundary is the only place in
// the process allowed to swallow errors: a job that exhausts its attempts is
// dead-lettered and Run returns nil, so callers keep their loops alive while
// the dead-letter entry preserves the failure for operator triage.
type Runner struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	deadLetters DeadLetterStore
	logger      *zerolog.Logger
}

// Config tunes a Runner. Zero values fall back to the defaults.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// NewRunner creates a job runner writing exhausted jobs to the given store.
func NewRunner(cfg Config, deadLetters DeadLetterStore, logger *zerolog.Logger) *Runner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}

	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}

	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = DefaultMaxDelay
	}

	return &Runner{
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   cfg.BaseDelay,
		maxDelay:    cfg.MaxDelay,
		deadLetters: deadLetters,
		logger:      logger,
	}
}

// Run executes fn with up to maxAttempts attempts. It returns a non-nil
// error only when the context is canceled between attempts; every other
// outcome (success, or exhaustion followed by dead-lettering) returns nil.
func (r *Runner) Run(ctx context.Context, jobName string, fn func(ctx context.Context) error) error {
	start := time.Now()

	var lastErr error

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			observability.JobRuns.WithLabelValues(jobName, observability.StatusSuccess).Inc()
			observability.JobDurationSeconds.WithLabelValues(jobName).Observe(time.Since(start).Seconds())

			return nil
		}

		r.logger.Warn().Err(lastErr).
			Str("job", jobName).
			Int("attempt", attempt).
			Int("max_attempts", r.maxAttempts).
			Msg("job attempt failed")

		if attempt == r.maxAttempts {
			break
		}

		if err := worker.Wait(ctx, Delay(attempt, r.baseDelay, r.maxDelay)); err != nil {
			return fmt.Errorf("job %s retry: %w", jobName, err)
		}
	}

	observability.JobRuns.WithLabelValues(jobName, observability.StatusError).Inc()
	observability.JobDurationSeconds.WithLabelValues(jobName).Observe(time.Since(start).Seconds())

	// Failures caused by shutdown are not job failures.
	if ctx.Err() != nil {
		return fmt.Errorf("job %s: %w", jobName, ctx.Err())
	}

	r.deadLetter(ctx, jobName, lastErr)

	return nil
}

// deadLetter persists the exhausted job. A store failure is logged; at that
// point the log line is the only remaining record of the original error.
func (r *Runner) deadLetter(ctx context.Context, jobName string, jobErr error) {
	stack := string(debug.Stack())

	if err := r.deadLetters.InsertDeadLetter(ctx, jobName, jobErr.Error(), stack, r.maxAttempts); err != nil {
		r.logger.Error().Err(err).
			Str("job", jobName).
			Str("job_error", jobErr.Error()).
			Msg("failed to persist dead letter")

		return
	}

	observability.DeadLettersWritten.WithLabelValues(jobName).Inc()

	r.logger.Error().
		Str("job", jobName).
		Str("job_error", jobErr.Error()).
		Int("attempts", r.maxAttempts).
		Msg("job exhausted retries, dead-lettered")
}

// Delay returns the backoff before the next attempt after the given attempt
// number (1-based): min(base * 2^(attempt-1), max). Pure function, exposed
// for tests and for callers that manage their own sleep.
func Delay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := base
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}

	if delay > max {
		return max
	}

	return delay
}
