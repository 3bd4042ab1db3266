package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTimeout bounds one processing run end to end.
const DefaultTimeout = 600 * time.Second

// defaultPollInterval is how often the runner checks the budget.
const defaultPollInterval = time.Second

// Runner executes pipeline runs in a worker goroutine and enforces a
// wall-clock budget on them.
type Runner struct {
	orch    *Orchestrator
	timeout time.Duration
	poll    time.Duration
	logger  *slog.Logger
}

// NewRunner wraps orch with a wall-clock budget. A timeout at or below
// zero falls back to DefaultTimeout.
func NewRunner(orch *Orchestrator, timeout time.Duration, logger *slog.Logger) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		orch:    orch,
		timeout: timeout,
		poll:    defaultPollInterval,
		logger:  logger,
	}
}

// Run executes the pipeline in a worker goroutine, polling the budget
// once per interval. On timeout the worker is abandoned rather than
// killed: the underlying encode may run to completion in the background,
// and its output is discarded with the scratch scope. Known limitation.
func (r *Runner) Run(ctx context.Context, input, output string, cfg Config) (*Result, error) {
	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	started := time.Now()

	go func() {
		result, err := r.orch.Run(ctx, input, output, cfg)
		done <- outcome{result: result, err: err}
	}()

	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		select {
		case out := <-done:
			return out.result, out.err
		case <-ctx.Done():
			return nil, fmt.Errorf("processing aborted: %w", ctx.Err())
		case <-ticker.C:
			if elapsed := time.Since(started); elapsed > r.timeout {
				r.logger.Error("processing timeout, abandoning worker",
					slog.Duration("elapsed", elapsed),
					slog.Duration("timeout", r.timeout))
				return nil, &Error{
					Kind: KindTimeout,
					Hint: hintShorterClips,
					Err:  context.DeadlineExceeded,
				}
			}
		}
	}
}
