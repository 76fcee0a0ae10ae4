package jobsubmit

import (
	"context"
	"log/slog"
	"time"
)

type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger for the Runner instance.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRunnerLogHandler sets a custom log handler for the Runner instance.
func WithRunnerLogHandler(handler slog.Handler) RunnerOption {
	return func(r *Runner) {
		r.logger = slog.New(handler)
	}
}

// WithContext sets a custom parent context for the Runner instance.
func WithContext(ctx context.Context) RunnerOption {
	return func(r *Runner) {
		r.parentCtx = ctx
	}
}

// WithReloadInterval makes the Runner re-check the script on a timer. Zero
// disables polling; the script is then only re-checked on Reload and before
// each decision.
func WithReloadInterval(d time.Duration) RunnerOption {
	return func(r *Runner) {
		r.interval = d
	}
}
