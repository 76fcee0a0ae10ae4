package jobsubmit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/atlanticdynamic/luagate/internal/finitestate"
	"github.com/robbyt/go-supervisor/supervisor"
)

var (
	_ supervisor.Runnable   = (*Runner)(nil)
	_ supervisor.Reloadable = (*Runner)(nil)
)

// Runner keeps a Plugin's script current while running under a supervisor.
// It loads the script on boot, re-checks it every reload interval and on
// Reload, and closes the active handle on shutdown.
type Runner struct {
	plugin   *Plugin
	interval time.Duration

	logger *slog.Logger
	fsm    finitestate.Machine

	runCtx    context.Context
	runCancel context.CancelFunc
	parentCtx context.Context
}

// NewRunner creates a Runner for plugin.
func NewRunner(plugin *Plugin, opts ...RunnerOption) (*Runner, error) {
	if plugin == nil {
		return nil, errors.New("plugin is required")
	}
	r := &Runner{
		plugin:    plugin,
		logger:    slog.Default().WithGroup("jobsubmit.Runner"),
		parentCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(r)
	}

	sm, err := finitestate.New(r.logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create state machine: %w", err)
	}
	r.fsm = sm
	return r, nil
}

// String implements the supervisor.Runnable interface
func (r *Runner) String() string {
	return "jobsubmit.Runner"
}

// Plugin returns the plugin this runner manages.
func (r *Runner) Plugin() *Plugin { return r.plugin }

// Run implements the supervisor.Runnable interface
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Debug("Starting Runner")

	if err := r.fsm.Transition(finitestate.StatusBooting); err != nil {
		return fmt.Errorf("failed to transition to booting state: %w", err)
	}

	r.runCtx, r.runCancel = context.WithCancel(ctx)
	defer r.runCancel()

	if err := r.plugin.Init(r.runCtx); err != nil {
		if stateErr := r.fsm.Transition(finitestate.StatusError); stateErr != nil {
			r.logger.Error("Failed to transition to error state", "error", stateErr)
		}
		return fmt.Errorf("failed to load job submit script: %w", err)
	}

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}

	var tick <-chan time.Time
	if r.interval > 0 {
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for done := false; !done; {
		select {
		case <-r.parentCtx.Done():
			r.logger.Debug("Parent context canceled")
			done = true
		case <-r.runCtx.Done():
			r.logger.Debug("Run context canceled")
			done = true
		case <-tick:
			if err := r.plugin.Refresh(r.runCtx); err != nil {
				r.logger.Error("Script refresh failed", "error", err)
			}
		}
	}

	r.logger.Info("Runner shutting down")

	if r.fsm.GetState() != finitestate.StatusStopping {
		if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
			r.logger.Error("Failed to transition to stopping state", "error", err)
		}
	}

	if err := r.plugin.Close(); err != nil {
		r.logger.Error("Failed to close script handle", "error", err)
	}

	if err := r.fsm.Transition(finitestate.StatusStopped); err != nil {
		return fmt.Errorf("failed to transition to stopped state: %w", err)
	}
	return nil
}

// Stop implements the supervisor.Runnable interface
func (r *Runner) Stop() {
	r.logger.Debug("Stopping Runner")
	if err := r.fsm.Transition(finitestate.StatusStopping); err != nil {
		r.logger.Error("Failed to transition to stopping state", "error", err)
	}
	if r.runCancel != nil {
		r.runCancel()
	}
}

// Reload implements the supervisor.Reloadable interface. It re-checks the
// script immediately instead of waiting for the next interval. A failed edit
// of a running script is not an error: the previous script stays active.
func (r *Runner) Reload(ctx context.Context) error {
	r.logger.Debug("Starting Reload...")
	if err := r.fsm.TransitionIfCurrentState(finitestate.StatusRunning, finitestate.StatusReloading); err != nil {
		return fmt.Errorf("cannot reload in state %s: %w", r.fsm.GetState(), err)
	}

	if err := r.plugin.Refresh(ctx); err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			if stateErr := r.fsm.Transition(finitestate.StatusError); stateErr != nil {
				r.logger.Error("Failed to transition to error state", "error", stateErr)
			}
			return fmt.Errorf("script refresh failed: %w", err)
		}
		if stateErr := r.fsm.Transition(finitestate.StatusRunning); stateErr != nil {
			r.logger.Error("Failed to transition to running state", "error", stateErr)
		}
		return err
	}

	if err := r.fsm.Transition(finitestate.StatusRunning); err != nil {
		return fmt.Errorf("failed to transition to running state: %w", err)
	}
	r.logger.Debug("Reload completed")
	return nil
}
