package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/atlanticdynamic/luagate/internal/config"
	"github.com/atlanticdynamic/luagate/internal/finitestate"
	"github.com/atlanticdynamic/luagate/internal/plugin/jobsubmit"
	"github.com/robbyt/go-supervisor/supervisor"
	"github.com/urfave/cli/v3"
)

var serveCmd = &cli.Command{
	Name:  "serve",
	Usage: "Serve NDJSON submit decisions on stdin/stdout; SIGHUP checks the script for changes",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "Path to TOML configuration file",
			Required: true,
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := config.NewConfig(cmd.String("config"))
		if err != nil {
			return cli.Exit(err, 1)
		}
		logger, closeLog, err := setupLogger(cmd, cfg.Logging)
		if err != nil {
			return cli.Exit(err, 1)
		}
		defer func() { _ = closeLog() }()

		if err := serve(ctx, cfg, os.Stdin, os.Stdout, logger); err != nil {
			return cli.Exit(err, 1)
		}
		return nil
	},
}

// serve runs the job_submit runner under a supervisor and answers requests
// from in until it is exhausted or ctx ends.
func serve(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	logHandler := logger.Handler()
	plugin, err := jobsubmit.New(cfg.JobSubmit.Script, jobsubmit.WithLogHandler(logHandler))
	if err != nil {
		return fmt.Errorf("failed to create plugin: %w", err)
	}
	runner, err := jobsubmit.NewRunner(
		plugin,
		jobsubmit.WithContext(ctx),
		jobsubmit.WithRunnerLogHandler(logHandler),
		jobsubmit.WithReloadInterval(cfg.JobSubmit.ReloadInterval.AsDuration()),
	)
	if err != nil {
		return fmt.Errorf("failed to create runner: %w", err)
	}

	super, err := supervisor.New(
		supervisor.WithContext(ctx),
		supervisor.WithLogHandler(logHandler),
		supervisor.WithRunnables(runner),
	)
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	var runErr error
	superDone := make(chan struct{})
	go func() {
		runErr = super.Run()
		close(superDone)
	}()

	if err := waitRunning(ctx, runner, superDone); err != nil {
		cancel()
		<-superDone
		return errors.Join(err, runErr)
	}

	streamErr := jobsubmit.ServeStream(ctx, in, out, plugin, cfg.JobSubmit.Partitions, logger)
	if errors.Is(streamErr, context.Canceled) {
		streamErr = nil
	}

	cancel()
	<-superDone
	logger.Info("Server shutdown complete")
	return errors.Join(streamErr, runErr)
}

// waitRunning blocks until the runner has loaded its script and is serving.
func waitRunning(ctx context.Context, runner *jobsubmit.Runner, superDone <-chan struct{}) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		switch runner.GetState() {
		case finitestate.StatusRunning:
			return nil
		case finitestate.StatusError:
			return errors.New("failed to start: job submit runner failed to boot")
		}
		select {
		case <-superDone:
			return errors.New("failed to start: supervisor exited before the runner was serving")
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
