package main

import (
	"log/slog"

	"github.com/atlanticdynamic/luagate/internal/config"
	"github.com/atlanticdynamic/luagate/internal/logging"
	"github.com/urfave/cli/v3"
)

// setupLogger builds the process logger from the config's logging section,
// with the global --log-level and --log-format flags taking precedence. The
// returned function closes a file output, if one was opened.
func setupLogger(cmd *cli.Command, lc config.LoggingConfig) (*slog.Logger, func() error, error) {
	level, format := lc.Level, lc.Format
	if v := cmd.String("log-level"); v != "" {
		level = v
	}
	if v := cmd.String("log-format"); v != "" {
		format = v
	}

	w, closeFn, err := logging.OpenOutput(lc.Output)
	if err != nil {
		return nil, nil, err
	}

	logger := slog.New(logging.SetupHandler(format, level, w))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
