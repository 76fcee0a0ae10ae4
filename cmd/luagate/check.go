package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/atlanticdynamic/luagate/internal/config"
	"github.com/atlanticdynamic/luagate/internal/fancy"
	"github.com/atlanticdynamic/luagate/internal/plugin/jobsubmit"
	"github.com/atlanticdynamic/luagate/internal/xlua"
	"github.com/urfave/cli/v3"
)

var checkCmd = &cli.Command{
	Name:    "check",
	Aliases: []string{"lint"},
	Usage:   "Load a script once and verify its entry points",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "script",
			Aliases:  []string{"s"},
			Usage:    "Path to the Lua script",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "plugin",
			Usage: "Plugin identifier used in logs",
			Value: jobsubmit.PluginID,
		},
		&cli.StringSliceFlag{
			Name:    "require",
			Aliases: []string{"r"},
			Usage:   "Required entry point (repeatable); defaults to the job_submit set",
		},
	},
	Action: checkAction,
}

func checkAction(ctx context.Context, cmd *cli.Command) error {
	logger, closeLog, err := setupLogger(cmd, config.LoggingConfig{})
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer func() { _ = closeLog() }()

	required := cmd.StringSlice("require")
	if len(required) == 0 {
		required = jobsubmit.RequiredFunctions
	}

	report, err := checkScript(cmd.String("plugin"), cmd.String("script"), required, logger)
	if _, werr := fmt.Fprintln(cmd.Root().Writer, report); werr != nil {
		return werr
	}
	if err != nil {
		return cli.Exit(fmt.Errorf("script check failed: %w", err), 1)
	}
	return nil
}

// checkScript runs one load of path and renders the result as a tree.
func checkScript(pluginID, path string, required []string, logger *slog.Logger) (string, error) {
	res := xlua.LoadScript(nil, pluginID, path, required, time.Time{}, xlua.WithLogger(logger))
	if res.Handle != nil {
		defer func() {
			if err := res.Handle.Close(); err != nil {
				logger.Warn("Failed to close checked handle", "error", err)
			}
		}()
	}

	t := fancy.Tree()
	t.Root(fancy.RootStyle.Render(pluginID))
	t.Child("Script: " + fancy.PathText(path))

	if res.Outcome == xlua.Reloaded {
		t.Child("Outcome: " + fancy.ValidText(res.Outcome.String()))
		t.Child("Modified: " + res.ModTime.Format(time.RFC3339))
	} else {
		t.Child("Outcome: " + fancy.ErrorText(res.Outcome.String()))
	}

	var epErr *xlua.EntryPointError
	errors.As(res.Err, &epErr)

	eps := fancy.BranchNode("Entry Points", fmt.Sprintf("(%d)", len(required)))
	failedAt := -1
	if epErr != nil {
		failedAt = slices.Index(required, epErr.Name)
	}
	for i, name := range required {
		switch {
		case res.Outcome == xlua.Reloaded || i < failedAt:
			eps.Child(fancy.PresenceText(name, true))
		case i == failedAt:
			eps.Child(fancy.PresenceText(name, false) + " " + fancy.InfoStyle.Render(epErr.Presence.String()))
		default:
			// not reached by validation
			eps.Child(fancy.WarnText("? " + name))
		}
	}
	t.Child(eps)

	if res.Err != nil {
		t.Child("Error: " + fancy.ErrorText(res.Err.Error()))
	}
	return t.String(), res.Err
}
