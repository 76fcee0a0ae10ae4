package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "luagate",
		Version: Version,
		Usage:   "Run site Lua policy scripts at resource manager decision points",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (trace, debug, info, warn, error); overrides the config file",
				Sources: cli.EnvVars("LUAGATE_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "Log format (text, json); overrides the config file",
				Sources: cli.EnvVars("LUAGATE_LOG_FORMAT"),
			},
		},
		Commands: []*cli.Command{
			versionCmd,
			checkCmd,
			submitCmd,
			serveCmd,
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
