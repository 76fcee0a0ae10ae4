package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/atlanticdynamic/luagate/internal/config"
	"github.com/atlanticdynamic/luagate/internal/fancy"
	"github.com/atlanticdynamic/luagate/internal/job"
	"github.com/atlanticdynamic/luagate/internal/plugin/jobsubmit"
	"github.com/charmbracelet/lipgloss/tree"
	"github.com/pelletier/go-toml/v2"
	"github.com/urfave/cli/v3"
)

// jobFixture is a submit request read from a TOML file.
type jobFixture struct {
	SubmitUID  *uint32          `toml:"submit_uid"`
	Job        *job.Descriptor  `toml:"job"`
	Partitions []*job.Partition `toml:"partitions"`
}

func loadJobFixture(path string) (*jobFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	fx := &jobFixture{}
	if err := toml.Unmarshal(data, fx); err != nil {
		return nil, fmt.Errorf("failed to parse job file %s: %w", path, err)
	}
	if fx.Job == nil {
		return nil, fmt.Errorf("job file %s has no [job] table", path)
	}
	return fx, nil
}

var submitCmd = &cli.Command{
	Name:  "submit",
	Usage: "Run one job descriptor through the job_submit script",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "config",
			Aliases:  []string{"c"},
			Usage:    "Path to TOML configuration file",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "job",
			Aliases:  []string{"j"},
			Usage:    "Path to TOML job descriptor",
			Required: true,
		},
		&cli.Uint32Flag{
			Name:  "uid",
			Usage: "Submitting user ID; overrides submit_uid in the job file",
		},
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Print the decision as JSON",
		},
	},
	Action: submitAction,
}

func submitAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := config.NewConfig(cmd.String("config"))
	if err != nil {
		return cli.Exit(err, 1)
	}
	logger, closeLog, err := setupLogger(cmd, cfg.Logging)
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer func() { _ = closeLog() }()

	fx, err := loadJobFixture(cmd.String("job"))
	if err != nil {
		return cli.Exit(err, 1)
	}
	uid := fx.Job.UserID
	if fx.SubmitUID != nil {
		uid = *fx.SubmitUID
	}
	if cmd.IsSet("uid") {
		uid = cmd.Uint32("uid")
	}
	parts := fx.Partitions
	if len(parts) == 0 {
		parts = cfg.JobSubmit.Partitions
	}

	decision, err := submitOnce(ctx, cfg.JobSubmit.Script, fx.Job, parts, uid, logger)
	if err != nil {
		return cli.Exit(err, 1)
	}

	out := cmd.Root().Writer
	if cmd.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(decision); err != nil {
			return err
		}
	} else if _, err := fmt.Fprintln(out, renderDecision(decision)); err != nil {
		return err
	}

	if !decision.Accepted {
		return cli.Exit("", 2)
	}
	return nil
}

func submitOnce(
	ctx context.Context,
	script string,
	desc *job.Descriptor,
	parts []*job.Partition,
	uid uint32,
	logger *slog.Logger,
) (jobsubmit.Decision, error) {
	p, err := jobsubmit.New(script, jobsubmit.WithLogger(logger))
	if err != nil {
		return jobsubmit.Decision{}, err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("Failed to close plugin", "error", err)
		}
	}()

	if err := p.Init(ctx); err != nil {
		return jobsubmit.Decision{}, err
	}
	return p.Submit(ctx, desc, parts, uid)
}

func renderDecision(d jobsubmit.Decision) string {
	t := fancy.Tree()
	if d.Accepted {
		t.Root(fancy.ValidText("Accepted"))
	} else {
		t.Root(fancy.ErrorText("Rejected"))
	}
	t.Child(fmt.Sprintf("Code: %d", d.Code))
	if d.UserMessage != "" {
		t.Child("Message: " + d.UserMessage)
	}
	if d.Descriptor != nil {
		t.Child(descriptorTree(d.Descriptor))
	}
	return t.String()
}

func descriptorTree(d *job.Descriptor) *tree.Tree {
	node := fancy.BranchNode("Job", d.Name)
	add := func(label, v string) {
		if v != "" {
			node.Child(label + ": " + v)
		}
	}
	addNum := func(label string, v *uint32) {
		if v != nil {
			node.Child(fmt.Sprintf("%s: %d", label, *v))
		}
	}
	add("Account", d.Account)
	add("Partition", d.Partition)
	add("QOS", d.QOS)
	add("Comment", fancy.TruncateString(d.Comment, 60))
	addNum("Time Limit", d.TimeLimit)
	addNum("Min Nodes", d.MinNodes)
	addNum("Max Nodes", d.MaxNodes)
	addNum("Priority", d.Priority)
	if d.Nice != nil {
		node.Child(fmt.Sprintf("Nice: %d", *d.Nice))
	}
	return node
}
