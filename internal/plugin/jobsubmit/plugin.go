// Package jobsubmit is the job_submit/lua plugin: it runs a site Lua script
// against every job submission and modification and turns the script's
// answer into an accept/reject decision.
package jobsubmit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/atlanticdynamic/luagate/internal/job"
	"github.com/atlanticdynamic/luagate/internal/xlua"
	"github.com/robbyt/go-loglater"
	"github.com/robbyt/go-loglater/storage"
	lua "github.com/yuin/gopher-lua"
)

// PluginID identifies this plugin in logs and handle names.
const PluginID = "job_submit/lua"

const (
	submitFunc = "slurm_job_submit"
	modifyFunc = "slurm_job_modify"
)

// RequiredFunctions is the entry point contract every job submit script must
// satisfy.
var RequiredFunctions = []string{submitFunc, modifyFunc}

var (
	ErrJobSubmit      = errors.New("job submit error")
	ErrNotInitialized = fmt.Errorf("%w: no script loaded", ErrJobSubmit)
	ErrNilDescriptor  = fmt.Errorf("%w: job descriptor is nil", ErrJobSubmit)
	ErrNilRecord      = fmt.Errorf("%w: job record is nil", ErrJobSubmit)
)

// Decision is the outcome of one submit or modify call.
type Decision struct {
	Accepted    bool            `json:"accepted"`
	Code        int             `json:"code"`
	UserMessage string          `json:"user_message,omitempty"`
	Descriptor  *job.Descriptor `json:"descriptor,omitempty"`
}

// Plugin holds the active handle for the site script and swaps it when the
// script changes on disk.
type Plugin struct {
	script  *xlua.Script
	logger  *slog.Logger
	history *loglater.LogCollector
	events  *slog.Logger

	// mu serializes decisions and handle swaps
	mu       sync.Mutex
	active   *xlua.Handle
	userMsgs []string
}

// New creates the plugin for the script at scriptPath. No script is loaded
// until Init.
func New(scriptPath string, opts ...Option) (*Plugin, error) {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	p := &Plugin{
		logger: o.logger.With("plugin", PluginID),
	}
	p.history = loglater.NewLogCollector(p.logger.Handler())
	p.events = slog.New(p.history)

	loadOpts := append([]xlua.Option{xlua.WithLogger(o.logger)}, o.xluaOpts...)
	script, err := xlua.NewScript(PluginID, scriptPath, RequiredFunctions, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrJobSubmit, err)
	}
	p.script = script
	return p, nil
}

// String returns the plugin ID.
func (p *Plugin) String() string { return PluginID }

// ScriptPath returns the path of the site script.
func (p *Plugin) ScriptPath() string { return p.script.Path() }

// Init performs the first load. Without a valid script the plugin cannot make
// decisions, so any load failure is returned.
func (p *Plugin) Init(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.refresh(ctx); err != nil {
		return err
	}
	if p.active == nil {
		return ErrNotInitialized
	}
	return nil
}

// Refresh checks the script for changes and swaps in a new handle when it
// has been modified. A broken edit keeps the previous handle active.
func (p *Plugin) Refresh(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.refresh(ctx)
}

// Active returns the handle decisions are currently made with, or nil.
func (p *Plugin) Active() *xlua.Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Close retires and closes the active handle.
func (p *Plugin) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.active == nil {
		return nil
	}
	err := p.active.Close()
	p.active = nil
	return err
}

// LoadLogs returns the record of script load attempts.
func (p *Plugin) LoadLogs() []storage.Record {
	return p.history.GetLogs()
}

// PlayLoadLogs replays the load history into handler.
func (p *Plugin) PlayLoadLogs(handler slog.Handler) error {
	return p.history.PlayLogs(handler)
}

// refresh must be called with p.mu held.
func (p *Plugin) refresh(ctx context.Context) error {
	res := p.script.Resolve(p.active)

	switch res.Outcome {
	case xlua.Unchanged:
		return nil
	case xlua.Failed:
		if p.active == nil {
			p.events.Error("Initial script load failed", "error", res.Err)
			return res.Err
		}
		p.events.Warn("Script reload failed, keeping previous script",
			"error", res.Err, "handle", p.active.ID().String())
		return nil
	}

	next := res.Handle
	if err := p.install(ctx, next); err != nil {
		if closeErr := next.Close(); closeErr != nil {
			p.logger.Warn("Failed to close rejected handle", "error", closeErr)
		}
		if p.active == nil {
			p.events.Error("Initial script setup failed", "error", err)
			return err
		}
		p.events.Warn("Script setup failed, keeping previous script", "error", err)
		return nil
	}
	if err := next.Activate(); err != nil {
		_ = next.Close()
		return fmt.Errorf("%w: %w", ErrJobSubmit, err)
	}

	prev := p.active
	p.active = next
	p.events.Info("Script loaded", "handle", next.ID().String(), "mtime", next.ModTime())

	if prev != nil {
		if err := prev.Retire(); err != nil {
			p.logger.Warn("Failed to retire previous handle", "error", err)
		}
		if err := prev.Close(); err != nil {
			p.logger.Warn("Failed to close previous handle", "error", err)
		}
	}
	return nil
}

// install adds the plugin's own host functions to a freshly loaded handle.
func (p *Plugin) install(ctx context.Context, h *xlua.Handle) error {
	return h.Do(ctx, func(s *xlua.Session) error {
		_, err := xlua.TableRegister(s.State(), xlua.HostTable, map[string]lua.LGFunction{
			"log_user": p.logUser,
		})
		return err
	})
}

// logUser collects messages meant for the submitting user. It only runs
// inside a decision, with p.mu held.
func (p *Plugin) logUser(L *lua.LState) int {
	p.userMsgs = append(p.userMsgs, xlua.FormatArgs(L, 1))
	return 0
}

// Submit runs slurm_job_submit for a new job. The returned Decision carries
// the descriptor as the script left it; desc itself is not modified.
func (p *Plugin) Submit(
	ctx context.Context,
	desc *job.Descriptor,
	partitions []*job.Partition,
	submitUID uint32,
) (Decision, error) {
	return p.decide(ctx, submitFunc, desc, nil, partitions, submitUID)
}

// Modify runs slurm_job_modify for a change to the existing job rec.
func (p *Plugin) Modify(
	ctx context.Context,
	desc *job.Descriptor,
	rec *job.Record,
	partitions []*job.Partition,
	modifyUID uint32,
) (Decision, error) {
	if rec == nil {
		return Decision{Code: xlua.Error}, ErrNilRecord
	}
	return p.decide(ctx, modifyFunc, desc, rec, partitions, modifyUID)
}

func (p *Plugin) decide(
	ctx context.Context,
	fn string,
	desc *job.Descriptor,
	rec *job.Record,
	partitions []*job.Partition,
	uid uint32,
) (Decision, error) {
	if desc == nil {
		return Decision{Code: xlua.Error}, ErrNilDescriptor
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.refresh(ctx); err != nil {
		return Decision{Code: xlua.Error}, err
	}
	if p.active == nil {
		return Decision{Code: xlua.Error}, ErrNotInitialized
	}

	out := desc.Clone()
	p.userMsgs = p.userMsgs[:0]
	logger := p.logger.With("function", fn, "job", out.String())

	var ret lua.LValue = lua.LNil
	err := p.active.Do(ctx, func(s *xlua.Session) error {
		L := s.State()

		descTbl := descriptorTable(L, out)
		parts, views := partitionTable(L, partitions)
		defer func() {
			for _, v := range views {
				v.Release()
			}
		}()

		args := []lua.LValue{descTbl}
		if rec != nil {
			recView := xlua.JobRecordKind.Push(L, rec)
			defer recView.Release()
			args = append(args, recView.Value())
		}
		args = append(args, parts, lua.LNumber(uid))

		res, err := s.Call(fn, 1, args...)
		if err != nil {
			return err
		}
		ret = res[0]

		for _, w := range applyDescriptor(descTbl, out) {
			logger.Warn("Ignoring descriptor field", "reason", w)
		}
		return nil
	})

	d := Decision{UserMessage: strings.Join(p.userMsgs, "\n")}
	if err != nil {
		d.Code = xlua.Error
		logger.Error("Script call failed", "error", err)
		return d, err
	}

	d.Code = decisionCode(ret)
	d.Accepted = d.Code == xlua.Success
	d.Descriptor = out
	logger.Debug("Script decision", "code", d.Code, "accepted", d.Accepted)
	return d, nil
}

// decisionCode reads the script's return value. Anything that is not a number
// is treated as an error.
func decisionCode(v lua.LValue) int {
	n, ok := v.(lua.LNumber)
	if !ok {
		return xlua.Error
	}
	return int(n)
}
