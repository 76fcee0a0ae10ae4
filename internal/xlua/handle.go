package xlua

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/atlanticdynamic/luagate/internal/finitestate"
	"github.com/gofrs/uuid/v5"
	"github.com/robbyt/go-polyscript/platform/script/loader"
	lua "github.com/yuin/gopher-lua"
)

// Handle exclusively owns one Lua interpreter loaded with one script.
//
// Ownership moves with the pointer: whoever receives a Handle from the
// loader is responsible for calling Close exactly once it is no longer
// needed. A reload never changes an existing Handle; it produces a new one.
type Handle struct {
	id       uuid.UUID
	pluginID string
	path     string
	modTime  time.Time
	logger   *slog.Logger
	fsm      finitestate.Machine

	mu sync.Mutex
	L  *lua.LState
}

// newHandle builds an interpreter for the script at path: host tables first,
// then plugin setup, then the script chunk itself. On any failure the
// partially built interpreter is closed and no handle is returned.
func newHandle(pluginID, path string, modTime time.Time, o *options) (*Handle, error) {
	id, err := uuid.NewV6()
	if err != nil {
		return nil, fmt.Errorf("failed to generate handle id: %w", err)
	}
	logger := o.logger.With("plugin", pluginID, "handle", id.String())

	sm, err := finitestate.NewHandleMachine(logger.WithGroup("fsm").Handler())
	if err != nil {
		return nil, fmt.Errorf("failed to create handle state machine: %w", err)
	}

	h := &Handle{
		id:       id,
		pluginID: pluginID,
		path:     path,
		modTime:  modTime,
		logger:   logger,
		fsm:      sm,
		L:        lua.NewState(),
	}

	if err := h.init(o); err != nil {
		h.L.Close()
		if stateErr := h.fsm.Transition(finitestate.HandleDestroyed); stateErr != nil {
			logger.Error("Failed to transition to destroyed state", "error", stateErr)
		}
		return nil, err
	}

	if err := h.fsm.Transition(finitestate.HandleLoaded); err != nil {
		h.L.Close()
		return nil, fmt.Errorf("failed to transition to loaded state: %w", err)
	}
	logger.Debug("Engine handle loaded", "path", path, "mtime", modTime)
	return h, nil
}

func (h *Handle) init(o *options) error {
	L := h.L

	if err := RegisterOutputFunctions(L, h.logger); err != nil {
		return err
	}
	for _, lib := range o.libraries {
		if _, err := TableRegister(L, lib.Name, lib.Funcs); err != nil {
			return err
		}
	}
	for _, setup := range o.setups {
		if err := setup(L); err != nil {
			return fmt.Errorf("%w: %w", ErrRegistration, err)
		}
	}

	chunk, err := compileScript(L, h.path)
	if err != nil {
		return err
	}

	L.Push(chunk)
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		dumpFailure(h.logger, "script load", L, err)
		L.SetTop(0)
		return fmt.Errorf("%w: %s: %w", ErrScriptExec, h.path, err)
	}
	L.SetTop(0)
	return nil
}

// compileScript reads path through the polyscript disk loader and compiles it.
func compileScript(L *lua.LState, path string) (*lua.LFunction, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileUnreadable, path, err)
	}

	src, err := loader.NewFromDisk(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileUnreadable, path, err)
	}

	rc, err := src.GetReader()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileUnreadable, path, err)
	}
	defer func() { _ = rc.Close() }()

	code, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFileUnreadable, path, err)
	}

	fn, err := L.Load(bytes.NewReader(code), filepath.Base(path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrSyntax, path, err)
	}
	return fn, nil
}

// ID returns the unique handle ID.
func (h *Handle) ID() uuid.UUID { return h.id }

// PluginID returns the identifier of the plugin the handle was built for.
func (h *Handle) PluginID() string { return h.pluginID }

// Path returns the script path.
func (h *Handle) Path() string { return h.path }

// ModTime returns the script mtime observed when the handle was built.
func (h *Handle) ModTime() time.Time { return h.modTime }

// Status returns the lifecycle state.
func (h *Handle) Status() string { return h.fsm.GetState() }

// String returns a short description of the handle.
func (h *Handle) String() string {
	if h == nil {
		return "Handle(nil)"
	}
	return fmt.Sprintf("Handle(%s, plugin=%s, state=%s)", h.id, h.pluginID, h.Status())
}

// Activate marks a freshly loaded handle as the one its owner now serves from.
func (h *Handle) Activate() error {
	return h.fsm.Transition(finitestate.HandleActive)
}

// Retire marks an active handle as replaced. A retired handle still serves
// calls already in progress; its owner closes it afterwards.
func (h *Handle) Retire() error {
	return h.fsm.Transition(finitestate.HandleStale)
}

// Close releases the interpreter. It waits for an in-progress call to
// finish. Closing an already closed handle does nothing.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fsm.GetState() == finitestate.HandleDestroyed {
		return nil
	}
	h.L.Close()
	if err := h.fsm.Transition(finitestate.HandleDestroyed); err != nil {
		return fmt.Errorf("failed to transition to destroyed state: %w", err)
	}
	h.logger.Debug("Engine handle destroyed")
	return nil
}

// Do runs fn with exclusive use of the interpreter. Entry points must only be
// called through the Session passed to fn.
func (h *Handle) Do(ctx context.Context, fn func(s *Session) error) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.fsm.GetState() == finitestate.HandleDestroyed {
		return ErrHandleClosed
	}

	h.L.SetContext(ctx)
	defer func() {
		h.L.RemoveContext()
		h.L.SetTop(0)
	}()
	return fn(&Session{h: h, L: h.L})
}

// Call invokes the global function name with args and returns nret results.
func (h *Handle) Call(ctx context.Context, name string, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	var out []lua.LValue
	err := h.Do(ctx, func(s *Session) error {
		var err error
		out, err = s.Call(name, nret, args...)
		return err
	})
	return out, err
}

// Session is exclusive access to a handle's interpreter for the duration of
// one Do callback. It must not be retained after the callback returns.
type Session struct {
	h *Handle
	L *lua.LState
}

// State returns the interpreter for building arguments and reading results.
func (s *Session) State() *lua.LState { return s.L }

// Call invokes the global function name in protected mode. A script error is
// returned wrapped in ErrCall after the stack has been dumped to the debug
// log; the handle stays usable.
func (s *Session) Call(name string, nret int, args ...lua.LValue) ([]lua.LValue, error) {
	L := s.L
	fn, ok := L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil, &EntryPointError{Name: name, Presence: LookupEntryPoint(L, name)}
	}

	base := L.GetTop()
	err := L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...)
	if err != nil {
		dumpFailure(s.h.logger, "call "+name, L, err)
		L.SetTop(base)
		return nil, fmt.Errorf("%w: %s: %w", ErrCall, name, err)
	}

	out := make([]lua.LValue, nret)
	for i := range nret {
		out[i] = L.Get(base + 1 + i)
	}
	L.SetTop(base)
	return out, nil
}
