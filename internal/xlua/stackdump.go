package xlua

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	lua "github.com/yuin/gopher-lua"
)

// DumpStack writes the value stack of L to logger at debug level, one record
// per slot, bottom first. The stack is only read. An empty pluginID adds no
// plugin attribute, for loggers that already carry one.
func DumpStack(logger *slog.Logger, pluginID, header string, L *lua.LState) {
	if logger == nil {
		logger = slog.Default()
	}
	ctx := context.Background()
	if !logger.Enabled(ctx, slog.LevelDebug) {
		return
	}

	if pluginID != "" {
		logger = logger.With("plugin", pluginID)
	}
	logger = logger.With("header", header)
	top := L.GetTop()
	if top == 0 {
		logger.DebugContext(ctx, "stack empty")
		return
	}
	logger.DebugContext(ctx, "stack dump", "depth", top)
	for i := 1; i <= top; i++ {
		v := L.Get(i)
		logger.DebugContext(ctx, fmt.Sprintf("%d: %s", i, printable(v)), "type", v.Type().String())
	}
}

// dumpFailure dumps the stack after a failed protected call. By then the
// interpreter has unwound to the caller's frame, so the error value and the
// traceback are pushed back first. The caller restores the stack top.
func dumpFailure(logger *slog.Logger, header string, L *lua.LState, err error) {
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		if apiErr.Object != nil {
			L.Push(apiErr.Object)
		}
		if apiErr.StackTrace != "" {
			L.Push(lua.LString(apiErr.StackTrace))
		}
	}
	DumpStack(logger, "", header, L)
}

// StackLines renders the stack the way DumpStack logs it.
func StackLines(L *lua.LState) []string {
	top := L.GetTop()
	lines := make([]string, 0, top)
	for i := 1; i <= top; i++ {
		v := L.Get(i)
		lines = append(lines, fmt.Sprintf("%d: %s: %s", i, v.Type(), printable(v)))
	}
	return lines
}

func printable(v lua.LValue) string {
	switch lv := v.(type) {
	case lua.LString:
		return strconv.Quote(string(lv))
	case lua.LNumber, lua.LBool:
		return lv.String()
	case *lua.LNilType:
		return "nil"
	default:
		// tables, functions, userdata, threads: identity only
		return fmt.Sprintf("%s: %p", v.Type(), v)
	}
}
