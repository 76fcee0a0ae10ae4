package xlua

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// HostTable is the global table that carries the host bridge.
const HostTable = "slurm"

// Result codes and sentinels shared with site scripts.
const (
	Success  = 0
	Error    = -1
	NoVal    = 0xfffffffe
	Infinite = 0xffffffff

	// NoVal64 does not fit a Lua number exactly: scripts see it rounded to
	// 2^64. The decimal literal 18446744073709551614 rounds the same way, so
	// scripts should compare against slurm.NO_VAL64 rather than its digits.
	NoVal64 = 0xfffffffffffffffe
)

// Library is a named table of host functions installed into every new handle.
type Library struct {
	Name  string
	Funcs map[string]lua.LGFunction
}

// slog levels for the output bridge. The debugN levels sit below slog's
// debug level so that they only show when the handler is opened up further.
var outputLevels = map[string]slog.Level{
	"error":       slog.LevelError,
	"log_error":   slog.LevelError,
	"log_info":    slog.LevelInfo,
	"log_verbose": slog.LevelInfo,
	"log_debug":   slog.LevelDebug,
	"log_debug2":  slog.LevelDebug - 1,
	"log_debug3":  slog.LevelDebug - 2,
	"log_debug4":  slog.LevelDebug - 3,
	"log_debug5":  slog.LevelDebug - 4,
}

// levels accepted by slurm.log(level, msg, ...), indexed by level number.
var numericLevels = []slog.Level{
	slog.LevelInfo,      // 0 info
	slog.LevelInfo,      // 1 verbose
	slog.LevelDebug,     // 2 debug
	slog.LevelDebug - 1, // 3 debug2
	slog.LevelDebug - 2, // 4 debug3
	slog.LevelDebug - 3, // 5+ debug4
}

var hostConstants = map[string]lua.LNumber{
	"SUCCESS":                       Success,
	"ERROR":                         Error,
	"FAILURE":                       Error,
	"NO_VAL":                        NoVal,
	"NO_VAL64":                      NoVal64,
	"INFINITE":                      Infinite,
	"ESLURM_INVALID_PARTITION_NAME": 2000,
	"ESLURM_ACCESS_DENIED":          2002,
	"ESLURM_INVALID_ACCOUNT":        2045,
	"ESLURM_INVALID_TIME_LIMIT":     2051,
}

// TableRegister installs funcs into the global table name, creating the table
// when it does not exist yet. Existing entries with other names are kept.
func TableRegister(L *lua.LState, name string, funcs map[string]lua.LGFunction) (*lua.LTable, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty table name", ErrRegistration)
	}

	var tbl *lua.LTable
	switch v := L.GetGlobal(name).(type) {
	case *lua.LTable:
		tbl = v
	default:
		if v != lua.LNil {
			return nil, fmt.Errorf("%w: global %q is a %s, not a table", ErrRegistration, name, v.Type())
		}
		tbl = L.NewTable()
		L.SetGlobal(name, tbl)
	}

	for fname, fn := range funcs {
		if fname == "" || fn == nil {
			return nil, fmt.Errorf("%w: invalid function entry in table %q", ErrRegistration, name)
		}
		L.SetField(tbl, fname, L.NewFunction(fn))
	}
	return tbl, nil
}

// RegisterOutputFunctions installs the logging bridge and the result code
// constants into the host table. Script output is written to logger.
func RegisterOutputFunctions(L *lua.LState, logger *slog.Logger) error {
	funcs := make(map[string]lua.LGFunction, len(outputLevels)+1)
	for name, level := range outputLevels {
		funcs[name] = logAt(logger, level)
	}
	funcs["log"] = logNumbered(logger)

	tbl, err := TableRegister(L, HostTable, funcs)
	if err != nil {
		return err
	}
	for name, v := range hostConstants {
		L.SetField(tbl, name, v)
	}
	return nil
}

func logAt(logger *slog.Logger, level slog.Level) lua.LGFunction {
	return func(L *lua.LState) int {
		msg := FormatArgs(L, 1)
		logger.Log(context.Background(), level, msg, "origin", "script")
		return 0
	}
}

func logNumbered(logger *slog.Logger) lua.LGFunction {
	return func(L *lua.LState) int {
		n := L.CheckInt(1)
		if n < 0 {
			L.ArgError(1, "log level must not be negative")
			return 0
		}
		level := numericLevels[min(n, len(numericLevels)-1)]
		logger.Log(context.Background(), level, FormatArgs(L, 2), "origin", "script")
		return 0
	}
}

// FormatArgs renders the arguments starting at index first. A single argument
// is converted with tostring semantics. With more arguments the first is a
// format string handed to the script's own string.format, provided each verb
// has an argument of a usable type; otherwise the arguments are joined with
// spaces.
func FormatArgs(L *lua.LState, first int) string {
	top := L.GetTop()
	if top < first {
		return ""
	}
	if top == first {
		return L.ToStringMeta(L.Get(first)).String()
	}

	args := make([]lua.LValue, 0, top-first+1)
	for i := first; i <= top; i++ {
		args = append(args, L.Get(i))
	}

	if format, ok := args[0].(lua.LString); ok && verbsMatch(string(format), args[1:]) {
		if out, ok := callFormat(L, args); ok {
			return out
		}
	}

	parts := make([]string, 0, len(args))
	for _, v := range args {
		parts = append(parts, L.ToStringMeta(v).String())
	}
	return strings.Join(parts, " ")
}

func callFormat(L *lua.LState, args []lua.LValue) (string, bool) {
	strlib, ok := L.GetGlobal("string").(*lua.LTable)
	if !ok {
		return "", false
	}
	format, ok := L.GetField(strlib, "format").(*lua.LFunction)
	if !ok {
		return "", false
	}
	if err := L.CallByParam(lua.P{Fn: format, NRet: 1, Protect: true}, args...); err != nil {
		return "", false
	}
	out := L.Get(-1)
	L.Pop(1)
	return out.String(), true
}

// verbsMatch reports whether every verb in format has an argument it can
// render. string.format quietly turns a non-numeric %d argument into 0.
func verbsMatch(format string, args []lua.LValue) bool {
	n := 0
	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			continue
		}
		i++
		for i < len(format) && strings.IndexByte("-+ #0123456789.", format[i]) >= 0 {
			i++
		}
		if i >= len(format) {
			return false
		}
		verb := format[i]
		if verb == '%' {
			continue
		}
		if n >= len(args) {
			return false
		}
		arg := args[n]
		n++

		switch verb {
		case 'd', 'i', 'u', 'c', 'o', 'x', 'X', 'e', 'E', 'f', 'g', 'G':
			if !isNumeric(arg) {
				return false
			}
		case 's', 'q':
		default:
			return false
		}
	}
	return true
}

func isNumeric(v lua.LValue) bool {
	switch lv := v.(type) {
	case lua.LNumber:
		return true
	case lua.LString:
		_, err := strconv.ParseFloat(strings.TrimSpace(string(lv)), 64)
		return err == nil
	default:
		return false
	}
}
