package xlua

import (
	"errors"
	"fmt"
)

var (
	// ErrXLua is the base error for this package.
	ErrXLua = errors.New("xlua error")

	// Construction-time errors. None of these ever affect a handle the caller
	// already holds.
	ErrFileUnreadable    = fmt.Errorf("%w: script file unreadable", ErrXLua)
	ErrSyntax            = fmt.Errorf("%w: script failed to compile", ErrXLua)
	ErrScriptExec        = fmt.Errorf("%w: script failed while loading", ErrXLua)
	ErrMissingEntryPoint = fmt.Errorf("%w: missing entry point", ErrXLua)
	ErrRegistration      = fmt.Errorf("%w: host function registration failed", ErrXLua)

	// Call-time errors.
	ErrCall         = fmt.Errorf("%w: script call failed", ErrXLua)
	ErrHandleClosed = fmt.Errorf("%w: handle is closed", ErrXLua)
)

// EntryPointError reports the first required entry point a script failed to
// provide.
type EntryPointError struct {
	Name     string
	Presence Presence
}

func (e *EntryPointError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: empty entry point name", ErrMissingEntryPoint)
	}
	return fmt.Sprintf("%s: %q is %s", ErrMissingEntryPoint, e.Name, e.Presence)
}

func (e *EntryPointError) Unwrap() error {
	return ErrMissingEntryPoint
}
