package xlua

import (
	lua "github.com/yuin/gopher-lua"
)

// Presence is the outcome of looking up a name in a script's globals.
type Presence int

const (
	Absent Presence = iota
	WrongType
	Callable
)

func (p Presence) String() string {
	switch p {
	case Absent:
		return "absent"
	case WrongType:
		return "not a function"
	case Callable:
		return "callable"
	default:
		return "unknown"
	}
}

// LookupEntryPoint resolves name in the global namespace of L.
func LookupEntryPoint(L *lua.LState, name string) Presence {
	v := L.GetGlobal(name)
	switch v.Type() {
	case lua.LTNil:
		return Absent
	case lua.LTFunction:
		return Callable
	default:
		return WrongType
	}
}

// ValidateContract checks that every name in required is a callable global.
// It stops at the first failure and returns an *EntryPointError naming it.
func ValidateContract(L *lua.LState, required []string) error {
	for _, name := range required {
		if name == "" {
			return &EntryPointError{Presence: Absent}
		}
		if p := LookupEntryPoint(L, name); p != Callable {
			return &EntryPointError{Name: name, Presence: p}
		}
	}
	return nil
}
