package xlua

import (
	"fmt"
	"slices"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// FieldFunc converts one field of a host record into a script value.
type FieldFunc[T any] func(L *lua.LState, rec *T) lua.LValue

// RecordKind is the fixed field vocabulary of one kind of host record. Kinds
// are package-level values built once and shared by every handle.
type RecordKind[T any] struct {
	Name   string
	Fields map[string]FieldFunc[T]
}

// Resolve translates a single field of rec. Unknown names, and any name on a
// nil record, resolve to nil with ok set to false; this is not an error so
// that scripts can test for optional fields.
func (k *RecordKind[T]) Resolve(L *lua.LState, rec *T, name string) (lua.LValue, bool) {
	get, ok := k.Fields[name]
	if !ok || rec == nil {
		return lua.LNil, false
	}
	return get(L, rec), true
}

// FieldNames returns the vocabulary in sorted order.
func (k *RecordKind[T]) FieldNames() []string {
	names := make([]string, 0, len(k.Fields))
	for name := range k.Fields {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (k *RecordKind[T]) metatableName() string {
	return "luagate." + k.Name
}

// Push wraps rec in a read-only view and returns it. The record is never
// copied; fields are translated only when a script reads them. The caller
// must Release the view once the script call that received it returns.
func (k *RecordKind[T]) Push(L *lua.LState, rec *T) *View {
	mt := L.NewTypeMetatable(k.metatableName())
	if L.GetField(mt, "__index") == lua.LNil {
		L.SetField(mt, "__index", L.NewFunction(k.index))
		L.SetField(mt, "__newindex", L.NewFunction(k.newIndex))
		L.SetField(mt, "__tostring", L.NewFunction(k.toString))
	}

	ud := L.NewUserData()
	ud.Value = rec
	L.SetMetatable(ud, mt)
	return &View{ud: ud}
}

func (k *RecordKind[T]) index(L *lua.LState) int {
	ud := L.CheckUserData(1)
	key, ok := L.Get(2).(lua.LString)
	if !ok {
		// field names are strings; any other key is simply absent
		L.Push(lua.LNil)
		return 1
	}
	rec, _ := ud.Value.(*T)
	v, _ := k.Resolve(L, rec, string(key))
	L.Push(v)
	return 1
}

func (k *RecordKind[T]) newIndex(L *lua.LState) int {
	L.RaiseError("%s record is read-only (field %s)", k.Name, L.Get(2).String())
	return 0
}

func (k *RecordKind[T]) toString(L *lua.LState) int {
	ud := L.CheckUserData(1)
	switch rec := ud.Value.(type) {
	case fmt.Stringer:
		L.Push(lua.LString(rec.String()))
	default:
		L.Push(lua.LString(k.Name + " record (released)"))
	}
	return 1
}

// View is a script-side projection of a host record.
type View struct {
	ud *lua.LUserData
}

// Value returns the userdata to hand to the script.
func (v *View) Value() lua.LValue {
	return v.ud
}

// Release detaches the host record. Later reads through a copy the script
// kept yield nil.
func (v *View) Release() {
	v.ud.Value = nil
}

// Released reports whether the view has been detached.
func (v *View) Released() bool {
	return v.ud.Value == nil
}

func lstr(s string) lua.LValue {
	if s == "" {
		return lua.LNil
	}
	return lua.LString(s)
}

type number interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 | ~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

func lnum[N number](n N) lua.LValue {
	return lua.LNumber(n)
}

func lnump[N number](p *N) lua.LValue {
	if p == nil {
		return lua.LNil
	}
	return lua.LNumber(*p)
}

func ltime(t time.Time) lua.LValue {
	if t.IsZero() {
		return lua.LNil
	}
	return lua.LNumber(t.Unix())
}

func lstrings(L *lua.LState, ss []string) lua.LValue {
	if ss == nil {
		return lua.LNil
	}
	tbl := L.CreateTable(len(ss), 0)
	for _, s := range ss {
		tbl.Append(lua.LString(s))
	}
	return tbl
}
