package jobsubmit

import (
	"fmt"
	"math"

	"github.com/atlanticdynamic/luagate/internal/job"
	"github.com/atlanticdynamic/luagate/internal/xlua"
	lua "github.com/yuin/gopher-lua"
)

// stringField and numberField bind a job_desc key to a descriptor field.
// Fields in writableStrings and writableNumbers are copied back after the
// script returns; the rest are visible to the script but owned by the host.
type stringField struct {
	key string
	ptr func(*job.Descriptor) *string
}

type numberField struct {
	key string
	ptr func(*job.Descriptor) **uint32
}

var writableStrings = []stringField{
	{"account", func(d *job.Descriptor) *string { return &d.Account }},
	{"admin_comment", func(d *job.Descriptor) *string { return &d.AdminComment }},
	{"comment", func(d *job.Descriptor) *string { return &d.Comment }},
	{"features", func(d *job.Descriptor) *string { return &d.Features }},
	{"licenses", func(d *job.Descriptor) *string { return &d.Licenses }},
	{"name", func(d *job.Descriptor) *string { return &d.Name }},
	{"partition", func(d *job.Descriptor) *string { return &d.Partition }},
	{"qos", func(d *job.Descriptor) *string { return &d.QOS }},
	{"wckey", func(d *job.Descriptor) *string { return &d.WCKey }},
}

var writableNumbers = []numberField{
	{"max_nodes", func(d *job.Descriptor) **uint32 { return &d.MaxNodes }},
	{"min_nodes", func(d *job.Descriptor) **uint32 { return &d.MinNodes }},
	{"priority", func(d *job.Descriptor) **uint32 { return &d.Priority }},
	{"time_limit", func(d *job.Descriptor) **uint32 { return &d.TimeLimit }},
	{"time_min", func(d *job.Descriptor) **uint32 { return &d.TimeMin }},
}

// descriptorTable builds the job_desc table handed to the script.
func descriptorTable(L *lua.LState, d *job.Descriptor) *lua.LTable {
	tbl := L.CreateTable(0, 24)

	for _, f := range writableStrings {
		if v := *f.ptr(d); v != "" {
			tbl.RawSetString(f.key, lua.LString(v))
		}
	}
	for _, f := range writableNumbers {
		if v := *f.ptr(d); v != nil {
			tbl.RawSetString(f.key, lua.LNumber(*v))
		}
	}
	if d.Nice != nil {
		tbl.RawSetString("nice", lua.LNumber(*d.Nice))
	}

	if d.WorkDir != "" {
		tbl.RawSetString("work_dir", lua.LString(d.WorkDir))
	}
	if d.Script != "" {
		tbl.RawSetString("script", lua.LString(d.Script))
	}
	if d.MinCPUs != nil {
		tbl.RawSetString("min_cpus", lua.LNumber(*d.MinCPUs))
	}
	if d.NumTasks != nil {
		tbl.RawSetString("num_tasks", lua.LNumber(*d.NumTasks))
	}
	tbl.RawSetString("user_id", lua.LNumber(d.UserID))
	tbl.RawSetString("group_id", lua.LNumber(d.GroupID))

	if d.Environment != nil {
		env := L.CreateTable(len(d.Environment), 0)
		for _, e := range d.Environment {
			env.Append(lua.LString(e))
		}
		tbl.RawSetString("environment", env)
	}
	return tbl
}

// applyDescriptor copies the writable fields of tbl back into d. A value of
// the wrong type leaves the field unchanged and is reported in the returned
// list; nil clears the field.
func applyDescriptor(tbl *lua.LTable, d *job.Descriptor) []string {
	var rejected []string

	for _, f := range writableStrings {
		switch v := tbl.RawGetString(f.key).(type) {
		case lua.LString:
			*f.ptr(d) = string(v)
		case *lua.LNilType:
			*f.ptr(d) = ""
		default:
			rejected = append(rejected, fmt.Sprintf("%s: want string, got %s", f.key, v.Type()))
		}
	}

	for _, f := range writableNumbers {
		switch v := tbl.RawGetString(f.key).(type) {
		case lua.LNumber:
			if !isWhole(v) {
				rejected = append(rejected, fmt.Sprintf("%s: %v is not a whole number", f.key, v))
				continue
			}
			if v < 0 || float64(v) > math.MaxUint32 {
				rejected = append(rejected, fmt.Sprintf("%s: %v out of range", f.key, v))
				continue
			}
			n := uint32(v)
			*f.ptr(d) = &n
		case *lua.LNilType:
			*f.ptr(d) = nil
		default:
			rejected = append(rejected, fmt.Sprintf("%s: want number, got %s", f.key, v.Type()))
		}
	}

	switch v := tbl.RawGetString("nice").(type) {
	case lua.LNumber:
		if !isWhole(v) {
			rejected = append(rejected, fmt.Sprintf("nice: %v is not a whole number", v))
			break
		}
		if v < math.MinInt32 || v > math.MaxInt32 {
			rejected = append(rejected, fmt.Sprintf("nice: %v out of range", v))
			break
		}
		n := int32(v)
		d.Nice = &n
	case *lua.LNilType:
		d.Nice = nil
	default:
		rejected = append(rejected, fmt.Sprintf("nice: want number, got %s", v.Type()))
	}

	return rejected
}

// isWhole rejects NaN, infinities and fractions.
func isWhole(v lua.LNumber) bool {
	f := float64(v)
	return !math.IsNaN(f) && !math.IsInf(f, 0) && f == math.Trunc(f)
}

// partitionTable builds part_list: partition name to read-only partition
// view. The views must be released after the call.
func partitionTable(L *lua.LState, partitions []*job.Partition) (*lua.LTable, []*xlua.View) {
	tbl := L.CreateTable(0, len(partitions))
	views := make([]*xlua.View, 0, len(partitions))
	for _, p := range partitions {
		if p == nil || p.Name == "" {
			continue
		}
		v := xlua.PartitionRecordKind.Push(L, p)
		views = append(views, v)
		tbl.RawSetString(p.Name, v.Value())
	}
	return tbl, views
}
