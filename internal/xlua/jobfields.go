package xlua

import (
	"github.com/atlanticdynamic/luagate/internal/job"
	lua "github.com/yuin/gopher-lua"
)

// JobRecordKind is the job record vocabulary visible to scripts as job_rec.
// Field names are a compatibility surface: add, never rename.
var JobRecordKind = &RecordKind[job.Record]{
	Name: "job_record",
	Fields: map[string]FieldFunc[job.Record]{
		"account":       func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.Account) },
		"admin_comment": func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.AdminComment) },
		"array_job_id":  func(_ *lua.LState, r *job.Record) lua.LValue { return lnum(r.ArrayJobID) },
		"array_task_id": func(_ *lua.LState, r *job.Record) lua.LValue { return lnump(r.ArrayTaskID) },
		"batch_host":    func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.BatchHost) },
		"comment":       func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.Comment) },
		"derived_ec":    func(_ *lua.LState, r *job.Record) lua.LValue { return lnump(r.DerivedEC) },
		"details":       jobDetails,
		"end_time":      func(_ *lua.LState, r *job.Record) lua.LValue { return ltime(r.EndTime) },
		"exit_code":     func(_ *lua.LState, r *job.Record) lua.LValue { return lnump(r.ExitCode) },
		"features":      func(_ *lua.LState, r *job.Record) lua.LValue { return detailStr(r, func(d *job.Details) string { return d.Features }) },
		"gres":          func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.Gres) },
		"group_id":      func(_ *lua.LState, r *job.Record) lua.LValue { return lnum(r.GroupID) },
		"job_id":        func(_ *lua.LState, r *job.Record) lua.LValue { return lnum(r.JobID) },
		"job_state":     func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(string(r.State)) },
		"licenses":      func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.Licenses) },
		"max_cpus": func(_ *lua.LState, r *job.Record) lua.LValue {
			if r.Details == nil {
				return lua.LNil
			}
			return lnump(r.Details.MaxCPUs)
		},
		"max_nodes": func(_ *lua.LState, r *job.Record) lua.LValue {
			if r.Details == nil {
				return lua.LNil
			}
			return lnump(r.Details.MaxNodes)
		},
		"min_cpus": func(_ *lua.LState, r *job.Record) lua.LValue {
			if r.Details == nil {
				return lua.LNil
			}
			return lnum(r.Details.MinCPUs)
		},
		"min_nodes": func(_ *lua.LState, r *job.Record) lua.LValue {
			if r.Details == nil {
				return lua.LNil
			}
			return lnum(r.Details.MinNodes)
		},
		"name":               func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.Name) },
		"nice":               func(_ *lua.LState, r *job.Record) lua.LValue { return lnump(r.Nice) },
		"nodes":              func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.Nodes) },
		"partition":          func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.Partition) },
		"priority":           func(_ *lua.LState, r *job.Record) lua.LValue { return lnump(r.Priority) },
		"qos":                func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.QOS) },
		"reboot":             func(_ *lua.LState, r *job.Record) lua.LValue { return lua.LBool(r.Reboot) },
		"req_switch":         func(_ *lua.LState, r *job.Record) lua.LValue { return lnump(r.ReqSwitch) },
		"restart_cnt":        func(_ *lua.LState, r *job.Record) lua.LValue { return lnum(r.RestartCount) },
		"resv_name":          func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.ResvName) },
		"spank_job_env":      func(L *lua.LState, r *job.Record) lua.LValue { return lstrings(L, r.SpankEnv) },
		"spank_job_env_size": func(_ *lua.LState, r *job.Record) lua.LValue { return lnum(len(r.SpankEnv)) },
		"start_time":         func(_ *lua.LState, r *job.Record) lua.LValue { return ltime(r.StartTime) },
		"std_err":            func(_ *lua.LState, r *job.Record) lua.LValue { return detailStr(r, func(d *job.Details) string { return d.StdErr }) },
		"std_in":             func(_ *lua.LState, r *job.Record) lua.LValue { return detailStr(r, func(d *job.Details) string { return d.StdIn }) },
		"std_out":            func(_ *lua.LState, r *job.Record) lua.LValue { return detailStr(r, func(d *job.Details) string { return d.StdOut }) },
		"submit_time": func(_ *lua.LState, r *job.Record) lua.LValue {
			if r.Details == nil {
				return lua.LNil
			}
			return ltime(r.Details.SubmitTime)
		},
		"time_limit":    func(_ *lua.LState, r *job.Record) lua.LValue { return lnump(r.TimeLimit) },
		"time_min":      func(_ *lua.LState, r *job.Record) lua.LValue { return lnump(r.TimeMin) },
		"tres_per_node": func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.TresPerNode) },
		"user_id":       func(_ *lua.LState, r *job.Record) lua.LValue { return lnum(r.UserID) },
		"user_name":     func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.UserName) },
		"wckey":         func(_ *lua.LState, r *job.Record) lua.LValue { return lstr(r.WCKey) },
		"work_dir":      func(_ *lua.LState, r *job.Record) lua.LValue { return detailStr(r, func(d *job.Details) string { return d.WorkDir }) },
	},
}

// PartitionRecordKind is the partition vocabulary visible to scripts as the
// values of part_list.
var PartitionRecordKind = &RecordKind[job.Partition]{
	Name: "partition",
	Fields: map[string]FieldFunc[job.Partition]{
		"allow_accounts":      func(L *lua.LState, p *job.Partition) lua.LValue { return lstrings(L, p.AllowAccounts) },
		"allow_groups":        func(L *lua.LState, p *job.Partition) lua.LValue { return lstrings(L, p.AllowGroups) },
		"allow_qos":           func(L *lua.LState, p *job.Partition) lua.LValue { return lstrings(L, p.AllowQOS) },
		"default_time":        func(_ *lua.LState, p *job.Partition) lua.LValue { return lnump(p.DefaultTime) },
		"deny_accounts":       func(L *lua.LState, p *job.Partition) lua.LValue { return lstrings(L, p.DenyAccounts) },
		"flag_default":        func(_ *lua.LState, p *job.Partition) lua.LValue { return lua.LBool(p.Default) },
		"max_nodes":           func(_ *lua.LState, p *job.Partition) lua.LValue { return lnump(p.MaxNodes) },
		"max_time":            func(_ *lua.LState, p *job.Partition) lua.LValue { return lnump(p.MaxTime) },
		"min_nodes":           func(_ *lua.LState, p *job.Partition) lua.LValue { return lnum(p.MinNodes) },
		"name":                func(_ *lua.LState, p *job.Partition) lua.LValue { return lstr(p.Name) },
		"nodes":               func(_ *lua.LState, p *job.Partition) lua.LValue { return lstr(p.Nodes) },
		"priority_job_factor": func(_ *lua.LState, p *job.Partition) lua.LValue { return lnum(p.PriorityJobFactor) },
		"priority_tier":       func(_ *lua.LState, p *job.Partition) lua.LValue { return lnum(p.PriorityTier) },
		"qos":                 func(_ *lua.LState, p *job.Partition) lua.LValue { return lstr(p.QOS) },
		"total_cpus":          func(_ *lua.LState, p *job.Partition) lua.LValue { return lnum(p.TotalCPUs) },
		"total_nodes":         func(_ *lua.LState, p *job.Partition) lua.LValue { return lnum(p.TotalNodes) },
	},
}

// jobDetails builds the nested details table. Only this field pays for the
// table; reading any other field leaves the details untouched.
func jobDetails(L *lua.LState, r *job.Record) lua.LValue {
	d := r.Details
	if d == nil {
		return lua.LNil
	}
	tbl := L.CreateTable(0, 8)
	L.SetField(tbl, "min_cpus", lnum(d.MinCPUs))
	L.SetField(tbl, "max_cpus", lnump(d.MaxCPUs))
	L.SetField(tbl, "min_nodes", lnum(d.MinNodes))
	L.SetField(tbl, "max_nodes", lnump(d.MaxNodes))
	L.SetField(tbl, "num_tasks", lnump(d.NumTasks))
	L.SetField(tbl, "ntasks_per_node", lnump(d.TasksPerNode))
	L.SetField(tbl, "features", lstr(d.Features))
	L.SetField(tbl, "contiguous", lua.LBool(d.ContiguousReq))
	return tbl
}

func detailStr(r *job.Record, get func(*job.Details) string) lua.LValue {
	if r.Details == nil {
		return lua.LNil
	}
	return lstr(get(r.Details))
}
