// Package job holds the host-side records that the resource manager owns and
// selectively exposes to site scripts: live job records, submit/modify
// descriptors, and partitions.
package job

import (
	"fmt"
	"time"
)

// State is the scheduler-side state of a job record.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateSuspended State = "SUSPENDED"
	StateComplete  State = "COMPLETED"
	StateCancelled State = "CANCELLED"
	StateFailed    State = "FAILED"
)

// Details carries the resource request of a job record.
type Details struct {
	MinCPUs       uint32
	MaxCPUs       *uint32
	MinNodes      uint32
	MaxNodes      *uint32
	NumTasks      *uint32
	TasksPerNode  *uint16
	Features      string
	WorkDir       string
	StdIn         string
	StdOut        string
	StdErr        string
	SubmitTime    time.Time
	BeginTime     time.Time
	RequeueCount  uint16
	ContiguousReq bool
}

// Record is a job known to the controller. Optional numeric values are
// pointers; nil means the value was never set.
type Record struct {
	JobID        uint32
	ArrayJobID   uint32
	ArrayTaskID  *uint32
	Name         string
	Account      string
	AdminComment string
	Comment      string
	Partition    string
	QOS          string
	WCKey        string
	Licenses     string
	Gres         string
	TresPerNode  string
	ResvName     string
	BatchHost    string
	Nodes        string
	ReqSwitch    *uint32
	State        State
	UserID       uint32
	UserName     string
	GroupID      uint32
	Priority     *uint32
	Nice         *int32
	TimeLimit    *uint32
	TimeMin      *uint32
	ExitCode     *int32
	DerivedEC    *int32
	RestartCount uint16
	Reboot       bool
	StartTime    time.Time
	EndTime      time.Time
	SpankEnv     []string
	Details      *Details
}

// String returns a short identification of the job record.
func (r *Record) String() string {
	if r == nil {
		return "Job(nil)"
	}
	if r.ArrayTaskID != nil {
		return fmt.Sprintf("Job(%d_%d, user=%d, partition=%s)", r.ArrayJobID, *r.ArrayTaskID, r.UserID, r.Partition)
	}
	return fmt.Sprintf("Job(%d, user=%d, partition=%s)", r.JobID, r.UserID, r.Partition)
}

// Descriptor is a job submission or modification request. Unlike Record, a
// Descriptor belongs to the request and may be rewritten by site policy.
type Descriptor struct {
	Name         string   `toml:"name"          json:"name,omitempty"`
	Account      string   `toml:"account"       json:"account,omitempty"`
	AdminComment string   `toml:"admin_comment" json:"admin_comment,omitempty"`
	Comment      string   `toml:"comment"       json:"comment,omitempty"`
	Partition    string   `toml:"partition"     json:"partition,omitempty"`
	QOS          string   `toml:"qos"           json:"qos,omitempty"`
	WCKey        string   `toml:"wckey"         json:"wckey,omitempty"`
	Licenses     string   `toml:"licenses"      json:"licenses,omitempty"`
	Features     string   `toml:"features"      json:"features,omitempty"`
	WorkDir      string   `toml:"work_dir"      json:"work_dir,omitempty"`
	Script       string   `toml:"script"        json:"script,omitempty"`
	UserID       uint32   `toml:"user_id"       json:"user_id"`
	GroupID      uint32   `toml:"group_id"      json:"group_id"`
	MinNodes     *uint32  `toml:"min_nodes"     json:"min_nodes,omitempty"`
	MaxNodes     *uint32  `toml:"max_nodes"     json:"max_nodes,omitempty"`
	MinCPUs      *uint32  `toml:"min_cpus"      json:"min_cpus,omitempty"`
	NumTasks     *uint32  `toml:"num_tasks"     json:"num_tasks,omitempty"`
	TimeLimit    *uint32  `toml:"time_limit"    json:"time_limit,omitempty"`
	TimeMin      *uint32  `toml:"time_min"      json:"time_min,omitempty"`
	Priority     *uint32  `toml:"priority"      json:"priority,omitempty"`
	Nice         *int32   `toml:"nice"          json:"nice,omitempty"`
	Environment  []string `toml:"environment"   json:"environment,omitempty"`
}

// Clone returns a deep copy of the descriptor.
func (d *Descriptor) Clone() *Descriptor {
	if d == nil {
		return nil
	}
	c := *d
	c.MinNodes = clonePtr(d.MinNodes)
	c.MaxNodes = clonePtr(d.MaxNodes)
	c.MinCPUs = clonePtr(d.MinCPUs)
	c.NumTasks = clonePtr(d.NumTasks)
	c.TimeLimit = clonePtr(d.TimeLimit)
	c.TimeMin = clonePtr(d.TimeMin)
	c.Priority = clonePtr(d.Priority)
	c.Nice = clonePtr(d.Nice)
	if d.Environment != nil {
		c.Environment = append([]string(nil), d.Environment...)
	}
	return &c
}

// String returns a short identification of the request.
func (d *Descriptor) String() string {
	if d == nil {
		return "Descriptor(nil)"
	}
	return fmt.Sprintf("Descriptor(name=%q, user=%d, partition=%s)", d.Name, d.UserID, d.Partition)
}

// Partition is a scheduler partition as seen by site policy.
type Partition struct {
	Name              string   `toml:"name" json:"name"`
	Nodes             string   `toml:"nodes" json:"nodes,omitempty"`
	TotalNodes        uint32   `toml:"total_nodes" json:"total_nodes,omitempty"`
	TotalCPUs         uint32   `toml:"total_cpus" json:"total_cpus,omitempty"`
	MaxTime           *uint32  `toml:"max_time" json:"max_time,omitempty"`
	DefaultTime       *uint32  `toml:"default_time" json:"default_time,omitempty"`
	MaxNodes          *uint32  `toml:"max_nodes" json:"max_nodes,omitempty"`
	MinNodes          uint32   `toml:"min_nodes" json:"min_nodes,omitempty"`
	PriorityTier      uint16   `toml:"priority_tier" json:"priority_tier,omitempty"`
	PriorityJobFactor uint16   `toml:"priority_job_factor" json:"priority_job_factor,omitempty"`
	Default           bool     `toml:"default" json:"default,omitempty"`
	AllowAccounts     []string `toml:"allow_accounts" json:"allow_accounts,omitempty"`
	AllowGroups       []string `toml:"allow_groups" json:"allow_groups,omitempty"`
	AllowQOS          []string `toml:"allow_qos" json:"allow_qos,omitempty"`
	DenyAccounts      []string `toml:"deny_accounts" json:"deny_accounts,omitempty"`
	QOS               string   `toml:"qos" json:"qos,omitempty"`
}

// String returns the partition name.
func (p *Partition) String() string {
	if p == nil {
		return "Partition(nil)"
	}
	return fmt.Sprintf("Partition(%s)", p.Name)
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
