package jobsubmit

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/atlanticdynamic/luagate/internal/job"
	"github.com/atlanticdynamic/luagate/internal/xlua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

const policyScript = `
function slurm_job_submit(job_desc, part_list, submit_uid)
	if job_desc.account == nil then
		slurm.log_user("account required")
		return slurm.ESLURM_INVALID_ACCOUNT
	end
	if job_desc.partition == nil then
		job_desc.partition = "debug"
	end
	local part = part_list[job_desc.partition]
	if part == nil then
		slurm.log_user("no partition %s", job_desc.partition)
		return slurm.ESLURM_INVALID_PARTITION_NAME
	end
	if job_desc.time_limit == nil then
		job_desc.time_limit = part.default_time or 60
	end
	job_desc.comment = "uid=" .. submit_uid
	return slurm.SUCCESS
end

function slurm_job_modify(job_desc, job_rec, part_list, modify_uid)
	if job_rec.job_state ~= "PENDING" and job_desc.partition ~= nil then
		slurm.log_user("job %d is %s", job_rec.job_id, job_rec.job_state)
		return slurm.ESLURM_ACCESS_DENIED
	end
	return slurm.SUCCESS
end
`

const acceptAllScript = `
function slurm_job_submit(job_desc, part_list, submit_uid)
	job_desc.comment = "v2"
	return slurm.SUCCESS
end
function slurm_job_modify() return slurm.SUCCESS end
`

func writeScript(t *testing.T, path, body string, mtime int64) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	ts := time.Unix(mtime, 0)
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func newTestPlugin(t *testing.T, body string) (*Plugin, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "job_submit.lua")
	writeScript(t, path, body, 100)

	p, err := New(path)
	require.NoError(t, err)
	require.NoError(t, p.Init(t.Context()))
	t.Cleanup(func() { _ = p.Close() })
	return p, path
}

func u32(v uint32) *uint32 { return &v }

func testPartitions() []*job.Partition {
	return []*job.Partition{
		{Name: "debug", DefaultTime: u32(30), TotalNodes: 4},
		{Name: "gpu", MaxTime: u32(1440)},
	}
}

func TestNew(t *testing.T) {
	_, err := New("")
	require.ErrorIs(t, err, ErrJobSubmit)

	p, err := New("/etc/slurm/job_submit.lua")
	require.NoError(t, err)
	assert.Equal(t, PluginID, p.String())
	assert.Equal(t, "/etc/slurm/job_submit.lua", p.ScriptPath())
	assert.Nil(t, p.Active())
}

func TestInit_Failures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		p, err := New(filepath.Join(t.TempDir(), "nope.lua"))
		require.NoError(t, err)
		require.ErrorIs(t, p.Init(t.Context()), xlua.ErrFileUnreadable)
		assert.Nil(t, p.Active())
	})

	t.Run("modify entry point missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "job_submit.lua")
		writeScript(t, path, `function slurm_job_submit() return 0 end`, 100)
		p, err := New(path)
		require.NoError(t, err)

		err = p.Init(t.Context())
		var epErr *xlua.EntryPointError
		require.ErrorAs(t, err, &epErr)
		assert.Equal(t, "slurm_job_modify", epErr.Name)

		logs := p.LoadLogs()
		require.NotEmpty(t, logs)
		assert.Equal(t, "Initial script load failed", logs[len(logs)-1].Message)
	})
}

func TestSubmit(t *testing.T) {
	p, _ := newTestPlugin(t, policyScript)
	ctx := t.Context()

	t.Run("accepts and rewrites descriptor", func(t *testing.T) {
		desc := &job.Descriptor{Name: "sim", Account: "physics", UserID: 1000}
		d, err := p.Submit(ctx, desc, testPartitions(), 1000)
		require.NoError(t, err)

		assert.True(t, d.Accepted)
		assert.Equal(t, xlua.Success, d.Code)
		assert.Empty(t, d.UserMessage)
		require.NotNil(t, d.Descriptor)
		assert.Equal(t, "debug", d.Descriptor.Partition)
		require.NotNil(t, d.Descriptor.TimeLimit)
		assert.Equal(t, uint32(30), *d.Descriptor.TimeLimit)
		assert.Equal(t, "uid=1000", d.Descriptor.Comment)
		assert.Equal(t, "sim", d.Descriptor.Name)

		assert.Empty(t, desc.Partition, "caller's descriptor is not modified")
		assert.Nil(t, desc.TimeLimit)
	})

	t.Run("rejects with user message", func(t *testing.T) {
		d, err := p.Submit(ctx, &job.Descriptor{Name: "sim"}, testPartitions(), 1000)
		require.NoError(t, err)
		assert.False(t, d.Accepted)
		assert.Equal(t, 2045, d.Code)
		assert.Equal(t, "account required", d.UserMessage)
	})

	t.Run("unknown partition", func(t *testing.T) {
		desc := &job.Descriptor{Account: "physics", Partition: "bigmem"}
		d, err := p.Submit(ctx, desc, testPartitions(), 1000)
		require.NoError(t, err)
		assert.Equal(t, 2000, d.Code)
		assert.Equal(t, "no partition bigmem", d.UserMessage)
	})

	t.Run("user messages do not leak between calls", func(t *testing.T) {
		_, err := p.Submit(ctx, &job.Descriptor{}, nil, 1)
		require.NoError(t, err)
		d, err := p.Submit(ctx, &job.Descriptor{Account: "a"}, testPartitions(), 1)
		require.NoError(t, err)
		assert.Empty(t, d.UserMessage)
	})

	t.Run("nil descriptor", func(t *testing.T) {
		d, err := p.Submit(ctx, nil, nil, 0)
		require.ErrorIs(t, err, ErrNilDescriptor)
		assert.Equal(t, xlua.Error, d.Code)
	})
}

func TestModify(t *testing.T) {
	p, _ := newTestPlugin(t, policyScript)
	ctx := t.Context()

	running := &job.Record{JobID: 7, State: job.StateRunning, Partition: "debug"}
	pending := &job.Record{JobID: 8, State: job.StatePending, Partition: "debug"}

	d, err := p.Modify(ctx, &job.Descriptor{Partition: "gpu"}, running, testPartitions(), 0)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, 2002, d.Code)
	assert.Equal(t, "job 7 is RUNNING", d.UserMessage)

	d, err = p.Modify(ctx, &job.Descriptor{Partition: "gpu"}, pending, testPartitions(), 0)
	require.NoError(t, err)
	assert.True(t, d.Accepted)

	_, err = p.Modify(ctx, &job.Descriptor{}, nil, nil, 0)
	require.ErrorIs(t, err, ErrNilRecord)
}

func TestSubmit_ScriptErrors(t *testing.T) {
	body := `
function slurm_job_submit(job_desc, part_list, submit_uid)
	if job_desc.name == "crash" then
		error("policy bug")
	end
	if job_desc.name == "string" then
		return "yes"
	end
	return slurm.SUCCESS
end
function slurm_job_modify() return slurm.SUCCESS end
`
	p, _ := newTestPlugin(t, body)
	ctx := t.Context()

	d, err := p.Submit(ctx, &job.Descriptor{Name: "crash"}, nil, 0)
	require.ErrorIs(t, err, xlua.ErrCall)
	assert.False(t, d.Accepted)
	assert.Equal(t, xlua.Error, d.Code)

	d, err = p.Submit(ctx, &job.Descriptor{Name: "string"}, nil, 0)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, xlua.Error, d.Code)

	d, err = p.Submit(ctx, &job.Descriptor{Name: "ok"}, nil, 0)
	require.NoError(t, err)
	assert.True(t, d.Accepted, "a failed call leaves the handle usable")
}

func TestSubmit_HotReload(t *testing.T) {
	p, path := newTestPlugin(t, policyScript)
	ctx := t.Context()
	first := p.Active()
	require.NotNil(t, first)
	assert.Equal(t, "Active", first.Status())

	writeScript(t, path, acceptAllScript, 200)
	d, err := p.Submit(ctx, &job.Descriptor{}, nil, 0)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, "v2", d.Descriptor.Comment)

	second := p.Active()
	assert.NotEqual(t, first.ID(), second.ID())
	assert.Equal(t, "Destroyed", first.Status())
	assert.Equal(t, "Active", second.Status())

	// a broken edit keeps the v2 script serving
	writeScript(t, path, `function slurm_job_submit(`, 300)
	d, err = p.Submit(ctx, &job.Descriptor{}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "v2", d.Descriptor.Comment)
	assert.Equal(t, second.ID(), p.Active().ID())

	var messages []string
	for _, rec := range p.LoadLogs() {
		messages = append(messages, rec.Message)
	}
	assert.Contains(t, messages, "Script loaded")
	assert.Contains(t, messages, "Script reload failed, keeping previous script")
}

func TestSubmit_Concurrent(t *testing.T) {
	p, _ := newTestPlugin(t, policyScript)
	ctx := t.Context()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			desc := &job.Descriptor{Account: "physics"}
			if i%2 == 1 {
				desc.Account = ""
			}
			d, err := p.Submit(ctx, desc, testPartitions(), uint32(i))
			assert.NoError(t, err)
			assert.Equal(t, i%2 == 0, d.Accepted)
			if i%2 == 1 {
				assert.Equal(t, "account required", d.UserMessage)
			}
		}()
	}
	wg.Wait()
}

func TestSubmit_BeforeInitLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_submit.lua")
	writeScript(t, path, acceptAllScript, 100)
	p, err := New(path)
	require.NoError(t, err)
	defer func() { _ = p.Close() }()

	d, err := p.Submit(context.Background(), &job.Descriptor{}, nil, 0)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.NotNil(t, p.Active())
}

func TestWithLibrary(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_submit.lua")
	writeScript(t, path, `
function slurm_job_submit(job_desc)
	job_desc.account = site.default_account()
	return slurm.SUCCESS
end
function slurm_job_modify() return slurm.SUCCESS end
`, 100)

	p, err := New(path, WithLibrary(xlua.Library{
		Name: "site",
		Funcs: map[string]lua.LGFunction{
			"default_account": func(L *lua.LState) int {
				L.Push(lua.LString("general"))
				return 1
			},
		},
	}))
	require.NoError(t, err)
	require.NoError(t, p.Init(t.Context()))
	defer func() { _ = p.Close() }()

	d, err := p.Submit(t.Context(), &job.Descriptor{}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, "general", d.Descriptor.Account)
}

func TestClose(t *testing.T) {
	p, _ := newTestPlugin(t, policyScript)
	h := p.Active()
	require.NoError(t, p.Close())
	assert.Nil(t, p.Active())
	assert.Equal(t, "Destroyed", h.Status())
	require.NoError(t, p.Close())
}

func TestPlayLoadLogs(t *testing.T) {
	p, _ := newTestPlugin(t, policyScript)

	var buf bytes.Buffer
	require.NoError(t, p.PlayLoadLogs(slog.NewTextHandler(&buf, nil)))
	assert.Contains(t, buf.String(), "Script loaded")
}

func TestInit_LogsLoadOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job_submit.lua")
	writeScript(t, path, policyScript, 100)

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	p, err := New(path, WithLogger(logger))
	require.NoError(t, err)
	require.NoError(t, p.Init(t.Context()))
	t.Cleanup(func() { _ = p.Close() })

	out := buf.String()
	assert.Equal(t, 1, strings.Count(out, `msg="Script loaded"`), out)
	assert.Contains(t, out, `msg="Script validated"`)
}
