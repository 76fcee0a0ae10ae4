package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/atlanticdynamic/luagate/internal/job"
	"github.com/atlanticdynamic/luagate/internal/plugin/jobsubmit"
	"github.com/atlanticdynamic/luagate/internal/xlua"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobFile = `
submit_uid = 1000

[job]
name = "sim"
account = "physics"
user_id = 1000
time_limit = 60

[[partitions]]
name = "debug"
default_time = 30
`

func TestLoadJobFixture(t *testing.T) {
	dir := t.TempDir()

	fx, err := loadJobFixture(writeFile(t, dir, "job.toml", jobFile))
	require.NoError(t, err)
	require.NotNil(t, fx.SubmitUID)
	assert.Equal(t, uint32(1000), *fx.SubmitUID)
	assert.Equal(t, "sim", fx.Job.Name)
	require.NotNil(t, fx.Job.TimeLimit)
	assert.Equal(t, uint32(60), *fx.Job.TimeLimit)
	require.Len(t, fx.Partitions, 1)
	assert.Equal(t, "debug", fx.Partitions[0].Name)

	_, err = loadJobFixture(writeFile(t, dir, "nojob.toml", `submit_uid = 1`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no [job] table")

	_, err = loadJobFixture(writeFile(t, dir, "bad.toml", `[job`))
	require.Error(t, err)
}

func TestSubmitOnce(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "job_submit.lua", policyScript)
	logger, _ := testLogger()
	parts := []*job.Partition{{Name: "debug"}}

	d, err := submitOnce(t.Context(), script, &job.Descriptor{Account: "physics"}, parts, 42, logger)
	require.NoError(t, err)
	assert.True(t, d.Accepted)
	assert.Equal(t, "debug", d.Descriptor.Partition)
	assert.Equal(t, "checked by 42", d.Descriptor.Comment)

	d, err = submitOnce(t.Context(), script, &job.Descriptor{}, parts, 42, logger)
	require.NoError(t, err)
	assert.False(t, d.Accepted)
	assert.Equal(t, "account required", d.UserMessage)

	_, err = submitOnce(t.Context(), writeFile(t, dir, "bad.lua", `x = `), &job.Descriptor{}, parts, 0, logger)
	require.ErrorIs(t, err, xlua.ErrSyntax)
}

func TestRenderDecision(t *testing.T) {
	limit := uint32(30)
	out := renderDecision(jobsubmit.Decision{
		Accepted:   true,
		Descriptor: &job.Descriptor{Name: "sim", Account: "physics", TimeLimit: &limit},
	})
	assert.Contains(t, out, "Accepted")
	assert.Contains(t, out, "Code: 0")
	assert.Contains(t, out, "Account: physics")
	assert.Contains(t, out, "Time Limit: 30")
	assert.NotContains(t, out, "Partition:")

	out = renderDecision(jobsubmit.Decision{Code: 2045, UserMessage: "account required"})
	assert.Contains(t, out, "Rejected")
	assert.Contains(t, out, "Message: account required")
}

func TestSubmitCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	script := writeFile(t, dir, "job_submit.lua", policyScript)
	cfgPath := writeFile(t, dir, "luagate.toml", "[logging]\nlevel = \"error\"\n[job_submit]\nscript = \""+script+"\"\n")
	jobPath := writeFile(t, dir, "job.toml", jobFile)

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	require.NoError(t, app.Run(t.Context(), []string{
		"luagate", "submit", "--config", cfgPath, "--job", jobPath, "--uid", "7", "--json",
	}))

	var d jobsubmit.Decision
	require.NoError(t, json.Unmarshal(out.Bytes(), &d))
	assert.True(t, d.Accepted)
	assert.Equal(t, "checked by 7", d.Descriptor.Comment)
}
