package xlua

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	lua "github.com/yuin/gopher-lua"
)

type ReloadSuite struct {
	suite.Suite
	dir      string
	path     string
	required []string
}

func (s *ReloadSuite) SetupTest() {
	s.dir = s.T().TempDir()
	s.path = writeScript(s.T(), s.dir, "submit.lua", submitScript, 100)
	s.required = []string{"slurm_job_submit"}
}

func (s *ReloadSuite) load(current *Handle, lastLoad time.Time) Result {
	return LoadScript(current, "job_submit/lua", s.path, s.required, lastLoad)
}

func (s *ReloadSuite) TestFirstLoadThenUnchangedThenFailedEdit() {
	first := s.load(nil, time.Unix(0, 0))
	s.Require().NoError(first.Err)
	s.Require().Equal(Reloaded, first.Outcome)
	s.Require().NotNil(first.Handle)
	s.True(time.Unix(100, 0).Equal(first.ModTime))
	defer func() { s.NoError(first.Handle.Close()) }()
	s.Require().NoError(first.Handle.Activate())

	second := s.load(first.Handle, first.ModTime)
	s.Equal(Unchanged, second.Outcome)
	s.Nil(second.Handle)
	s.NoError(second.Err)

	writeScript(s.T(), s.dir, "submit.lua", `function something_else() end`, 150)
	third := s.load(first.Handle, first.ModTime)
	s.Equal(Failed, third.Outcome)
	s.Nil(third.Handle)
	s.ErrorIs(third.Err, ErrMissingEntryPoint)

	var epErr *EntryPointError
	s.Require().ErrorAs(third.Err, &epErr)
	s.Equal("slurm_job_submit", epErr.Name)
	s.Equal(Absent, epErr.Presence)

	// the first handle still serves calls
	out, err := first.Handle.Call(context.Background(), "slurm_job_submit", 1, lua.LNil, lua.LNil, lua.LNumber(0))
	s.Require().NoError(err)
	s.Equal(lua.LNumber(Success), out[0])
	s.Equal("Active", first.Handle.Status())
}

func (s *ReloadSuite) TestIdempotentUnchanged() {
	first := s.load(nil, time.Time{})
	s.Require().Equal(Reloaded, first.Outcome)
	defer func() { _ = first.Handle.Close() }()

	for range 2 {
		res := s.load(first.Handle, first.ModTime)
		s.Equal(Unchanged, res.Outcome)
		s.Nil(res.Handle)
	}
}

func (s *ReloadSuite) TestNewerScriptReloads() {
	first := s.load(nil, time.Time{})
	s.Require().Equal(Reloaded, first.Outcome)
	defer func() { _ = first.Handle.Close() }()

	writeScript(s.T(), s.dir, "submit.lua", submitScript+"\n-- v2\n", 150)
	next := s.load(first.Handle, first.ModTime)
	s.Require().Equal(Reloaded, next.Outcome)
	defer func() { _ = next.Handle.Close() }()

	s.True(next.ModTime.After(first.ModTime))
	s.NotEqual(first.Handle.ID(), next.Handle.ID())
	s.Equal("Loaded", first.Handle.Status(), "old handle is untouched by the loader")
}

func (s *ReloadSuite) TestSameMtimeEditIsUnchanged() {
	first := s.load(nil, time.Time{})
	s.Require().Equal(Reloaded, first.Outcome)
	defer func() { _ = first.Handle.Close() }()

	writeScript(s.T(), s.dir, "submit.lua", `broken(`, 100)
	res := s.load(first.Handle, first.ModTime)
	s.Equal(Unchanged, res.Outcome)
}

func (s *ReloadSuite) TestNoCurrentHandleAlwaysBuilds() {
	res := s.load(nil, time.Unix(500, 0))
	s.Require().Equal(Reloaded, res.Outcome)
	s.NoError(res.Handle.Close())
}

func (s *ReloadSuite) TestMissingFile() {
	s.Require().NoError(os.Remove(s.path))
	res := s.load(nil, time.Time{})
	s.Equal(Failed, res.Outcome)
	s.ErrorIs(res.Err, ErrFileUnreadable)
}

func (s *ReloadSuite) TestDirectoryPath() {
	res := LoadScript(nil, "job_submit/lua", s.dir, s.required, time.Time{})
	s.Equal(Failed, res.Outcome)
	s.ErrorIs(res.Err, ErrFileUnreadable)
}

func (s *ReloadSuite) TestSyntaxError() {
	writeScript(s.T(), s.dir, "submit.lua", "function slurm_job_submit(\n", 200)
	res := s.load(nil, time.Time{})
	s.Equal(Failed, res.Outcome)
	s.ErrorIs(res.Err, ErrSyntax)
}

func (s *ReloadSuite) TestChunkRuntimeError() {
	writeScript(s.T(), s.dir, "submit.lua", submitScript+"\nerror('refusing to load')\n", 200)
	res := s.load(nil, time.Time{})
	s.Equal(Failed, res.Outcome)
	s.ErrorIs(res.Err, ErrScriptExec)
	s.Contains(res.Err.Error(), "refusing to load")
}

func (s *ReloadSuite) TestWrongTypeEntryPoint() {
	writeScript(s.T(), s.dir, "submit.lua", "slurm_job_submit = 42\n", 200)
	res := s.load(nil, time.Time{})
	s.Equal(Failed, res.Outcome)

	var epErr *EntryPointError
	s.Require().ErrorAs(res.Err, &epErr)
	s.Equal(WrongType, epErr.Presence)
}

func (s *ReloadSuite) TestRegistrationFailure() {
	res := LoadScript(nil, "job_submit/lua", s.path, s.required, time.Time{},
		WithLibrary(Library{Name: "", Funcs: map[string]lua.LGFunction{"f": func(*lua.LState) int { return 0 }}}),
	)
	s.Equal(Failed, res.Outcome)
	s.ErrorIs(res.Err, ErrRegistration)

	res = LoadScript(nil, "job_submit/lua", s.path, s.required, time.Time{},
		WithSetup(func(*lua.LState) error { return errors.New("no site config") }),
	)
	s.Equal(Failed, res.Outcome)
	s.ErrorIs(res.Err, ErrRegistration)
	s.Contains(res.Err.Error(), "no site config")
}

func (s *ReloadSuite) TestHostFunctionsInstalledBeforeScriptRuns() {
	// the chunk calls into the host table at load time
	body := `
local seen = site.ping()
function slurm_job_submit() return seen end
`
	writeScript(s.T(), s.dir, "submit.lua", body, 300)
	res := LoadScript(nil, "job_submit/lua", s.path, s.required, time.Time{},
		WithLibrary(Library{Name: "site", Funcs: map[string]lua.LGFunction{
			"ping": func(L *lua.LState) int { L.Push(lua.LString("pong")); return 1 },
		}}),
	)
	s.Require().Equal(Reloaded, res.Outcome, "%v", res.Err)
	defer func() { _ = res.Handle.Close() }()

	out, err := res.Handle.Call(context.Background(), "slurm_job_submit", 1)
	s.Require().NoError(err)
	s.Equal(lua.LString("pong"), out[0])
}

func TestReloadSuite(t *testing.T) {
	suite.Run(t, new(ReloadSuite))
}

func TestScript_Resolve(t *testing.T) {
	dir := t.TempDir()
	path := writeScript(t, dir, "submit.lua", submitScript, 100)

	setups := 0
	script, err := NewScript("job_submit/lua", path, []string{"slurm_job_submit"},
		WithSetup(func(*lua.LState) error { setups++; return nil }))
	require.NoError(t, err)
	assert.True(t, script.LoadTime().IsZero())

	first := script.Resolve(nil)
	require.Equal(t, Reloaded, first.Outcome)
	defer func() { _ = first.Handle.Close() }()
	assert.True(t, time.Unix(100, 0).Equal(script.LoadTime()))
	assert.Equal(t, 1, setups)

	again := script.Resolve(first.Handle)
	assert.Equal(t, Unchanged, again.Outcome)
	assert.Equal(t, 1, setups, "an unchanged script must not build an interpreter")

	writeScript(t, dir, "submit.lua", "-- empty\n", 150)
	failed := script.Resolve(first.Handle)
	assert.Equal(t, Failed, failed.Outcome)
	assert.True(t, time.Unix(100, 0).Equal(script.LoadTime()), "failed loads do not advance the load time")
}

func TestNewScript_Validation(t *testing.T) {
	_, err := NewScript("", "x.lua", nil)
	require.Error(t, err)

	_, err = NewScript("p", "", nil)
	require.Error(t, err)

	required := []string{"a"}
	s, err := NewScript("p", filepath.Join(t.TempDir(), "x.lua"), required)
	require.NoError(t, err)
	required[0] = "mutated"
	assert.Equal(t, []string{"a"}, s.Required())
	assert.Equal(t, "p", s.PluginID())
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "Failed", Failed.String())
	assert.Equal(t, "Unchanged", Unchanged.String())
	assert.Equal(t, "Reloaded", Reloaded.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
