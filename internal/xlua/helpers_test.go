package xlua

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const submitScript = `
function slurm_job_submit(job_desc, part_list, submit_uid)
	return slurm.SUCCESS
end
`

// writeScript writes body to dir/name and pins its mtime to the given unix second.
func writeScript(t *testing.T, dir, name, body string, mtime int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	ts := time.Unix(mtime, 0)
	require.NoError(t, os.Chtimes(path, ts, ts))
	return path
}

// debugLogger returns a logger that records everything, debug included.
func debugLogger() (*slog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug - 8})
	return slog.New(h), buf
}

// mustLoad builds a handle for body or fails the test.
func mustLoad(t *testing.T, body string, required []string, opts ...Option) *Handle {
	t.Helper()
	path := writeScript(t, t.TempDir(), "script.lua", body, 100)
	res := LoadScript(nil, "test/lua", path, required, time.Time{}, opts...)
	require.NoError(t, res.Err)
	require.Equal(t, Reloaded, res.Outcome)
	t.Cleanup(func() { _ = res.Handle.Close() })
	return res.Handle
}
