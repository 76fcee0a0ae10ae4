package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/atlanticdynamic/luagate/internal/testutil"
	"github.com/stretchr/testify/require"
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
	job_desc.comment = "checked by " .. submit_uid
	return slurm.SUCCESS
end

function slurm_job_modify(job_desc, job_rec, part_list, modify_uid)
	return slurm.SUCCESS
end
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func testLogger() (*slog.Logger, *testutil.ThreadSafeBuffer) {
	buf := &testutil.ThreadSafeBuffer{}
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})), buf
}
