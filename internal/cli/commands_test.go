package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/splice/internal/config"
)

const smallRouting = `common: {start: 1, end: 4}
switches: [4, 7]
destinations:
  - {name: Alpha, start: 5, end: 7, analytics_column: 4}
  - {name: Beta Team, sheet: Beta, start: 8, end: 9, analytics_column: 5}
fields: {identity: [1, 2], name: [2, 3], contact: 1}
`

// setupWorkspace writes a config for backend into a temp dir and returns
// the config path and the dir.
func setupWorkspace(t *testing.T, backend string) (string, string) {
	t.Helper()
	for _, env := range []string{"SPLICE_BACKEND", "SPLICE_WORKBOOK", "SPLICE_DB", "SPLICE_ROUTING"} {
		t.Setenv(env, "")
	}

	dir := t.TempDir()
	routingPath := writeFile(t, dir, "routes.yaml", smallRouting)

	cfg := config.DefaultConfig()
	cfg.Backend = backend
	cfg.Routing = routingPath
	cfg.Workbook.Path = filepath.Join(dir, "book.xlsx")
	cfg.Database.Path = filepath.Join(dir, "splice.db")
	cfg.Lock.AttemptTimeout = "1s"
	cfg.Lock.Backoff = "1ms"
	cfg.Lock.MaxBackoff = "10ms"

	cfgPath := filepath.Join(dir, "splice.yaml")
	require.NoError(t, cfg.Save(cfgPath))
	return cfgPath, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func execute(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// decodeData unmarshals the data payload of a JSON response into v.
func decodeData(t *testing.T, out string, v any) {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	require.Equal(t, "ok", resp.Status, out)
	require.NoError(t, json.Unmarshal(resp.Data, v))
}

func TestInitSubmitStatsHistory(t *testing.T) {
	for _, backend := range []string{config.BackendXLSX, config.BackendSQLite} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfgPath, dir := setupWorkspace(t, backend)

			out, err := execute(t, ctx, "init", "-c", cfgPath, "--format", "json")
			require.NoError(t, err, out)
			var initRes InitResult
			decodeData(t, out, &initRes)
			assert.Equal(t, []string{"Alpha", "Beta", "ID Map & Analytics"}, initRes.Sheets)

			a := writeFile(t, dir, "a.json", `["t1","ann@x.org","Ann","Lee","Alpha","a1","a2","No",""]`)
			b := writeFile(t, dir, "b.json", `{"answers": ["t2","ann@x.org","Ann","Lee","Alpha","a1","a2","Beta Team","b1"]}`)
			c := writeFile(t, dir, "c.json", `["t3","bo@x.org","Bo","Tan","No","","","Beta Team","b2"]`)

			out, err = execute(t, ctx, "submit", "-c", cfgPath, "--format", "json", a, b, c)
			require.NoError(t, err, out)
			var submitRes SubmitResults
			decodeData(t, out, &submitRes)
			require.Len(t, submitRes.Results, 3)
			assert.Equal(t, 0, submitRes.Failed)
			assert.True(t, submitRes.Results[0].NewIdentity)
			assert.False(t, submitRes.Results[1].NewIdentity)
			assert.Equal(t, []string{"Alpha", "Beta"}, submitRes.Results[1].Destinations)
			assert.Equal(t, []string{"Beta"}, submitRes.Results[2].Destinations)

			out, err = execute(t, ctx, "stats", "-c", cfgPath, "--format", "json")
			require.NoError(t, err, out)
			var stats StatsResult
			decodeData(t, out, &stats)
			assert.Equal(t, 2, stats.UniqueApplicants)
			assert.Equal(t, []SheetCount{{Sheet: "Alpha", Rows: 1}, {Sheet: "Beta", Rows: 2}}, stats.Sheets)

			out, err = execute(t, ctx, "history", "-c", cfgPath, "--format", "json")
			require.NoError(t, err, out)
			var history HistoryResult
			decodeData(t, out, &history)
			require.Len(t, history.Submissions, 3)
			assert.Equal(t, submitRes.Results[2].Identity, history.Submissions[2].Identity)

			out, err = execute(t, ctx, "history", "-c", cfgPath, "--format", "json", "--identity", submitRes.Results[0].Identity)
			require.NoError(t, err, out)
			decodeData(t, out, &history)
			assert.Len(t, history.Submissions, 2)
		})
	}
}

func TestSubmitReportsFailuresAndContinues(t *testing.T) {
	ctx := context.Background()
	cfgPath, dir := setupWorkspace(t, config.BackendXLSX)

	_, err := execute(t, ctx, "init", "-c", cfgPath)
	require.NoError(t, err)

	short := writeFile(t, dir, "short.json", `["t1","ann@x.org"]`)
	good := writeFile(t, dir, "good.json", `["t1","ann@x.org","Ann","Lee","Alpha","a1","a2","No",""]`)

	out, err := execute(t, ctx, "submit", "-c", cfgPath, short, filepath.Join(dir, "missing.json"), good)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL "+short)
	assert.Contains(t, out, "ok   "+good+" -> Alpha (new applicant)")
	assert.Contains(t, out, "1 submitted, 2 failed")
}

func TestSubmitWithoutInitFails(t *testing.T) {
	ctx := context.Background()
	cfgPath, dir := setupWorkspace(t, config.BackendSQLite)

	a := writeFile(t, dir, "a.json", `["t1","ann@x.org","Ann","Lee","Alpha","a1","a2","No",""]`)
	_, err := execute(t, ctx, "submit", "-c", cfgPath, a)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestHistoryRequiresStore(t *testing.T) {
	cfgPath, _ := setupWorkspace(t, config.BackendMemory)

	out, err := execute(t, context.Background(), "history", "-c", cfgPath, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNoLog)
}

func TestHistoryRejectsMalformedIdentity(t *testing.T) {
	cfgPath, _ := setupWorkspace(t, config.BackendSQLite)

	out, err := execute(t, context.Background(), "history", "-c", cfgPath, "--format", "json", "--identity", "ann@x.org")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeIdentity)
}

func TestRoutesDefaultLayout(t *testing.T) {
	for _, env := range []string{"SPLICE_BACKEND", "SPLICE_WORKBOOK", "SPLICE_DB", "SPLICE_ROUTING"} {
		t.Setenv(env, "")
	}
	cfgPath := filepath.Join(t.TempDir(), "absent.yaml")

	out, err := execute(t, context.Background(), "routes", "-c", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "width        80")
	assert.Contains(t, out, "-> Marketing")

	out, err = execute(t, context.Background(), "routes", "-c", cfgPath, "--format", "json")
	require.NoError(t, err)
	var routes RoutesResult
	decodeData(t, out, &routes)
	assert.Equal(t, 80, routes.Width)
	assert.Len(t, routes.Destinations, 10)
	assert.Equal(t, []int{25, 31, 39, 47, 55, 58, 62, 68, 73, 79}, routes.Switches)
}

func TestRoutesInvalidTable(t *testing.T) {
	cfgPath, dir := setupWorkspace(t, config.BackendMemory)
	writeFile(t, dir, "routes.yaml", `common: {start: 1, end: 6}
switches: [4]
destinations:
  - {name: Alpha, start: 5, end: 7}
`)

	out, err := execute(t, context.Background(), "routes", "-c", cfgPath)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeRouting+"]")
}

func TestWatchProcessesDroppedFiles(t *testing.T) {
	cfgPath, dir := setupWorkspace(t, config.BackendMemory)
	inbox := filepath.Join(dir, "inbox")
	require.NoError(t, os.Mkdir(inbox, 0755))
	writeFile(t, inbox, "a.json", `["t1","ann@x.org","Ann","Lee","Alpha","a1","a2","No",""]`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		_, err := execute(t, ctx, "watch", "-c", cfgPath, inbox)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(inbox, "done", "a.json"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	writeFile(t, inbox, "bad.json", `not json`)
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(inbox, "failed", "bad.json"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
