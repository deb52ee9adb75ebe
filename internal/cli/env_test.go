package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/store"
	"github.com/remp2020/crm-segment-module/internal/testutil"
)

const activeTree = `{"version":"1","nodes":[{"type":"criteria","key":"active","negation":false,"values":{"active":true}}]}`

const inactiveImport = `groups:
  - {name: Imported, code: imported, sorting: 100}
segments:
  - code: inactive
    name: Inactive users
    group: imported
    table: users
    fields: users.id,users.email
    query: SELECT %fields% FROM %table% WHERE %where% AND users.active = 0 GROUP BY %table%.id
`

// cliEnv is a config file pointing at a fresh segment store and a seeded
// users target database.
type cliEnv struct {
	dir    string
	config string
	ids    map[string]int64
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	targetPath := filepath.Join(dir, "target.db")
	storePath := filepath.Join(dir, "segments.db")

	db := testutil.UsersDBAt(t, targetPath)
	ids := testutil.SeedUsers(t, db, testutil.StandardUsers()...)

	st, err := store.Open(storePath)
	require.NoError(t, err)
	_, err = st.AddGroup(context.Background(), model.Group{Name: "Default group", Code: "default-group", Sorting: 1000})
	require.NoError(t, err)
	require.NoError(t, st.Close())

	configPath := filepath.Join(dir, "segments.yaml")
	cfg := fmt.Sprintf(`database:
  driver: sqlite3
  url: %s
store:
  path: %s
forbidden_tables: [secrets]
page_size: 2
`, targetPath, storePath)
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))

	return &cliEnv{dir: dir, config: configPath, ids: ids}
}

// run executes the CLI with the env's config and returns stdout.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := cmd.Execute()
	return buf.String(), err
}

// mustRun is run that fails the test on error.
func (e *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, out)
	return out
}

// writeFile writes content under the env directory and returns its path.
func (e *cliEnv) writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// importInactive imports the raw "inactive" segment.
func (e *cliEnv) importInactive(t *testing.T) {
	t.Helper()
	e.mustRun(t, "import", e.writeFile(t, "inactive.yaml", inactiveImport))
}

// decodeJSON parses a single JSON response.
func decodeJSON(t *testing.T, out string) CLIResponse {
	t.Helper()
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	return resp
}

// dataMap returns the response payload as a map.
func dataMap(t *testing.T, resp CLIResponse) map[string]interface{} {
	t.Helper()
	data, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return data
}

func lines(out string) []string {
	return strings.Split(strings.TrimRight(out, "\n"), "\n")
}
