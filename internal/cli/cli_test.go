package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittowopi/pkg/config"
)

const testSecret = "cli-test-secret-0123456789abcdef"

// writeTestConfig writes a config backed by BadgerDB and the filesystem so
// separate commands see the same documents.
func writeTestConfig(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	yaml := fmt.Sprintf(`
logging:
  level: ERROR
content:
  type: filesystem
  filesystem:
    path: %q
metadata:
  type: badger
  badger:
    db_path: %q
auth:
  secret: %q
adapters:
  wopi:
    enabled: true
    port: %d
`, filepath.Join(dir, "content"), filepath.Join(dir, "db"), testSecret, port)

	require.NoError(t, os.WriteFile(path, []byte(yaml), 0600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd := NewRootCommand(BuildInfo{Version: "1.2.3", Commit: "abc123", Date: "2026-01-01"})
	cmd.SetOut(buf)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dittowopi 1.2.3 (commit abc123")

	out, err = execute(t, "version", "--format", "json")
	require.NoError(t, err)
	var v map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "1.2.3", v["version"])
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "version", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInitCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dittowopi.yaml")

	out, err := execute(t, "init", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Auth.Secret)

	_, err = execute(t, "init", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "init", "--config", path, "--force")
	require.NoError(t, err)

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	assert.NotEqual(t, cfg.Auth.Secret, reloaded.Auth.Secret, "force regenerates the secret")
}

func TestFileAddAndList(t *testing.T) {
	cfgPath := writeTestConfig(t, 8080)
	doc := filepath.Join(t.TempDir(), "Budget.xlsx")
	require.NoError(t, os.WriteFile(doc, []byte("spreadsheet"), 0644))

	out, err := execute(t, "file", "add", doc, "--id", "Q3-Budget", "--owner", "alice", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Added Budget.xlsx as q3-budget (11 bytes)")

	_, err = execute(t, "file", "add", doc, "--id", "q3-budget", "--config", cfgPath)
	require.Error(t, err, "ids are unique regardless of case")

	out, err = execute(t, "file", "add", doc, "--name", "Copy.xlsx", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)
	var added FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &added))
	assert.Len(t, added.ID, 36, "random UUID id")
	assert.Equal(t, "anonymous", added.Owner)

	out, err = execute(t, "file", "list", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)
	var files []FileInfo
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	require.Len(t, files, 2)

	byID := map[string]FileInfo{}
	for _, f := range files {
		byID[f.ID] = f
	}
	assert.Equal(t, "Budget.xlsx", byID["q3-budget"].Name)
	assert.Equal(t, int64(11), byID["q3-budget"].Size)
	assert.Equal(t, "alice", byID["q3-budget"].Owner)
	assert.False(t, byID["q3-budget"].Locked)

	out, err = execute(t, "file", "list", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "q3-budget")
}

func TestFileAddMissingPath(t *testing.T) {
	cfgPath := writeTestConfig(t, 8080)

	_, err := execute(t, "file", "add", filepath.Join(t.TempDir(), "missing.docx"), "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read")
}

func TestTokenCommand(t *testing.T) {
	cfgPath := writeTestConfig(t, 8080)

	out, err := execute(t, "token", "Doc-1", "--user", "bob", "--host", "wopi.example.com", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)

	var info TokenInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "doc-1", info.FileID)
	assert.Equal(t, "https://wopi.example.com/wopi/files/doc-1", info.WOPISrc)
	assert.Greater(t, info.AccessTokenTTL, time.Now().UnixMilli())

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	issuer, err := config.CreateIssuer(cfg.Auth)
	require.NoError(t, err)

	claims, err := issuer.Validate(info.AccessToken, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "bob", claims.Subject)

	_, err = issuer.Validate(info.AccessToken, "doc-2")
	assert.Error(t, err, "tokens are bound to one file")

	out, err = execute(t, "token", "doc-1", "--host", "wopi.example.com", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "access_token=")
	assert.Contains(t, out, "WOPISrc=https%3A%2F%2Fwopi.example.com%2Fwopi%2Ffiles%2Fdoc-1")
}

func TestBuildAppServesRegisteredFile(t *testing.T) {
	cfgPath := writeTestConfig(t, 8080)
	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	ctx := context.Background()
	doc := filepath.Join(t.TempDir(), "Report.docx")
	require.NoError(t, os.WriteFile(doc, []byte("hello wopi"), 0644))
	_, err = runFileAdd(ctx, cfg, doc, &fileAddOptions{id: "report"})
	require.NoError(t, err)

	token, err := runToken(cfg, "report", &tokenOptions{user: "carol"})
	require.NoError(t, err)

	a, err := buildApp(ctx, cfg)
	require.NoError(t, err)
	defer a.Close()

	adapters := a.server.Adapters()
	require.Len(t, adapters, 1)
	served, ok := adapters[0].(interface{ Handler() http.Handler })
	require.True(t, ok)
	h := served.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wopi/files/report?access_token="+token.AccessToken, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var info map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "Report.docx", info["BaseFileName"])
	assert.Equal(t, "carol", info["UserId"])
	assert.EqualValues(t, 10, info["Size"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wopi/files/report/contents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello wopi", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRunServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	cfg, err := config.Load(writeTestConfig(t, port))
	require.NoError(t, err)
	cfg.Logging.Output = "stderr"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, cfg) }()

	healthURL := fmt.Sprintf("http://127.0.0.1:%d/healthz", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(healthURL)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestGCCommand(t *testing.T) {
	cfgPath := writeTestConfig(t, 8080)
	contentDir := filepath.Join(filepath.Dir(cfgPath), "content")

	doc := filepath.Join(t.TempDir(), "Notes.docx")
	require.NoError(t, os.WriteFile(doc, []byte("notes"), 0644))
	_, err := execute(t, "file", "add", doc, "--id", "notes", "--config", cfgPath)
	require.NoError(t, err)

	orphan := filepath.Join(contentDir, "stale")
	require.NoError(t, os.WriteFile(orphan, []byte("left behind"), 0644))

	out, err := execute(t, "gc", "--dry-run", "--config", cfgPath, "--format", "json")
	require.NoError(t, err)
	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.EqualValues(t, 1, stats["orphaned"])
	assert.EqualValues(t, 0, stats["deleted"])
	assert.FileExists(t, orphan)

	out, err = execute(t, "gc", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "deleted=1")
	assert.NoFileExists(t, orphan)
	assert.FileExists(t, filepath.Join(contentDir, "notes"))
}
