package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

// isolate clears ROLLNOTIFY_* variables and points HOME at an empty dir so
// no real config leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	for _, name := range []string{
		"ROLLNOTIFY_ACCESS_TOKEN", "ROLLNOTIFY_READ_TOKEN", "ROLLNOTIFY_ENVIRONMENT",
		"ROLLNOTIFY_ENDPOINT", "ROLLNOTIFY_CODE_VERSION", "ROLLNOTIFY_HOST",
		"ROLLNOTIFY_TIMEOUT", "ROLLNOTIFY_VERBOSE",
	} {
		t.Setenv(name, "")
	}
	home := t.TempDir()
	t.Setenv("HOME", home)
	return home
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetArgs(args)
	cmd.SetErr(&bytes.Buffer{})
	err := cmd.Execute()
	return out.String(), err
}

type fakeAPI struct {
	*httptest.Server
	items   atomic.Int32
	lastRaw atomic.Value
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /item/", func(w http.ResponseWriter, r *http.Request) {
		api.items.Add(1)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		api.lastRaw.Store(body)
		_, _ = w.Write([]byte(`{"err":0,"result":{"id":null,"uuid":"x"}}`))
	})
	mux.HandleFunc("POST /deploy/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "file-token", body["access_token"])
		assert.Equal(t, "staging", body["environment"])
		assert.Equal(t, "deadbeef", body["revision"])
		assert.Equal(t, "ci-bot", body["local_username"])
		_, _ = w.Write([]byte(`{"data":{"deploy_id":77}}`))
	})
	mux.HandleFunc("GET /deploy/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "read-only", r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"err":0,"result":{"id":77,"environment":"staging","revision":"deadbeef"}}`))
	})
	mux.HandleFunc("GET /deploys/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"err":0,"result":{"deploys":[{"id":77,"revision":"deadbeef"}],"page":3}}`))
	})
	api.Server = httptest.NewServer(mux)
	t.Cleanup(api.Close)
	return api
}

func (a *fakeAPI) last() map[string]any {
	v, _ := a.lastRaw.Load().(map[string]any)
	return v
}

func TestReportMessage(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)

	out, err := run(t, "report-message",
		"--endpoint", api.URL+"/",
		"--access-token", "flag-token",
		"--environment", "production",
		"--level", "warning",
		"--custom", "job=nightly",
		"disk", "almost", "full")

	require.NoError(t, err)
	assert.EqualValues(t, 1, api.items.Load())
	assert.Len(t, strings.TrimSpace(out), 32, "stdout should carry the item uuid")

	body := api.last()
	require.NotNil(t, body)
	assert.Equal(t, "flag-token", body["access_token"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "warning", data["level"])
	assert.Equal(t, "production", data["environment"])
	assert.Equal(t, "cli", data["framework"])
	assert.Equal(t, map[string]any{"job": "nightly"}, data["custom"])
	msg := data["body"].(map[string]any)["message"].(map[string]any)
	assert.Equal(t, "disk almost full", msg["body"])
}

func TestReportMessage_TokenFromEnv(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)
	t.Setenv("ROLLNOTIFY_ACCESS_TOKEN", "env-token")
	t.Setenv("ROLLNOTIFY_ENDPOINT", api.URL)

	_, err := run(t, "report-message", "hello")

	require.NoError(t, err)
	assert.Equal(t, "env-token", api.last()["access_token"])
}

func TestReportMessage_FlagBeatsEnv(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)
	t.Setenv("ROLLNOTIFY_ACCESS_TOKEN", "env-token")

	_, err := run(t, "report-message", "--endpoint", api.URL, "--access-token", "flag-token", "hello")

	require.NoError(t, err)
	assert.Equal(t, "flag-token", api.last()["access_token"])
}

func TestReportMessage_MissingToken(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)

	_, err := run(t, "report-message", "--endpoint", api.URL, "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "access-token is required")
	assert.Zero(t, api.items.Load())
}

func TestReportMessage_BadLevel(t *testing.T) {
	isolate(t)

	_, err := run(t, "report-message", "--access-token", "t", "--level", "loud", "hello")

	require.Error(t, err)
}

func TestReportMessage_APIError(t *testing.T) {
	isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"err":1,"message":"invalid access token"}`))
	}))
	t.Cleanup(srv.Close)

	_, err := run(t, "report-message", "--endpoint", srv.URL, "--access-token", "bad", "hello")

	require.Error(t, err)
	assert.True(t, rollnotify.IsKind(err, rollnotify.KindAPI), "got %v", err)
}

func TestInvalidEndpoint(t *testing.T) {
	isolate(t)

	_, err := run(t, "report-message", "--endpoint", "ftp://example.com", "--access-token", "t", "hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "http(s)")
}

func TestDeployCreate_ConfigFile(t *testing.T) {
	home := isolate(t)
	api := newFakeAPI(t)
	t.Setenv("USER", "ci-bot")

	dir := filepath.Join(home, ".rollnotify")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	cfg := "access_token = \"file-token\"\nenvironment = \"staging\"\nendpoint = \"" + api.URL + "\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(cfg), 0o600))

	out, err := run(t, "deploy", "create", "--revision", "deadbeef")

	require.NoError(t, err)
	assert.Equal(t, "77\n", out)
}

func TestDeployCreate_ExplicitConfigPath(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)
	t.Setenv("USER", "")

	path := filepath.Join(t.TempDir(), "custom.toml")
	cfg := "access_token = \"file-token\"\nenvironment = \"staging\"\nendpoint = \"" + api.URL + "\"\n"
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	out, err := run(t, "deploy", "create", "--config", path, "--revision", "deadbeef", "--local-username", "ci-bot")

	require.NoError(t, err)
	assert.Equal(t, "77\n", out)
}

func TestDeployCreate_MissingFields(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)

	_, err := run(t, "deploy", "create", "--endpoint", api.URL, "--access-token", "t")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing 'environment'")
	assert.Contains(t, err.Error(), "Missing 'revision'")
}

func TestDeployGet(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)

	out, err := run(t, "deploy", "get", "77",
		"--endpoint", api.URL, "--access-token", "write", "--read-token", "read-only")

	require.NoError(t, err)
	var d map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	assert.EqualValues(t, 77, d["id"])
	assert.Equal(t, "deadbeef", d["revision"])
}

func TestDeployGet_BadID(t *testing.T) {
	isolate(t)

	_, err := run(t, "deploy", "get", "seventy", "--access-token", "t")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid deploy id")
}

func TestDeployList_ReadTokenFallsBack(t *testing.T) {
	isolate(t)
	var token atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token.Store(r.URL.Query().Get("access_token"))
		_, _ = w.Write([]byte(`{"err":0,"result":{"deploys":[],"page":1}}`))
	}))
	t.Cleanup(srv.Close)

	_, err := run(t, "deploy", "list", "--endpoint", srv.URL, "--access-token", "only-token")

	require.NoError(t, err)
	assert.Equal(t, "only-token", token.Load())
}

func TestDeployList(t *testing.T) {
	isolate(t)
	api := newFakeAPI(t)

	out, err := run(t, "deploy", "list", "--page", "3", "--endpoint", api.URL, "--read-token", "read-only")

	require.NoError(t, err)
	var p struct {
		Deploys []map[string]any `json:"deploys"`
		Page    int              `json:"page"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 3, p.Page)
	require.Len(t, p.Deploys, 1)
}

func TestVersion(t *testing.T) {
	isolate(t)

	out, err := run(t, "--version")

	require.NoError(t, err)
	assert.Contains(t, out, rollnotify.Version)
}
