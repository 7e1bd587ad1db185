package deploy

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/strongdm/go-rollnotify/pkg/rollnotify"
)

// fakeDeployAPI serves the deploy endpoints with canned data.
func fakeDeployAPI(t *testing.T, readToken string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	mux := http.NewServeMux()

	mux.HandleFunc("POST /deploy/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "write-token", r.Header.Get(rollnotify.AccessTokenHeader))
		assert.Equal(t, "write-token", body["access_token"])
		assert.Equal(t, "production", body["environment"])
		assert.Equal(t, "abc123", body["revision"])
		assert.Equal(t, "alice", body["local_username"])
		assert.NotContains(t, body, "comment")
		_, _ = w.Write([]byte(`{"data":{"deploy_id":9001}}`))
	})
	mux.HandleFunc("GET /deploy/{id}", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("access_token") != readToken {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"err":1,"message":"insufficient privileges"}`))
			return
		}
		if r.PathValue("id") != "9001" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"err":1,"message":"Deploy not found"}`))
			return
		}
		_, _ = w.Write([]byte(`{"err":0,"result":{"id":9001,"environment":"production","revision":"abc123","start_time":1700000000}}`))
	})
	mux.HandleFunc("GET /deploys/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("access_token") != readToken {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"err":1,"message":"insufficient privileges"}`))
			return
		}
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		_, _ = w.Write([]byte(`{"err":0,"result":{"deploys":[{"id":2,"revision":"b"},{"id":1,"revision":"a"}],"page":2}}`))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestCreateDeploy_Validation(t *testing.T) {
	srv, calls := fakeDeployAPI(t, "read-token")
	client := New(srv.URL, WithLogger(zaptest.NewLogger(t)))

	_, err := client.CreateDeploy(context.Background(), "write-token", Deploy{})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "Missing 'environment'")
	assert.Contains(t, err.Error(), "Missing 'revision'")
	assert.ErrorIs(t, err, ErrMissingEnvironment)
	assert.ErrorIs(t, err, ErrMissingRevision)
	assert.True(t, rollnotify.IsKind(err, rollnotify.KindValidation))
	assert.Zero(t, calls.Load(), "invalid deploys must not reach the API")
}

func TestDeploy_ValidatePartial(t *testing.T) {
	err := Deploy{Environment: "staging"}.Validate()

	assert.ErrorIs(t, err, ErrMissingRevision)
	assert.NotErrorIs(t, err, ErrMissingEnvironment)
	assert.NoError(t, Deploy{Environment: "staging", Revision: "r1"}.Validate())
}

func TestCreateDeploy(t *testing.T) {
	srv, _ := fakeDeployAPI(t, "read-token")
	client := New(srv.URL + "/")

	id, err := client.CreateDeploy(context.Background(), "write-token", Deploy{
		Environment:   "production",
		Revision:      "abc123",
		LocalUsername: "alice",
	})

	require.NoError(t, err)
	assert.Equal(t, int64(9001), id)
}

func TestGetDeploy(t *testing.T) {
	srv, _ := fakeDeployAPI(t, "read-token")
	client := New(srv.URL)

	d, err := client.GetDeploy(context.Background(), "read-token", 9001)

	require.NoError(t, err)
	assert.Equal(t, int64(9001), d.ID)
	assert.Equal(t, "abc123", d.Revision)
	assert.Equal(t, int64(1700000000), d.StartTime)
}

func TestGetDeploy_NotFound(t *testing.T) {
	srv, _ := fakeDeployAPI(t, "read-token")

	_, err := New(srv.URL).GetDeploy(context.Background(), "read-token", 1)

	require.Error(t, err)
	assert.True(t, rollnotify.IsKind(err, rollnotify.KindAPI))
	assert.Contains(t, err.Error(), "Deploy not found")
}

func TestListDeploys(t *testing.T) {
	srv, _ := fakeDeployAPI(t, "read-token")

	page, err := New(srv.URL).ListDeploys(context.Background(), "read-token", 2)

	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Deploys, 2)
	assert.Equal(t, int64(2), page.Deploys[0].ID)
}

func TestListDeploys_InsufficientPrivileges(t *testing.T) {
	srv, _ := fakeDeployAPI(t, "read-token")

	_, err := New(srv.URL).ListDeploys(context.Background(), "write-token", 2)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "insufficient privileges")
	assert.True(t, rollnotify.IsKind(err, rollnotify.KindAPI))
}

func TestListDeploys_PageDefaultsToOne(t *testing.T) {
	var gotPage string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPage = r.URL.Query().Get("page")
		_, _ = w.Write([]byte(`{"err":0,"result":{"deploys":[]}}`))
	}))
	defer srv.Close()

	page, err := New(srv.URL).ListDeploys(context.Background(), "tok", 0)

	require.NoError(t, err)
	assert.Equal(t, "1", gotPage)
	assert.Equal(t, 1, page.Page)
	assert.Empty(t, page.Deploys)
}

func TestClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetDeploy(context.Background(), "tok", 1)

	require.Error(t, err)
	assert.True(t, rollnotify.IsKind(err, rollnotify.KindTransport))
	assert.Contains(t, err.Error(), "502")
}

func TestClient_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := New(url).CreateDeploy(context.Background(), "tok", Deploy{Environment: "e", Revision: "r"})

	require.Error(t, err)
	assert.True(t, rollnotify.IsKind(err, rollnotify.KindTransport))
}
