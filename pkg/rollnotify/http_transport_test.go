package rollnotify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	path   string
	header http.Header
	body   map[string]json.RawMessage
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []capturedRequest
	status   int
	reply    string
	headers  map[string]string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	var body map[string]json.RawMessage
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.requests = append(f.requests, capturedRequest{path: r.URL.Path, header: r.Header.Clone(), body: body})
	status, reply := f.status, f.reply
	for k, v := range f.headers {
		w.Header().Set(k, v)
	}
	f.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	if reply == "" {
		reply = `{"err":0,"result":{"id":null,"uuid":"abc"}}`
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, reply)
}

func (f *fakeAPI) getRequests() []capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]capturedRequest(nil), f.requests...)
}

func newFakeAPI(t *testing.T) (*fakeAPI, *HTTPTransport) {
	t.Helper()
	api := &fakeAPI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	return api, NewHTTPTransport(srv.URL+"/api/1/", WithHTTPTimeout(2*time.Second))
}

func messageItem(msg string) *Item {
	return &Item{Environment: "test", Level: LevelInfo, Language: Language, Body: Body{Message: &Message{Body: msg}}}
}

func TestHTTPTransport_SingleItem(t *testing.T) {
	api, transport := newFakeAPI(t)

	resp, err := transport.PostItems(context.Background(), "tok-123", []*Item{messageItem("hello")})

	require.NoError(t, err)
	assert.Equal(t, 0, resp.Err)
	reqs := api.getRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/1/item/", reqs[0].path)
	assert.Equal(t, "tok-123", reqs[0].header.Get(AccessTokenHeader))
	assert.Equal(t, "application/json", reqs[0].header.Get("Content-Type"))
	assert.JSONEq(t, `"tok-123"`, string(reqs[0].body["access_token"]))

	var data map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].body["data"], &data))
	assert.Equal(t, "test", data["environment"])
}

func TestHTTPTransport_Batch(t *testing.T) {
	api, transport := newFakeAPI(t)

	_, err := transport.PostItems(context.Background(), "tok", []*Item{messageItem("a"), messageItem("b")})

	require.NoError(t, err)
	reqs := api.getRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/api/1/item_batch/", reqs[0].path)
	var data []map[string]any
	require.NoError(t, json.Unmarshal(reqs[0].body["data"], &data))
	assert.Len(t, data, 2)
}

func TestHTTPTransport_Empty(t *testing.T) {
	api, transport := newFakeAPI(t)

	_, err := transport.PostItems(context.Background(), "tok", nil)

	require.NoError(t, err)
	assert.Empty(t, api.getRequests())
}

func TestHTTPTransport_APIError(t *testing.T) {
	api, transport := newFakeAPI(t)
	api.status = http.StatusUnauthorized
	api.reply = `{"err":1,"message":"invalid access token"}`

	resp, err := transport.PostItems(context.Background(), "bad", []*Item{messageItem("x")})

	require.Error(t, err)
	assert.True(t, IsKind(err, KindAPI))
	assert.Contains(t, err.Error(), "invalid access token")
	require.NotNil(t, resp)
	assert.Equal(t, 1, resp.Err)
}

func TestHTTPTransport_NonJSONError(t *testing.T) {
	api, transport := newFakeAPI(t)
	api.status = http.StatusBadGateway
	api.reply = "<html>bad gateway</html>"

	_, err := transport.PostItems(context.Background(), "tok", []*Item{messageItem("x")})

	assert.True(t, IsKind(err, KindTransport))
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPTransport_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	transport := NewHTTPTransport(url, WithHTTPTimeout(time.Second))

	_, err := transport.PostItems(context.Background(), "tok", []*Item{messageItem("x")})

	assert.True(t, IsKind(err, KindTransport))
}

func TestHTTPTransport_RetryAfter(t *testing.T) {
	api, transport := newFakeAPI(t)
	api.status = http.StatusTooManyRequests
	api.reply = `{"err":1,"message":"rate limit"}`
	api.headers = map[string]string{"Retry-After": "30"}
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	transport.now = func() time.Time { return now }

	_, err := transport.PostItems(context.Background(), "tok", []*Item{messageItem("x")})
	require.Error(t, err)

	_, err = transport.PostItems(context.Background(), "tok", []*Item{messageItem("y")})
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Len(t, api.getRequests(), 1, "blocked request must not reach the server")

	now = now.Add(31 * time.Second)
	api.status = http.StatusOK
	api.reply = ""
	_, err = transport.PostItems(context.Background(), "tok", []*Item{messageItem("z")})
	assert.NoError(t, err)
	assert.Len(t, api.getRequests(), 2)
}

func TestHTTPTransport_Close(t *testing.T) {
	_, transport := newFakeAPI(t)

	assert.NoError(t, transport.Close())
}
