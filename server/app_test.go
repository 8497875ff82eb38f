package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xpostr-proxy/config"
	"xpostr-proxy/core"
	"xpostr-proxy/models"
)

// fakeOpenRouter 按 Bearer 凭证返回预设的上游响应
type fakeOpenRouter struct {
	mu        sync.Mutex
	responses map[string]fakeReply
	seen      []string
	bodies    []models.ChatCompletionRequest
	headers   []http.Header
}

type fakeReply struct {
	status int
	body   string
}

func (f *fakeOpenRouter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	raw, _ := io.ReadAll(r.Body)
	var body models.ChatCompletionRequest
	_ = json.Unmarshal(raw, &body)

	f.mu.Lock()
	f.seen = append(f.seen, key)
	f.bodies = append(f.bodies, body)
	f.headers = append(f.headers, r.Header.Clone())
	reply, ok := f.responses[key]
	f.mu.Unlock()

	if !ok {
		reply = fakeReply{status: 401, body: `{"error":{"message":"No auth credentials found","code":401}}`}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(reply.status)
	_, _ = io.WriteString(w, reply.body)
}

func newTestApp(t *testing.T, upstream *fakeOpenRouter, keys ...string) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	cfg := config.Defaults(config.ProfileVercel)
	cfg.Upstream.Endpoint = srv.URL
	cfg.Dispatch.Strategy = "fixed"
	cfg.Log.Level = "panic"
	cfg.Credentials = core.NewCredentialPool(keys...)

	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestApp_FailoverToSecondKey(t *testing.T) {
	upstream := &fakeOpenRouter{responses: map[string]fakeReply{
		"sk-or-first": {429, `{"error":{"message":"Rate limit exceeded: free-models-per-day","code":429}}`},
		"sk-or-second": {200, `{"id":"gen-1","choices":[{"message":{"role":"assistant","content":"Shipping is a feature."}}]}`},
	}}
	app := newTestApp(t, upstream, "sk-or-first", "sk-or-second")

	w := doRequest(app.Engine, http.MethodPost, "/api/generate", `{"prompt":"tweet about shipping"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"content":"Shipping is a feature."}`, w.Body.String())
	assert.Equal(t, []string{"sk-or-first", "sk-or-second"}, upstream.seen)

	body := upstream.bodies[1]
	assert.Equal(t, "mistralai/mistral-7b-instruct:free", body.Model)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "system", body.Messages[0].Role)
	assert.Equal(t, "user", body.Messages[1].Role)
	assert.Equal(t, "tweet about shipping", body.Messages[1].Content)

	h := upstream.headers[1]
	assert.Equal(t, "https://xpostr.app", h.Get("HTTP-Referer"))
	assert.Equal(t, "xPostr", h.Get("X-Title"))
}

func TestApp_LastErrorWins(t *testing.T) {
	upstream := &fakeOpenRouter{responses: map[string]fakeReply{
		"sk-or-a": {402, `{"error":{"message":"Insufficient credits"}}`},
		"sk-or-b": {200, `{"choices":[]}`},
		"sk-or-c": {400, `{"error":{"message":"mystery-model is not a valid model ID"}}`},
	}}
	app := newTestApp(t, upstream, "sk-or-a", "sk-or-b", "sk-or-c")

	w := doRequest(app.Engine, http.MethodPost, "/", `{"prompt":"p","modelId":"mystery-model"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "mystery-model is not a valid model ID", decodeError(t, w))
	assert.Len(t, upstream.seen, 3)
}

func TestApp_FailFastOnInvalidRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstream := &fakeOpenRouter{responses: map[string]fakeReply{
		"sk-or-a": {400, `{"error":{"message":"bad model"}}`},
		"sk-or-b": {200, `{"choices":[{"message":{"content":"never"}}]}`},
	}}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	cfg := config.Defaults(config.ProfileVercel)
	cfg.Upstream.Endpoint = srv.URL
	cfg.Dispatch.Strategy = "fixed"
	cfg.Dispatch.FailFastOnInvalidRequest = true
	cfg.Log.Level = "panic"
	cfg.Credentials = core.NewCredentialPool("sk-or-a", "sk-or-b")
	app, err := New(cfg)
	require.NoError(t, err)
	defer app.Close()

	w := doRequest(app.Engine, http.MethodPost, "/", `{"prompt":"p"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "bad model", decodeError(t, w))
	assert.Equal(t, []string{"sk-or-a"}, upstream.seen)
}

func TestApp_NoCredentials(t *testing.T) {
	upstream := &fakeOpenRouter{}
	app := newTestApp(t, upstream)

	w := doRequest(app.Engine, http.MethodPost, "/", `{"prompt":"p"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "missing credentials", decodeError(t, w))
	assert.Empty(t, upstream.seen)
}

func TestApp_RequestLogAndMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)
	upstream := &fakeOpenRouter{responses: map[string]fakeReply{
		"sk-or-a": {200, `{"choices":[{"message":{"content":"hi"}}]}`},
	}}
	srv := httptest.NewServer(upstream)
	defer srv.Close()

	dir := t.TempDir()
	cfg := config.Defaults(config.ProfileWorker)
	cfg.Upstream.Endpoint = srv.URL
	cfg.Log.Level = "panic"
	cfg.Log.File = filepath.Join(dir, "proxy.log")
	cfg.Log.RequestLogDB = filepath.Join(dir, "requests.db")
	cfg.Metrics.Enabled = true
	cfg.Credentials = core.NewCredentialPool("sk-or-a")

	app, err := New(cfg)
	require.NoError(t, err)
	defer app.Close()

	w := doRequest(app.Engine, http.MethodPost, "/", `{"prompt":"p"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "google/gemini-2.0-flash-exp:free", upstream.bodies[0].Model)
	assert.Equal(t, "xPostr Cloudflare", upstream.headers[0].Get("X-Title"))

	w = doRequest(app.Engine, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `xpostr_dispatch_total{result="success"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
