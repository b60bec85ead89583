package daemon

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/bucketlens/internal/agent"
	"github.com/yairfalse/bucketlens/internal/cache"
	"github.com/yairfalse/bucketlens/internal/config"
	"github.com/yairfalse/bucketlens/internal/guardrail"
	"github.com/yairfalse/bucketlens/internal/inspector"
	"github.com/yairfalse/bucketlens/internal/llm"
	"github.com/yairfalse/bucketlens/internal/llm/llmtest"
	"github.com/yairfalse/bucketlens/internal/plugin/plugintest"
)

type fixture struct {
	daemon   *Daemon
	backend  *plugintest.Backend
	provider *llmtest.MockProvider
	hub      *agent.Hub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	backend := plugintest.New(
		plugintest.Sized("prod-logs", 10),
		plugintest.Sized("media", 100, 200),
	)
	provider := &llmtest.MockProvider{}
	provider.On("Name").Return("mock").Maybe()

	guard, err := guardrail.New(context.Background())
	require.NoError(t, err)

	newService := func(mode string, p llm.Provider) *agent.Service {
		s, err := agent.NewService(agent.Options{
			Mode:        mode,
			Backend:     backend,
			Cache:       cache.New(cache.Options{Scope: mode, Inspector: inspector.New(backend, nil)}),
			Provider:    p,
			Guardrail:   guard,
			Concurrency: 2,
		})
		require.NoError(t, err)
		return s
	}

	hub := agent.NewHub(
		newService(config.ModeClassifier, provider),
		newService(config.ModeTools, provider),
	)
	d, err := NewDaemon(Config{Addr: "127.0.0.1:0"}, hub, nil)
	require.NoError(t, err)

	return &fixture{daemon: d, backend: backend, provider: provider, hub: hub}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.daemon.Handler().ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestNewDaemon_RequiresHub(t *testing.T) {
	_, err := NewDaemon(Config{}, nil, nil)
	assert.Error(t, err)
}

func TestDaemon_Health(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestDaemon_RequestIDPropagates(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec := httptest.NewRecorder()
	f.daemon.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}

func TestDaemon_API(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "bucketlens", body["name"])
	assert.Contains(t, body["endpoints"], "/enhanced-chat")
}

func TestDaemon_ChatValidation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body string
		want string
	}{
		{"missing question", "/chat", `{}`, "Missing 'question' field"},
		{"invalid json", "/chat", `{"question":`, "Missing 'question' field"},
		{"blank question", "/enhanced-chat", `{"question":"   "}`, "Question cannot be empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.want, decode(t, rec)["error"])
		})
	}
	f.provider.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestDaemon_EnhancedChat(t *testing.T) {
	f := newFixture(t)
	f.provider.On("Chat", mock.Anything, mock.Anything).
		Return(llmtest.Tools(llm.ToolCall{ID: "t1", Name: "analyze_bucket", Input: map[string]any{"bucket_name": "media"}}), nil).Once()
	f.provider.On("Chat", mock.Anything, mock.Anything).
		Return(llmtest.Text("media holds 300 bytes."), nil).Once()

	rec := f.do(t, http.MethodPost, "/enhanced-chat", `{"question":"how big is media?"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "media holds 300 bytes.", body["answer"])
	assert.Equal(t, "enhanced_agentic", body["mode"])
	assert.Equal(t, "answered", body["state"])
	assert.EqualValues(t, 1, body["iterations"])
	assert.EqualValues(t, 1, body["cached_buckets"])
}

func TestDaemon_ChatRejectsMutation(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/chat", `{"question":"delete bucket media"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "rejected", body["state"])
	assert.Equal(t, "basic_agentic", body["mode"])
	f.provider.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
}

func TestDaemon_Analyze(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/analyze/media", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "media", body["bucket"])

	rec = f.do(t, http.MethodGet, "/analyze/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/analyze/media?agent=legacy", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDaemon_Status(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/analyze/media?agent=basic", "")

	rec := f.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, []any{"prod-logs", "media"}, body["bucket_names"])

	agents := body["agents"].(map[string]any)
	require.Len(t, agents, 2)
	classifier := agents[config.ModeClassifier].(map[string]any)
	assert.EqualValues(t, 1, classifier["cached_buckets"])
}

func TestDaemon_StatusSurvivesListFailure(t *testing.T) {
	f := newFixture(t)
	f.backend.ListErr = assert.AnError

	rec := f.do(t, http.MethodGet, "/status", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, decode(t, rec), "bucket_error")
}

func TestDaemon_ClearCache(t *testing.T) {
	f := newFixture(t)
	basic, _ := f.hub.Service("basic")
	enhanced, _ := f.hub.Service("enhanced")

	warm := func() {
		f.do(t, http.MethodGet, "/analyze/media?agent=basic", "")
		f.do(t, http.MethodGet, "/analyze/media?agent=enhanced", "")
	}

	warm()
	rec := f.do(t, http.MethodPost, "/clear-cache", `{"agent":"basic"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cache cleared for basic agent(s)", decode(t, rec)["message"])
	assert.Zero(t, basic.Status().CachedCount)
	assert.Equal(t, 1, enhanced.Status().CachedCount)

	warm()
	rec = f.do(t, http.MethodPost, "/clear-cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Cache cleared for all agent(s)", decode(t, rec)["message"])
	assert.Zero(t, basic.Status().CachedCount)
	assert.Zero(t, enhanced.Status().CachedCount)

	rec = f.do(t, http.MethodPost, "/clear-cache", `{"agent":"legacy"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/clear-cache", `{"agent":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDaemon_UnknownRoute(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/chat", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestDaemon_ServeAndShutdown(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- f.daemon.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not shut down")
	}
}
