package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/bucketlens/internal/cache"
	"github.com/yairfalse/bucketlens/internal/format"
	"github.com/yairfalse/bucketlens/internal/inspector"
	"github.com/yairfalse/bucketlens/internal/llm"
	"github.com/yairfalse/bucketlens/internal/llm/llmtest"
	"github.com/yairfalse/bucketlens/internal/plugin/plugintest"
	"github.com/yairfalse/bucketlens/internal/tools"
)

func namedBuckets() *plugintest.Backend {
	return plugintest.New(
		plugintest.Sized("prod-logs", 10),
		plugintest.Sized("media", 100, 200),
		plugintest.Sized("backups", 5),
	)
}

func newRouter(t *testing.T, backend *plugintest.Backend, p llm.Provider) *Router {
	t.Helper()
	c := cache.New(cache.Options{Scope: "classifier", Inspector: inspector.New(backend, nil)})
	r, err := NewRouter(RouterConfig{
		Provider:  p,
		Backend:   backend,
		Toolbox:   tools.NewToolbox(backend, c, 2),
		Guardrail: newGuard(t),
		Formatter: format.Text{},
	})
	require.NoError(t, err)
	return r
}

func userContent(req llm.ChatRequest) string {
	if len(req.Messages) == 0 {
		return ""
	}
	return req.Messages[0].Content
}

func TestRouter_ListAnswersDirectly(t *testing.T) {
	backend := namedBuckets()
	p := newMockProvider()
	r := newRouter(t, backend, p)

	out, err := r.Run(context.Background(), "list my buckets")
	require.NoError(t, err)

	assert.Equal(t, Answered, out.State)
	assert.Equal(t, "Available buckets (3): prod-logs, media, backups", out.Answer)
	p.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
	assert.Zero(t, backend.ObjectsCalls.Load())
}

func TestRouter_SpecificInspectsNamedBucketsOnly(t *testing.T) {
	backend := namedBuckets()
	p := newMockProvider()
	p.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		content := userContent(req)
		return req.MaxTokens == DefaultClassifierMaxTokens &&
			req.Temperature == DefaultClassifierTemperature &&
			len(req.Tools) == 0 &&
			strings.Contains(content, `"media"`) &&
			!strings.Contains(content, `"backups"`) &&
			strings.HasSuffix(content, "User Question: how big is media?")
	})).Return(llmtest.Text("**media** holds 300.0 bytes"), nil).Once()

	r := newRouter(t, backend, p)
	out, err := r.Run(context.Background(), "how big is media?")
	require.NoError(t, err)

	assert.Equal(t, "media holds 300.0 bytes", out.Answer)
	assert.Equal(t, 1, out.Iterations)
	assert.Equal(t, int32(1), backend.ObjectsCalls.Load())
	p.AssertExpectations(t)
}

func TestRouter_AggregateInspectsEverything(t *testing.T) {
	backend := namedBuckets()
	p := newMockProvider()
	p.On("Chat", mock.Anything, mock.Anything).Return(llmtest.Text("media is the largest."), nil).Once()

	r := newRouter(t, backend, p)
	out, err := r.Run(context.Background(), "which bucket is the largest?")
	require.NoError(t, err)

	assert.Equal(t, "media is the largest.", out.Answer)
	assert.Equal(t, int32(3), backend.ObjectsCalls.Load())
}

func TestRouter_GeneralSendsNamesOnly(t *testing.T) {
	backend := namedBuckets()
	p := newMockProvider()
	p.On("Chat", mock.Anything, mock.MatchedBy(func(req llm.ChatRequest) bool {
		content := userContent(req)
		return strings.Contains(content, "bucket_names") &&
			strings.Contains(content, "Bucket details available on request")
	})).Return(llmtest.Text("I can look closer at any of them."), nil).Once()

	r := newRouter(t, backend, p)
	_, err := r.Run(context.Background(), "are lifecycle rules set up?")
	require.NoError(t, err)

	assert.Zero(t, backend.ObjectsCalls.Load())
	p.AssertExpectations(t)
}

func TestRouter_Degradation(t *testing.T) {
	t.Run("provider failure", func(t *testing.T) {
		p := newMockProvider()
		p.On("Chat", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

		out, err := newRouter(t, namedBuckets(), p).Run(context.Background(), "how big is media?")
		require.NoError(t, err)
		assert.Equal(t, Exhausted, out.State)
		assert.Equal(t, ReasonProvider, out.Reason)
		assert.Equal(t, ServiceErrorMessage, out.Answer)
	})

	t.Run("inspection failure", func(t *testing.T) {
		backend := namedBuckets()
		backend.ObjectsErr = errors.New("AccessDenied")
		p := newMockProvider()

		out, err := newRouter(t, backend, p).Run(context.Background(), "how big is media?")
		require.NoError(t, err)
		assert.Equal(t, Exhausted, out.State)
		assert.Equal(t, ToolsFailedMessage, out.Answer)
		p.AssertNotCalled(t, "Chat", mock.Anything, mock.Anything)
	})

	t.Run("empty reply", func(t *testing.T) {
		p := newMockProvider()
		p.On("Chat", mock.Anything, mock.Anything).Return(llmtest.Text(""), nil)

		out, err := newRouter(t, namedBuckets(), p).Run(context.Background(), "how big is media?")
		require.NoError(t, err)
		assert.Equal(t, NoResponseMessage, out.Answer)
	})
}

func TestRouter_RejectsMutation(t *testing.T) {
	backend := namedBuckets()
	p := newMockProvider()

	out, err := newRouter(t, backend, p).Run(context.Background(), "remove the media bucket")
	require.NoError(t, err)
	assert.Equal(t, Rejected, out.State)
	assert.Zero(t, backend.Calls())
}

func TestRouter_ShortQuestionIsNotGreeting(t *testing.T) {
	p := newMockProvider()
	p.On("Chat", mock.Anything, mock.Anything).Return(llmtest.Text("media is the largest"), nil).Once()

	out, err := newRouter(t, namedBuckets(), p).Run(context.Background(), "Which is largest?")
	require.NoError(t, err)
	assert.Equal(t, Answered, out.State)
	assert.NotEqual(t, GreetingMessage, out.Answer)
	p.AssertNumberOfCalls(t, "Chat", 1)
}
