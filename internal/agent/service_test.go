package agent

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/bucketlens/internal/cache"
	"github.com/yairfalse/bucketlens/internal/config"
	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/internal/inspector"
	"github.com/yairfalse/bucketlens/internal/llm"
	"github.com/yairfalse/bucketlens/internal/llm/llmtest"
	"github.com/yairfalse/bucketlens/internal/plugin/plugintest"
)

func newService(t *testing.T, mode string, backend *plugintest.Backend, p llm.Provider) *Service {
	t.Helper()
	s, err := NewService(Options{
		Mode:        mode,
		Backend:     backend,
		Cache:       cache.New(cache.Options{Scope: mode, Inspector: inspector.New(backend, nil)}),
		Provider:    p,
		Guardrail:   newGuard(t),
		Concurrency: 2,
	})
	require.NoError(t, err)
	return s
}

func TestNewService_Validation(t *testing.T) {
	backend := namedBuckets()

	_, err := NewService(Options{Mode: config.ModeTools})
	assert.True(t, apperrors.IsConfiguration(err))

	_, err = NewService(Options{
		Mode:      "chaos",
		Backend:   backend,
		Cache:     cache.New(cache.Options{Scope: "x", Inspector: inspector.New(backend, nil)}),
		Provider:  newMockProvider(),
		Guardrail: newGuard(t),
	})
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestService_AnalyzeIsCached(t *testing.T) {
	backend := namedBuckets()
	s := newService(t, config.ModeTools, backend, newMockProvider())
	ctx := context.Background()

	r, err := s.Analyze(ctx, "media")
	require.NoError(t, err)
	assert.Equal(t, uint64(300), r.TotalSize)
	calls := backend.Calls()

	_, err = s.Analyze(ctx, "media")
	require.NoError(t, err)
	assert.Equal(t, calls, backend.Calls())

	st := s.Status()
	assert.Equal(t, config.ModeTools, st.Mode)
	assert.Equal(t, 1, st.CachedCount)
	assert.Equal(t, []string{"media"}, st.Buckets)
	assert.Equal(t, 14, st.AvailableTools)

	_, err = s.Analyze(ctx, " ")
	assert.True(t, apperrors.IsValidation(err))

	_, err = s.Analyze(ctx, "nope")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_ChatUsesModeResponder(t *testing.T) {
	p := newMockProvider()
	p.On("Chat", mock.Anything, mock.Anything).Return(llmtest.Text("media is the largest."), nil)

	s := newService(t, config.ModeClassifier, namedBuckets(), p)
	answer, err := s.Chat(context.Background(), "which bucket is the largest?")
	require.NoError(t, err)
	assert.Equal(t, "media is the largest.", answer)

	out, err := s.Ask(context.Background(), "list my buckets")
	require.NoError(t, err)
	assert.Equal(t, "Available buckets (3): prod-logs, media, backups", out.Answer)
	p.AssertNumberOfCalls(t, "Chat", 1)
}

func TestService_NoProviderAnswersLocally(t *testing.T) {
	s := newService(t, config.ModeTools, namedBuckets(), nil)
	answer, err := s.Chat(context.Background(), "how many buckets do I have?")
	require.NoError(t, err)
	assert.Equal(t, "There are 3 buckets in your account.", answer)
}

func TestService_SerializesTurns(t *testing.T) {
	var inflight atomic.Int32
	var overlapped atomic.Bool

	p := newMockProvider()
	p.On("Chat", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			if inflight.Add(1) > 1 {
				overlapped.Store(true)
			}
			time.Sleep(5 * time.Millisecond)
			inflight.Add(-1)
		}).
		Return(llmtest.Text("ok"), nil)

	s := newService(t, config.ModeTools, namedBuckets(), p)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Chat(context.Background(), "summarize my storage please")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.False(t, overlapped.Load(), "chat turns must not interleave")
	p.AssertNumberOfCalls(t, "Chat", 4)
}

func TestHub_ClearCacheScopes(t *testing.T) {
	backend := namedBuckets()
	basic := newService(t, config.ModeClassifier, backend, newMockProvider())
	enhanced := newService(t, config.ModeTools, backend, newMockProvider())
	hub := NewHub(basic, enhanced)
	ctx := context.Background()

	warm := func() {
		t.Helper()
		_, err := basic.Analyze(ctx, "media")
		require.NoError(t, err)
		_, err = enhanced.Analyze(ctx, "media")
		require.NoError(t, err)
	}

	warm()
	require.NoError(t, hub.ClearCache(ctx, "basic"))
	assert.Zero(t, basic.Status().CachedCount)
	assert.Equal(t, 1, enhanced.Status().CachedCount, "other scope untouched")

	require.NoError(t, hub.ClearCache(ctx, "tools"))
	assert.Zero(t, enhanced.Status().CachedCount)

	warm()
	require.NoError(t, hub.ClearCache(ctx, "all"))
	assert.Zero(t, basic.Status().CachedCount)
	assert.Zero(t, enhanced.Status().CachedCount)

	err := hub.ClearCache(ctx, "legacy")
	assert.True(t, apperrors.IsValidation(err))
}

func TestHub_Lookup(t *testing.T) {
	backend := namedBuckets()
	hub := NewHub(
		newService(t, config.ModeClassifier, backend, nil),
		newService(t, config.ModeTools, backend, nil),
	)

	s, ok := hub.Service("enhanced")
	require.True(t, ok)
	assert.Equal(t, config.ModeTools, s.Mode())

	s, ok = hub.Service("classifier")
	require.True(t, ok)
	assert.Equal(t, config.ModeClassifier, s.Mode())

	_, ok = hub.Service("other")
	assert.False(t, ok)

	assert.Equal(t, []string{"classifier", "tools"}, hub.Modes())
	assert.Len(t, hub.Status(), 2)
}
