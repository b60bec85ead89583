package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/internal/plugin/plugintest"
	"github.com/yairfalse/bucketlens/pkg/report"
)

func mustNew(t *testing.T, include, exclude []string) *Filter {
	t.Helper()
	f, err := New(include, exclude)
	require.NoError(t, err)
	return f
}

func TestAllow_NoPatterns(t *testing.T) {
	f := mustNew(t, nil, nil)
	assert.True(t, f.Allow("logs"))
	assert.True(t, f.IsEmpty())
}

func TestAllow_Include(t *testing.T) {
	f := mustNew(t, []string{"prod-*", "shared"}, nil)
	assert.True(t, f.Allow("prod-logs"))
	assert.True(t, f.Allow("shared"))
	assert.False(t, f.Allow("dev-logs"))
}

func TestAllow_Exclude(t *testing.T) {
	f := mustNew(t, nil, []string{"*-tmp"})
	assert.True(t, f.Allow("prod-logs"))
	assert.False(t, f.Allow("scratch-tmp"))
}

func TestAllow_ExcludeWinsOverInclude(t *testing.T) {
	f := mustNew(t, []string{"prod-*"}, []string{"prod-secret*"})
	assert.True(t, f.Allow("prod-logs"))
	assert.False(t, f.Allow("prod-secrets"))
}

func TestNew_BadPattern(t *testing.T) {
	_, err := New([]string{"[unclosed"}, nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsConfiguration(err))
}

func TestApply_PreservesOrder(t *testing.T) {
	f := mustNew(t, nil, []string{"b*"})
	assert.Equal(t, []string{"alpha", "charlie"}, f.Apply([]string{"alpha", "bravo", "charlie"}))
}

func TestApply_EmptyFilter(t *testing.T) {
	f := mustNew(t, nil, nil)
	names := []string{"a", "b"}
	assert.Equal(t, names, f.Apply(names))
}

func TestWrap_HidesExcludedBuckets(t *testing.T) {
	backend := plugintest.New(plugintest.Sized("prod-logs", 10), plugintest.Sized("scratch-tmp", 5))
	f := mustNew(t, nil, []string{"*-tmp"})
	wrapped := Wrap(backend, f)

	names, err := wrapped.ListResources(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"prod-logs"}, names)

	err = wrapped.ListObjects(context.Background(), "scratch-tmp", func(report.Object) error { return nil })
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
	assert.Equal(t, int32(0), backend.ObjectsCalls.Load())
}

func TestWrap_EmptyFilterReturnsBackend(t *testing.T) {
	backend := plugintest.New()
	assert.Same(t, backend, Wrap(backend, mustNew(t, nil, nil)))
	assert.Same(t, backend, Wrap(backend, nil))
}
