package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yairfalse/bucketlens/pkg/report"
)

func openTemp(t *testing.T) (*ReportStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "reports", "bucketlens.db")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func sample(name string, size uint64) *report.InspectionReport {
	return &report.InspectionReport{
		Bucket:         name,
		TotalSize:      size,
		ObjectCount:    2,
		StorageClasses: map[string]uint64{"STANDARD": 2},
		LifecycleRules: []report.LifecycleRule{},
		AuthOK:         true,
		PermOK:         true,
		InspectedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestReportStore_PutGet(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	require.NoError(t, s.Put("tools", sample("logs", 42)))

	got, found, err := s.Get("tools", "logs")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, sample("logs", 42), got)
}

func TestReportStore_GetMissing(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	got, found, err := s.Get("tools", "nope")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)
}

func TestReportStore_ScopesAreIndependent(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	require.NoError(t, s.Put("tools", sample("a", 1)))
	require.NoError(t, s.Put("classifier", sample("a", 2)))

	require.NoError(t, s.DeleteScope("tools"))

	_, found, err := s.Get("tools", "a")
	require.NoError(t, err)
	assert.False(t, found)

	got, found, err := s.Get("classifier", "a")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(2), got.TotalSize)
}

func TestReportStore_NamesSorted(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()

	for _, n := range []string{"zeta", "alpha", "mid"} {
		require.NoError(t, s.Put("tools", sample(n, 1)))
	}
	require.NoError(t, s.Put("other", sample("beta", 1)))

	assert.Equal(t, []string{"alpha", "mid", "zeta"}, s.Names("tools"))
	assert.Equal(t, []string{"beta"}, s.Names("other"))
	assert.Empty(t, s.Names("missing"))
}

func TestReportStore_SurvivesReopen(t *testing.T) {
	s, path := openTemp(t)
	require.NoError(t, s.Put("tools", sample("logs", 9)))
	require.NoError(t, s.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, []string{"logs"}, reopened.Names("tools"))
	got, found, err := reopened.Get("tools", "logs")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(9), got.TotalSize)
}

func TestReportStore_DeleteMissingScope(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	assert.NoError(t, s.DeleteScope("never-written"))
}

func TestReportStore_PutNil(t *testing.T) {
	s, _ := openTemp(t)
	defer s.Close()
	assert.Error(t, s.Put("tools", nil))
}
