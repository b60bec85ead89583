package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *InspectionReport)
		want   map[string]Change
	}{
		{
			name:   "identical",
			mutate: func(*InspectionReport) {},
			want:   map[string]Change{},
		},
		{
			name:   "size and count",
			mutate: func(r *InspectionReport) { r.TotalSize, r.ObjectCount = 500, 3 },
			want: map[string]Change{
				"total_size":   {Previous: "300", Current: "500"},
				"object_count": {Previous: "2", Current: "3"},
			},
		},
		{
			name:   "storage classes",
			mutate: func(r *InspectionReport) { r.StorageClasses = map[string]uint64{"STANDARD": 2} },
			want: map[string]Change{
				"storage_classes": {Previous: `{"GLACIER":1,"STANDARD":1}`, Current: `{"STANDARD":2}`},
			},
		},
		{
			name:   "lifecycle rule count",
			mutate: func(r *InspectionReport) { r.LifecycleRules = nil },
			want: map[string]Change{
				"lifecycle_rules": {Previous: "1", Current: "0"},
			},
		},
		{
			name: "per-run fields ignored",
			mutate: func(r *InspectionReport) {
				r.AuthOK, r.PermOK = false, false
				r.InspectedAt = r.InspectedAt.Add(time.Hour)
			},
			want: map[string]Change{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := sampleReport()
			curr := prev.Clone()
			tt.mutate(curr)
			assert.Equal(t, tt.want, Compare(prev, curr))
		})
	}
}

func TestDiffType_Constants(t *testing.T) {
	assert.Equal(t, DiffType("added"), DiffAdded)
	assert.Equal(t, DiffType("modified"), DiffModified)
}
