package emitter

import (
	"sync"

	"github.com/yairfalse/bucketlens/pkg/report"
)

// DiffTracker remembers the last report seen per scope and bucket so a
// re-inspection after a cache clear can be compared with what came before.
// Baselines survive cache clears.
type DiffTracker struct {
	mu       sync.RWMutex
	previous map[string]*report.InspectionReport
}

// NewDiffTracker creates a new diff tracker.
func NewDiffTracker() *DiffTracker {
	return &DiffTracker{
		previous: make(map[string]*report.InspectionReport),
	}
}

func trackerKey(scope, bucket string) string {
	return scope + "/" + bucket
}

// ComputeDiff compares current against the stored baseline.
// Returns an added diff for a first sighting and nil when nothing changed.
func (d *DiffTracker) ComputeDiff(scope string, current *report.InspectionReport) *report.ReportDiff {
	d.mu.RLock()
	defer d.mu.RUnlock()

	prev, ok := d.previous[trackerKey(scope, current.Bucket)]
	if !ok {
		return &report.ReportDiff{Type: report.DiffAdded, Report: current}
	}

	changes := report.Compare(prev, current)
	if len(changes) == 0 {
		return nil
	}
	return &report.ReportDiff{
		Type:     report.DiffModified,
		Report:   current,
		Previous: prev,
		Changes:  changes,
	}
}

// Update stores current as the new baseline for its bucket.
func (d *DiffTracker) Update(scope string, current *report.InspectionReport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.previous[trackerKey(scope, current.Bucket)] = current.Clone()
}

// Len returns the number of baselines held.
func (d *DiffTracker) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.previous)
}
