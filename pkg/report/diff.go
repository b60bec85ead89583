package report

import (
	"encoding/json"
	"maps"
	"strconv"
)

// DiffType represents the type of change detected between inspections.
type DiffType string

const (
	// DiffAdded indicates a bucket was inspected for the first time.
	DiffAdded DiffType = "added"
	// DiffModified indicates a re-inspection produced different figures.
	DiffModified DiffType = "modified"
)

// Change represents a single field change.
// The field name is the map key in ReportDiff.Changes.
type Change struct {
	Previous string
	Current  string
}

// ReportDiff represents a detected change in a bucket report.
type ReportDiff struct {
	Type     DiffType
	Report   *InspectionReport
	Previous *InspectionReport // nil for added buckets
	Changes  map[string]Change
}

// Compare returns the field changes between two reports of the same bucket.
// InspectedAt and the auth/perm flags are excluded since they vary per run.
func Compare(prev, curr *InspectionReport) map[string]Change {
	changes := make(map[string]Change)

	if prev.TotalSize != curr.TotalSize {
		changes["total_size"] = Change{
			Previous: strconv.FormatUint(prev.TotalSize, 10),
			Current:  strconv.FormatUint(curr.TotalSize, 10),
		}
	}

	if prev.ObjectCount != curr.ObjectCount {
		changes["object_count"] = Change{
			Previous: strconv.FormatUint(prev.ObjectCount, 10),
			Current:  strconv.FormatUint(curr.ObjectCount, 10),
		}
	}

	if !maps.Equal(prev.StorageClasses, curr.StorageClasses) {
		changes["storage_classes"] = Change{
			Previous: toJSON(prev.StorageClasses),
			Current:  toJSON(curr.StorageClasses),
		}
	}

	if len(prev.LifecycleRules) != len(curr.LifecycleRules) {
		changes["lifecycle_rules"] = Change{
			Previous: strconv.Itoa(len(prev.LifecycleRules)),
			Current:  strconv.Itoa(len(curr.LifecycleRules)),
		}
	}

	return changes
}

// toJSON renders a value deterministically; map keys are sorted by encoding/json.
func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
