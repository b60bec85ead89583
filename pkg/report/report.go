// Package report defines the inspection report model for bucketlens.
package report

import (
	"maps"
	"slices"
	"time"
)

// DefaultStorageClass is assumed for objects that report no storage class.
const DefaultStorageClass = "STANDARD"

// InspectionReport is the result of inspecting one bucket.
// Reports are immutable once assembled; share them via Clone.
type InspectionReport struct {
	Bucket         string            `json:"bucket"`
	TotalSize      uint64            `json:"total_size"`
	ObjectCount    uint64            `json:"object_count"`
	StorageClasses map[string]uint64 `json:"storage_classes"`
	LifecycleRules []LifecycleRule   `json:"lifecycle_rules"`
	AuthOK         bool              `json:"auth_ok"`
	PermOK         bool              `json:"perm_ok"`
	InspectedAt    time.Time         `json:"inspected_at"`
}

// LifecycleRule is a normalized lifecycle configuration rule.
type LifecycleRule struct {
	ID             string       `json:"id,omitempty"`
	Status         string       `json:"status"`
	Prefix         string       `json:"prefix,omitempty"`
	ExpirationDays int32        `json:"expiration_days,omitempty"`
	Transitions    []Transition `json:"transitions,omitempty"`
}

// Transition moves objects to another storage class after Days.
type Transition struct {
	Days         int32  `json:"days"`
	StorageClass string `json:"storage_class"`
}

// Object is the per-object view yielded by a listing.
type Object struct {
	Key          string
	Size         int64
	StorageClass string
}

// Clone returns a deep copy of the report.
func (r *InspectionReport) Clone() *InspectionReport {
	if r == nil {
		return nil
	}
	c := *r
	c.StorageClasses = maps.Clone(r.StorageClasses)
	if c.StorageClasses == nil {
		c.StorageClasses = map[string]uint64{}
	}
	c.LifecycleRules = make([]LifecycleRule, len(r.LifecycleRules))
	for i, rule := range r.LifecycleRules {
		rule.Transitions = slices.Clone(rule.Transitions)
		c.LifecycleRules[i] = rule
	}
	return &c
}

// PublicAccessBlock mirrors the bucket public access block settings.
type PublicAccessBlock struct {
	BlockPublicAcls       bool `json:"block_public_acls"`
	IgnorePublicAcls      bool `json:"ignore_public_acls"`
	BlockPublicPolicy     bool `json:"block_public_policy"`
	RestrictPublicBuckets bool `json:"restrict_public_buckets"`
}

// Versioning is the bucket versioning state.
type Versioning struct {
	Status    string `json:"status"`
	MFADelete string `json:"mfa_delete"`
}

// Encryption is the default server-side encryption state.
type Encryption struct {
	Enabled   bool   `json:"enabled"`
	Algorithm string `json:"algorithm,omitempty"`
}

// Identity is the caller identity behind the active credentials.
type Identity struct {
	Account string `json:"account"`
	ARN     string `json:"arn"`
	UserID  string `json:"user_id"`
}
