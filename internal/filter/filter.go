// Package filter restricts which buckets bucketlens can see.
package filter

import (
	"context"
	"fmt"
	"path"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/internal/plugin"
	"github.com/yairfalse/bucketlens/pkg/report"
)

// Filter matches bucket names against include and exclude glob patterns.
type Filter struct {
	include []string
	exclude []string
}

// New creates a Filter. Patterns use path.Match syntax.
func New(include, exclude []string) (*Filter, error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if _, err := path.Match(p, ""); err != nil {
			return nil, apperrors.Configuration("filter", fmt.Errorf("bad pattern %q: %w", p, err))
		}
	}
	return &Filter{include: include, exclude: exclude}, nil
}

// Allow returns true if name passes the filter.
func (f *Filter) Allow(name string) bool {
	// Include patterns (whitelist) - ANY must match
	if len(f.include) > 0 && !matchAny(f.include, name) {
		return false
	}

	// Exclude patterns (blacklist) - ANY match excludes
	return !matchAny(f.exclude, name)
}

func matchAny(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// Apply returns only names that pass the filter, preserving order.
func (f *Filter) Apply(names []string) []string {
	if f.IsEmpty() {
		return names
	}

	filtered := make([]string, 0, len(names))
	for _, n := range names {
		if f.Allow(n) {
			filtered = append(filtered, n)
		}
	}
	return filtered
}

// IsEmpty returns true if no patterns are configured.
func (f *Filter) IsEmpty() bool {
	return len(f.include) == 0 && len(f.exclude) == 0
}

// Wrap returns a backend that hides filtered buckets. Calls naming a hidden
// bucket fail with a not-found error without reaching the provider.
func Wrap(b plugin.Backend, f *Filter) plugin.Backend {
	if f == nil || f.IsEmpty() {
		return b
	}
	return &filtered{Backend: b, filter: f}
}

type filtered struct {
	plugin.Backend
	filter *Filter
}

func (fb *filtered) check(op, bucket string) error {
	if fb.filter.Allow(bucket) {
		return nil
	}
	return apperrors.NotFound(op, bucket, fmt.Errorf("bucket excluded by filter"))
}

func (fb *filtered) ListResources(ctx context.Context) ([]string, error) {
	names, err := fb.Backend.ListResources(ctx)
	if err != nil {
		return nil, err
	}
	return fb.filter.Apply(names), nil
}

func (fb *filtered) ListObjects(ctx context.Context, bucket string, fn func(report.Object) error) error {
	if err := fb.check("list objects", bucket); err != nil {
		return err
	}
	return fb.Backend.ListObjects(ctx, bucket, fn)
}

func (fb *filtered) LifecycleRules(ctx context.Context, bucket string) ([]report.LifecycleRule, bool, error) {
	if err := fb.check("get lifecycle configuration", bucket); err != nil {
		return nil, false, err
	}
	return fb.Backend.LifecycleRules(ctx, bucket)
}

func (fb *filtered) Policy(ctx context.Context, bucket string) (string, bool, error) {
	if err := fb.check("get bucket policy", bucket); err != nil {
		return "", false, err
	}
	return fb.Backend.Policy(ctx, bucket)
}

func (fb *filtered) PublicAccessBlock(ctx context.Context, bucket string) (*report.PublicAccessBlock, error) {
	if err := fb.check("get public access block", bucket); err != nil {
		return nil, err
	}
	return fb.Backend.PublicAccessBlock(ctx, bucket)
}

func (fb *filtered) Versioning(ctx context.Context, bucket string) (report.Versioning, error) {
	if err := fb.check("get bucket versioning", bucket); err != nil {
		return report.Versioning{}, err
	}
	return fb.Backend.Versioning(ctx, bucket)
}

func (fb *filtered) Encryption(ctx context.Context, bucket string) (*report.Encryption, error) {
	if err := fb.check("get bucket encryption", bucket); err != nil {
		return nil, err
	}
	return fb.Backend.Encryption(ctx, bucket)
}
