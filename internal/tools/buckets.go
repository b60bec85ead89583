package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/internal/plugin"
	"github.com/yairfalse/bucketlens/internal/telemetry"
	"github.com/yairfalse/bucketlens/pkg/report"
)

// ReportSource yields cached or freshly inspected reports.
type ReportSource interface {
	GetOrCompute(ctx context.Context, bucket string) (*report.InspectionReport, error)
}

// Toolbox implements the bucket tools over a backend and a report cache.
type Toolbox struct {
	backend     plugin.Backend
	reports     ReportSource
	concurrency int
}

// NewToolbox creates a Toolbox. concurrency bounds all-bucket inspections.
func NewToolbox(backend plugin.Backend, reports ReportSource, concurrency int) *Toolbox {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Toolbox{backend: backend, reports: reports, concurrency: concurrency}
}

// NewBucketRegistry builds the registry of bucket tools.
func NewBucketRegistry(tb *Toolbox, metrics *telemetry.Metrics) (*Registry, error) {
	return New(BucketSpecs(), tb.Handlers(), metrics)
}

var bucketNameProp = map[string]any{
	"bucket_name": map[string]any{"type": "string", "description": "Name of the S3 bucket"},
}

// BucketSpecs returns the bucket tool specs.
func BucketSpecs() []Spec {
	return []Spec{
		{Name: "list_buckets", Description: "Get list of all S3 bucket names and count"},
		{
			Name:        "analyze_bucket",
			Description: "Get detailed analysis of a specific S3 bucket",
			Properties: map[string]any{
				"bucket_name": map[string]any{"type": "string", "description": "Name of the S3 bucket to analyze"},
			},
			Required: []string{"bucket_name"},
		},
		{Name: "compare_buckets", Description: "Compare storage usage across all buckets"},
		{
			Name:        "search_buckets",
			Description: "Search for buckets whose names contain a pattern",
			Properties: map[string]any{
				"pattern": map[string]any{"type": "string", "description": "Substring to look for in bucket names"},
			},
			Required: []string{"pattern"},
		},
		{
			Name:        "batch_analyze_buckets",
			Description: "Analyze all buckets for one metric, for comparison queries",
			Properties: map[string]any{
				"analysis_type": map[string]any{
					"type":        "string",
					"enum":        []string{"size", "objects", "storage_classes"},
					"description": "Metric to gather for every bucket",
				},
			},
			Required: []string{"analysis_type"},
		},
		{Name: "compare_object_counts", Description: "Compare object counts across all buckets to find which has the most or least objects"},
		{Name: "get_total_storage", Description: "Calculate total storage usage across all buckets"},
		{Name: "analyze_storage_classes", Description: "Breakdown of storage class usage across all buckets"},
		{Name: "find_largest_bucket", Description: "Find the bucket with the most storage usage"},
		{Name: "find_smallest_bucket", Description: "Find the bucket with the least storage usage"},
		{Name: "get_bucket_permissions", Description: "Check bucket policy and public access settings", Properties: bucketNameProp, Required: []string{"bucket_name"}},
		{Name: "get_bucket_versioning", Description: "Check versioning status of a bucket", Properties: bucketNameProp, Required: []string{"bucket_name"}},
		{Name: "analyze_lifecycle_rules", Description: "Summary of lifecycle policies across buckets"},
		{Name: "get_bucket_encryption", Description: "Check default encryption settings of a bucket", Properties: bucketNameProp, Required: []string{"bucket_name"}},
	}
}

// Handlers returns the handler table keyed by tool name.
func (t *Toolbox) Handlers() map[string]Handler {
	return map[string]Handler{
		"list_buckets":            t.listBuckets,
		"analyze_bucket":          t.analyzeBucket,
		"compare_buckets":         t.compareBuckets,
		"search_buckets":          t.searchBuckets,
		"batch_analyze_buckets":   t.batchAnalyze,
		"compare_object_counts":   t.compareObjectCounts,
		"get_total_storage":       t.totalStorage,
		"analyze_storage_classes": t.storageClasses,
		"find_largest_bucket":     t.extremum(true),
		"find_smallest_bucket":    t.extremum(false),
		"get_bucket_permissions":  t.permissions,
		"get_bucket_versioning":   t.versioning,
		"analyze_lifecycle_rules": t.lifecycleSummary,
		"get_bucket_encryption":   t.encryption,
	}
}

// InspectAll returns a report for every listed bucket, in listing order.
// Inspections run concurrently up to the toolbox limit; the first failure
// cancels the rest.
func (t *Toolbox) InspectAll(ctx context.Context) ([]*report.InspectionReport, error) {
	names, err := t.backend.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return t.Inspect(ctx, names)
}

// Inspect returns reports for names, in the given order.
func (t *Toolbox) Inspect(ctx context.Context, names []string) ([]*report.InspectionReport, error) {
	reports := make([]*report.InspectionReport, len(names))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	for i, name := range names {
		g.Go(func() error {
			r, err := t.reports.GetOrCompute(gctx, name)
			if err != nil {
				return err
			}
			reports[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Debug().Int("buckets", len(names)).Msg("inspected buckets")
	return reports, nil
}

func reportPayload(r *report.InspectionReport) map[string]any {
	return map[string]any{
		"bucket":          r.Bucket,
		"total_size":      r.TotalSize,
		"size_readable":   report.FormatSize(r.TotalSize),
		"object_count":    r.ObjectCount,
		"storage_classes": r.StorageClasses,
		"lifecycle_rules": r.LifecycleRules,
		"auth_ok":         r.AuthOK,
		"perm_ok":         r.PermOK,
	}
}

func (t *Toolbox) listBuckets(ctx context.Context, _ map[string]any) (map[string]any, error) {
	names, err := t.backend.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}
	return map[string]any{"buckets": names, "count": len(names)}, nil
}

func (t *Toolbox) analyzeBucket(ctx context.Context, input map[string]any) (map[string]any, error) {
	bucket, err := stringArg(input, "bucket_name")
	if err != nil {
		return nil, err
	}
	r, err := t.reports.GetOrCompute(ctx, bucket)
	if err != nil {
		return nil, err
	}
	return reportPayload(r), nil
}

func (t *Toolbox) compareBuckets(ctx context.Context, _ map[string]any) (map[string]any, error) {
	reports, err := t.InspectAll(ctx)
	if err != nil {
		return nil, err
	}
	sizes := make([]map[string]any, 0, len(reports))
	for _, r := range bySize(reports) {
		sizes = append(sizes, map[string]any{
			"bucket":        r.Bucket,
			"size":          r.TotalSize,
			"size_readable": report.FormatSize(r.TotalSize),
		})
	}
	return map[string]any{"bucket_sizes": sizes}, nil
}

// bySize returns reports sorted by total size, largest first. Equal sizes keep listing order.
func bySize(reports []*report.InspectionReport) []*report.InspectionReport {
	sorted := append([]*report.InspectionReport(nil), reports...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TotalSize > sorted[j].TotalSize })
	return sorted
}

func byObjects(reports []*report.InspectionReport) []*report.InspectionReport {
	sorted := append([]*report.InspectionReport(nil), reports...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ObjectCount > sorted[j].ObjectCount })
	return sorted
}

func (t *Toolbox) searchBuckets(ctx context.Context, input map[string]any) (map[string]any, error) {
	pattern, err := stringArg(input, "pattern")
	if err != nil {
		return nil, err
	}
	names, err := t.backend.ListResources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list buckets: %w", err)
	}

	needle := strings.ToLower(pattern)
	matching := make([]string, 0)
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), needle) {
			matching = append(matching, n)
		}
	}
	return map[string]any{"matching_buckets": matching, "pattern": pattern}, nil
}

func (t *Toolbox) batchAnalyze(ctx context.Context, input map[string]any) (map[string]any, error) {
	kind, err := stringArg(input, "analysis_type")
	if err != nil {
		return nil, err
	}
	switch kind {
	case "size", "objects", "storage_classes":
	default:
		return nil, apperrors.Validationf("tool input", "analysis_type must be one of size, objects, storage_classes (got %q)", kind)
	}

	reports, err := t.InspectAll(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0, len(reports))
	switch kind {
	case "size":
		for _, r := range bySize(reports) {
			results = append(results, map[string]any{"bucket": r.Bucket, "size": r.TotalSize, "size_readable": report.FormatSize(r.TotalSize)})
		}
	case "objects":
		for _, r := range byObjects(reports) {
			results = append(results, map[string]any{"bucket": r.Bucket, "object_count": r.ObjectCount})
		}
	case "storage_classes":
		for _, r := range reports {
			results = append(results, map[string]any{"bucket": r.Bucket, "storage_classes": r.StorageClasses})
		}
	}
	return map[string]any{"analysis_type": kind, "results": results}, nil
}

func (t *Toolbox) compareObjectCounts(ctx context.Context, _ map[string]any) (map[string]any, error) {
	reports, err := t.InspectAll(ctx)
	if err != nil {
		return nil, err
	}
	counts := make([]map[string]any, 0, len(reports))
	for _, r := range byObjects(reports) {
		counts = append(counts, map[string]any{"bucket": r.Bucket, "object_count": r.ObjectCount})
	}
	return map[string]any{"bucket_objects": counts}, nil
}

func (t *Toolbox) totalStorage(ctx context.Context, _ map[string]any) (map[string]any, error) {
	reports, err := t.InspectAll(ctx)
	if err != nil {
		return nil, err
	}
	var total uint64
	for _, r := range reports {
		total += r.TotalSize
	}
	return map[string]any{
		"total_size":    total,
		"size_readable": report.FormatSize(total),
		"bucket_count":  len(reports),
	}, nil
}

func (t *Toolbox) storageClasses(ctx context.Context, _ map[string]any) (map[string]any, error) {
	reports, err := t.InspectAll(ctx)
	if err != nil {
		return nil, err
	}
	summary := make(map[string]uint64)
	for _, r := range reports {
		for class, n := range r.StorageClasses {
			summary[class] += n
		}
	}
	return map[string]any{"storage_class_summary": summary}, nil
}

// extremum selects by total size. Ties go to the bucket listed first.
func (t *Toolbox) extremum(largest bool) Handler {
	return func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		reports, err := t.InspectAll(ctx)
		if err != nil {
			return nil, err
		}
		if len(reports) == 0 {
			return map[string]any{"error": "No buckets found"}, nil
		}

		best := reports[0]
		for _, r := range reports[1:] {
			if (largest && r.TotalSize > best.TotalSize) || (!largest && r.TotalSize < best.TotalSize) {
				best = r
			}
		}
		return map[string]any{
			"bucket":          best.Bucket,
			"size":            best.TotalSize,
			"size_readable":   report.FormatSize(best.TotalSize),
			"object_count":    best.ObjectCount,
			"storage_classes": best.StorageClasses,
			"lifecycle_rules": best.LifecycleRules,
		}, nil
	}
}

func (t *Toolbox) permissions(ctx context.Context, input map[string]any) (map[string]any, error) {
	bucket, err := stringArg(input, "bucket_name")
	if err != nil {
		return nil, err
	}

	perms := map[string]any{}

	_, found, err := t.backend.Policy(ctx, bucket)
	switch {
	case err != nil:
		log.Debug().Err(err).Str("bucket", bucket).Msg("bucket policy unreadable")
		perms["policy"] = "No bucket policy"
	case found:
		perms["policy"] = "Has bucket policy"
	default:
		perms["policy"] = "No bucket policy"
	}

	pab, err := t.backend.PublicAccessBlock(ctx, bucket)
	if err != nil || pab == nil {
		if err != nil {
			log.Debug().Err(err).Str("bucket", bucket).Msg("public access block unreadable")
		}
		perms["public_access_block"] = "Not configured"
	} else {
		perms["public_access_block"] = pab
	}

	return map[string]any{"bucket": bucket, "permissions": perms}, nil
}

func (t *Toolbox) versioning(ctx context.Context, input map[string]any) (map[string]any, error) {
	bucket, err := stringArg(input, "bucket_name")
	if err != nil {
		return nil, err
	}

	v, err := t.backend.Versioning(ctx, bucket)
	if err != nil {
		return map[string]any{"bucket": bucket, "versioning": "Error", "detail": err.Error()}, nil
	}
	status := v.Status
	if status == "" {
		status = "Disabled"
	}
	mfa := v.MFADelete
	if mfa == "" {
		mfa = "Disabled"
	}
	return map[string]any{"bucket": bucket, "versioning": status, "mfa_delete": mfa}, nil
}

func (t *Toolbox) lifecycleSummary(ctx context.Context, _ map[string]any) (map[string]any, error) {
	reports, err := t.InspectAll(ctx)
	if err != nil {
		return nil, err
	}
	summary := make([]map[string]any, 0)
	for _, r := range reports {
		if len(r.LifecycleRules) > 0 {
			summary = append(summary, map[string]any{"bucket": r.Bucket, "rules_count": len(r.LifecycleRules)})
		}
	}
	return map[string]any{"lifecycle_summary": summary}, nil
}

func (t *Toolbox) encryption(ctx context.Context, input map[string]any) (map[string]any, error) {
	bucket, err := stringArg(input, "bucket_name")
	if err != nil {
		return nil, err
	}

	enc, err := t.backend.Encryption(ctx, bucket)
	switch {
	case err != nil:
		log.Debug().Err(err).Str("bucket", bucket).Msg("encryption settings unreadable")
		return map[string]any{"bucket": bucket, "encryption": "Not configured"}, nil
	case enc == nil:
		return map[string]any{"bucket": bucket, "encryption": "Not configured"}, nil
	case !enc.Enabled:
		return map[string]any{"bucket": bucket, "encryption": "Disabled"}, nil
	default:
		return map[string]any{"bucket": bucket, "encryption": "Enabled", "algorithm": enc.Algorithm}, nil
	}
}
