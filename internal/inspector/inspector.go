// Package inspector turns a bucket name into an InspectionReport.
package inspector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yairfalse/bucketlens/internal/plugin"
	"github.com/yairfalse/bucketlens/internal/telemetry"
	"github.com/yairfalse/bucketlens/pkg/report"
)

// Inspector runs the inspection pipeline against a storage backend.
type Inspector struct {
	backend plugin.Backend
	metrics *telemetry.Metrics
	now     func() time.Time
}

// New creates an Inspector. metrics may be nil.
func New(backend plugin.Backend, metrics *telemetry.Metrics) *Inspector {
	return &Inspector{
		backend: backend,
		metrics: metrics,
		now:     time.Now,
	}
}

// state accumulates stage output for one inspection.
type state struct {
	bucket         string
	authOK         bool
	permOK         bool
	totalSize      uint64
	objectCount    uint64
	storageClasses map[string]uint64
	lifecycle      []report.LifecycleRule
	report         *report.InspectionReport
}

type stage struct {
	name string
	fn   func(context.Context, *state) error
}

func (i *Inspector) stages() []stage {
	return []stage{
		{"authenticate", i.authenticate},
		{"authorize", i.authorize},
		{"inventory", i.inventory},
		{"assemble", i.assemble},
	}
}

// Inspect runs authenticate, authorize, inventory and assemble in order.
// Only inventory failures abort; auth and permission failures are recorded
// as flags on the report.
func (i *Inspector) Inspect(ctx context.Context, bucket string) (*report.InspectionReport, error) {
	ctx, span := otel.Tracer("bucketlens").Start(ctx, "inspector.Inspect")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", bucket))

	start := time.Now()
	st := &state{bucket: bucket, storageClasses: make(map[string]uint64)}

	for _, s := range i.stages() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := s.fn(ctx, st); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, s.name)
			i.metrics.RecordInspection(ctx, "error", time.Since(start))
			log.Error().Err(err).Str("bucket", bucket).Str("stage", s.name).Msg("inspection failed")
			return nil, fmt.Errorf("inspect %s: %w", bucket, err)
		}
		log.Debug().Str("bucket", bucket).Str("stage", s.name).Msg("stage complete")
	}

	i.metrics.RecordInspection(ctx, "success", time.Since(start))
	span.SetAttributes(
		attribute.Int64("object_count", int64(st.objectCount)),
		attribute.Bool("auth_ok", st.authOK),
		attribute.Bool("perm_ok", st.permOK),
	)
	return st.report, nil
}

func (i *Inspector) authenticate(ctx context.Context, st *state) error {
	id, err := i.backend.CallerIdentity(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("bucket", st.bucket).Msg("credential check failed, continuing")
		return nil
	}
	st.authOK = true
	log.Debug().Str("account", id.Account).Msg("credentials verified")
	return nil
}

func (i *Inspector) authorize(ctx context.Context, st *state) error {
	_, _, err := i.backend.Policy(ctx, st.bucket)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn().Err(err).Str("bucket", st.bucket).Msg("bucket policy unreadable, continuing")
		return nil
	}
	st.permOK = true
	return nil
}

func (i *Inspector) inventory(ctx context.Context, st *state) error {
	err := i.backend.ListObjects(ctx, st.bucket, func(obj report.Object) error {
		if obj.Size > 0 {
			st.totalSize += uint64(obj.Size)
		}
		st.objectCount++
		class := obj.StorageClass
		if class == "" {
			class = report.DefaultStorageClass
		}
		st.storageClasses[class]++
		return nil
	})
	if err != nil {
		return fmt.Errorf("list objects: %w", err)
	}

	rules, configured, err := i.backend.LifecycleRules(ctx, st.bucket)
	if err != nil {
		return fmt.Errorf("get lifecycle configuration: %w", err)
	}
	if !configured || rules == nil {
		rules = []report.LifecycleRule{}
	}
	st.lifecycle = rules
	return nil
}

func (i *Inspector) assemble(_ context.Context, st *state) error {
	st.report = &report.InspectionReport{
		Bucket:         st.bucket,
		TotalSize:      st.totalSize,
		ObjectCount:    st.objectCount,
		StorageClasses: st.storageClasses,
		LifecycleRules: st.lifecycle,
		AuthOK:         st.authOK,
		PermOK:         st.permOK,
		InspectedAt:    i.now().UTC(),
	}
	return nil
}
