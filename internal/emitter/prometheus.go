package emitter

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yairfalse/bucketlens/pkg/report"
)

// PrometheusEmitter exposes cached reports as OTEL gauges, scraped through
// the Prometheus exporter.
type PrometheusEmitter struct {
	meter metric.Meter

	// Metrics
	bucketSize         metric.Int64ObservableGauge
	bucketObjects      metric.Int64ObservableGauge
	reportsTotal       metric.Int64Counter
	reportChangesTotal metric.Int64Counter

	// State for observable gauges, keyed by scope then bucket
	mu      sync.RWMutex
	reports map[string]map[string]*report.InspectionReport

	// Diff tracking
	diffTracker *DiffTracker
}

// NewPrometheusEmitter creates a Prometheus emitter. A nil meter uses the
// global meter provider.
func NewPrometheusEmitter(meter metric.Meter) (*PrometheusEmitter, error) {
	if meter == nil {
		meter = otel.Meter("bucketlens")
	}

	e := &PrometheusEmitter{
		meter:       meter,
		reports:     make(map[string]map[string]*report.InspectionReport),
		diffTracker: NewDiffTracker(),
	}

	if err := e.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return e, nil
}

func (e *PrometheusEmitter) initMetrics() error {
	var err error

	e.bucketSize, err = e.meter.Int64ObservableGauge(
		"bucketlens_bucket_size_bytes",
		metric.WithDescription("Total object bytes per cached bucket report"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return fmt.Errorf("create bucket_size gauge: %w", err)
	}

	e.bucketObjects, err = e.meter.Int64ObservableGauge(
		"bucketlens_bucket_objects",
		metric.WithDescription("Object count per cached bucket report"),
	)
	if err != nil {
		return fmt.Errorf("create bucket_objects gauge: %w", err)
	}

	if _, err = e.meter.RegisterCallback(e.observeReports, e.bucketSize, e.bucketObjects); err != nil {
		return fmt.Errorf("register gauge callback: %w", err)
	}

	e.reportsTotal, err = e.meter.Int64Counter(
		"bucketlens_reports_emitted_total",
		metric.WithDescription("Total reports stored by a cache"),
	)
	if err != nil {
		return fmt.Errorf("create reports counter: %w", err)
	}

	e.reportChangesTotal, err = e.meter.Int64Counter(
		"bucketlens_report_changes_total",
		metric.WithDescription("Total report changes detected on re-inspection"),
	)
	if err != nil {
		return fmt.Errorf("create report_changes counter: %w", err)
	}

	return nil
}

// Emit records r as the current report for its bucket in scope.
func (e *PrometheusEmitter) Emit(ctx context.Context, scope string, r *report.InspectionReport) error {
	if r == nil {
		return nil
	}

	e.reportsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("scope", scope)))
	e.emitDiff(ctx, scope, r)

	e.mu.Lock()
	if e.reports[scope] == nil {
		e.reports[scope] = make(map[string]*report.InspectionReport)
	}
	e.reports[scope][r.Bucket] = r.Clone()
	e.mu.Unlock()

	e.diffTracker.Update(scope, r)
	return nil
}

// emitDiff counts and logs a change against the previous report for the bucket.
func (e *PrometheusEmitter) emitDiff(ctx context.Context, scope string, r *report.InspectionReport) {
	diff := e.diffTracker.ComputeDiff(scope, r)
	if diff == nil {
		return
	}

	e.reportChangesTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("change_type", string(diff.Type)),
	))

	if diff.Type != report.DiffModified {
		return
	}

	logEvent := log.Info().
		Str("scope", scope).
		Str("bucket", r.Bucket).
		Str("change", string(diff.Type))
	for field, change := range diff.Changes {
		logEvent = logEvent.
			Str(field+".from", change.Previous).
			Str(field+".to", change.Current)
	}
	logEvent.Msg("bucket report changed")
}

// Reset drops the gauges for scope. Diff baselines are kept.
func (e *PrometheusEmitter) Reset(_ context.Context, scope string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.reports, scope)
	return nil
}

// observeReports is the callback for the per-bucket gauges.
func (e *PrometheusEmitter) observeReports(_ context.Context, o metric.Observer) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	for scope, reports := range e.reports {
		for bucket, r := range reports {
			attrs := metric.WithAttributes(
				attribute.String("scope", scope),
				attribute.String("bucket", bucket),
			)
			o.ObserveInt64(e.bucketSize, int64(r.TotalSize), attrs)
			o.ObserveInt64(e.bucketObjects, int64(r.ObjectCount), attrs)
		}
	}
	return nil
}

// Close is a no-op for Prometheus emitter.
func (e *PrometheusEmitter) Close() error {
	return nil
}
