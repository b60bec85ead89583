// Package emitter publishes cached inspection reports to output backends.
package emitter

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/yairfalse/bucketlens/pkg/report"
)

// Emitter receives reports as a cache stores them.
type Emitter interface {
	// Emit publishes a freshly stored report for scope.
	Emit(ctx context.Context, scope string, r *report.InspectionReport) error

	// Reset forgets everything published for scope after a cache clear.
	Reset(ctx context.Context, scope string) error

	// Close cleans up resources.
	Close() error
}

// MultiEmitter fans out to every backend. A failing backend does not stop
// the others; their errors are joined.
type MultiEmitter struct {
	emitters []Emitter
}

// NewMultiEmitter creates an emitter that sends to multiple backends.
func NewMultiEmitter(emitters ...Emitter) *MultiEmitter {
	return &MultiEmitter{emitters: emitters}
}

func (m *MultiEmitter) each(fn func(Emitter) error) error {
	var errs []error
	for _, e := range m.emitters {
		errs = append(errs, fn(e))
	}
	return errors.Join(errs...)
}

// Emit sends r to every backend.
func (m *MultiEmitter) Emit(ctx context.Context, scope string, r *report.InspectionReport) error {
	return m.each(func(e Emitter) error { return e.Emit(ctx, scope, r) })
}

// Reset resets scope on every backend.
func (m *MultiEmitter) Reset(ctx context.Context, scope string) error {
	return m.each(func(e Emitter) error { return e.Reset(ctx, scope) })
}

// Close closes every backend.
func (m *MultiEmitter) Close() error {
	return m.each(func(e Emitter) error { return e.Close() })
}

// LogEmitter writes one structured log line per stored report.
type LogEmitter struct {
	logger zerolog.Logger
}

// NewLogEmitter logs through logger at debug level.
func NewLogEmitter(logger zerolog.Logger) *LogEmitter {
	return &LogEmitter{logger: logger.With().Str("component", "emitter").Logger()}
}

func (l *LogEmitter) Emit(_ context.Context, scope string, r *report.InspectionReport) error {
	l.logger.Debug().
		Str("scope", scope).
		Str("bucket", r.Bucket).
		Uint64("total_size", r.TotalSize).
		Uint64("objects", r.ObjectCount).
		Int("lifecycle_rules", len(r.LifecycleRules)).
		Bool("auth_ok", r.AuthOK).
		Bool("perm_ok", r.PermOK).
		Msg("report cached")
	return nil
}

func (l *LogEmitter) Reset(_ context.Context, scope string) error {
	l.logger.Debug().Str("scope", scope).Msg("reports cleared")
	return nil
}

func (l *LogEmitter) Close() error { return nil }
