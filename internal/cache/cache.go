// Package cache memoizes inspection reports per bucket for one agent scope.
package cache

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/yairfalse/bucketlens/internal/emitter"
	"github.com/yairfalse/bucketlens/internal/telemetry"
	"github.com/yairfalse/bucketlens/pkg/report"
)

// Inspector produces a fresh report for a bucket.
type Inspector interface {
	Inspect(ctx context.Context, bucket string) (*report.InspectionReport, error)
}

// Store is a durable tier behind the in-memory map.
type Store interface {
	Get(scope, bucket string) (*report.InspectionReport, bool, error)
	Put(scope string, r *report.InspectionReport) error
	DeleteScope(scope string) error
}

// Options configures a ReportCache.
type Options struct {
	Scope     string
	Inspector Inspector
	Store     Store           // optional
	Emitter   emitter.Emitter // optional
	Metrics   *telemetry.Metrics
}

// ReportCache holds at most one report per bucket. Entries live until Clear.
type ReportCache struct {
	scope     string
	inspector Inspector
	store     Store
	emitter   emitter.Emitter
	metrics   *telemetry.Metrics

	mu         sync.RWMutex
	entries    map[string]*report.InspectionReport
	generation uint64

	group singleflight.Group
}

// New creates an empty ReportCache.
func New(opts Options) *ReportCache {
	return &ReportCache{
		scope:     opts.Scope,
		inspector: opts.Inspector,
		store:     opts.Store,
		emitter:   opts.Emitter,
		metrics:   opts.Metrics,
		entries:   make(map[string]*report.InspectionReport),
	}
}

// Scope returns the cache scope name.
func (c *ReportCache) Scope() string {
	return c.scope
}

// GetOrCompute returns the cached report for bucket, inspecting it on a miss.
// Concurrent misses for the same bucket share one inspection. Failures are
// not cached. The returned report is a private copy.
func (c *ReportCache) GetOrCompute(ctx context.Context, bucket string) (*report.InspectionReport, error) {
	if r, ok := c.Peek(bucket); ok {
		c.metrics.RecordCacheLookup(ctx, c.scope, "hit")
		return r, nil
	}

	for {
		v, err, shared := c.group.Do(bucket, func() (any, error) {
			return c.compute(ctx, bucket)
		})
		if err != nil {
			// A waiter inherits the leader's cancellation; retry under our own context.
			if shared && ctx.Err() == nil && isContextErr(err) {
				continue
			}
			return nil, err
		}
		return v.(*report.InspectionReport).Clone(), nil
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// compute runs under the singleflight key for bucket.
func (c *ReportCache) compute(ctx context.Context, bucket string) (*report.InspectionReport, error) {
	c.mu.RLock()
	r, ok := c.entries[bucket]
	gen := c.generation
	c.mu.RUnlock()
	if ok {
		c.metrics.RecordCacheLookup(ctx, c.scope, "hit")
		return r, nil
	}

	if r := c.loadStored(ctx, bucket); r != nil {
		c.insert(gen, r)
		return r, nil
	}

	c.metrics.RecordCacheLookup(ctx, c.scope, "miss")
	r, err := c.inspector.Inspect(ctx, bucket)
	if err != nil {
		return nil, err
	}

	if !c.insert(gen, r) {
		log.Debug().Str("scope", c.scope).Str("bucket", bucket).Msg("cache cleared during inspection, result not stored")
		return r, nil
	}

	if c.store != nil {
		if err := c.store.Put(c.scope, r); err != nil {
			log.Warn().Err(err).Str("scope", c.scope).Str("bucket", bucket).Msg("persist report failed")
		}
	}
	if c.emitter != nil {
		if err := c.emitter.Emit(ctx, c.scope, r); err != nil {
			log.Warn().Err(err).Str("scope", c.scope).Str("bucket", bucket).Msg("emit report failed")
		}
	}
	return r, nil
}

func (c *ReportCache) loadStored(ctx context.Context, bucket string) *report.InspectionReport {
	if c.store == nil {
		return nil
	}
	r, found, err := c.store.Get(c.scope, bucket)
	if err != nil {
		log.Warn().Err(err).Str("scope", c.scope).Str("bucket", bucket).Msg("read persisted report failed")
		return nil
	}
	if !found {
		return nil
	}
	c.metrics.RecordCacheLookup(ctx, c.scope, "store_hit")
	return r
}

// insert stores r unless the cache was cleared since gen was read.
func (c *ReportCache) insert(gen uint64, r *report.InspectionReport) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generation != gen {
		return false
	}
	c.entries[r.Bucket] = r
	return true
}

// Peek returns a copy of the cached report without inspecting.
func (c *ReportCache) Peek(bucket string) (*report.InspectionReport, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[bucket]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Clear empties the cache, including the persisted tier for this scope.
func (c *ReportCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]*report.InspectionReport)
	c.generation++
	c.mu.Unlock()

	log.Info().Str("scope", c.scope).Msg("report cache cleared")

	var errs []error
	if c.store != nil {
		errs = append(errs, c.store.DeleteScope(c.scope))
	}
	if c.emitter != nil {
		errs = append(errs, c.emitter.Reset(ctx, c.scope))
	}
	return errors.Join(errs...)
}

// Len returns the number of cached reports.
func (c *ReportCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Names returns the cached bucket names, sorted.
func (c *ReportCache) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.entries))
	for name := range c.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
