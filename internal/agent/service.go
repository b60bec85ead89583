package agent

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/bucketlens/internal/cache"
	"github.com/yairfalse/bucketlens/internal/config"
	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/internal/format"
	"github.com/yairfalse/bucketlens/internal/guardrail"
	"github.com/yairfalse/bucketlens/internal/llm"
	"github.com/yairfalse/bucketlens/internal/plugin"
	"github.com/yairfalse/bucketlens/internal/telemetry"
	"github.com/yairfalse/bucketlens/internal/tools"
	"github.com/yairfalse/bucketlens/pkg/report"
)

// Options configures a Service.
type Options struct {
	Mode      string // config.ModeClassifier or config.ModeTools
	Backend   plugin.Backend
	Cache     *cache.ReportCache
	Provider  llm.Provider // nil answers locally
	Guardrail *guardrail.Guardrail
	Formatter format.Formatter
	Metrics   *telemetry.Metrics

	Concurrency   int
	MaxIterations int
	MaxTokens     int
	Temperature   float64
}

// Status describes one Service.
type Status struct {
	Mode           string   `json:"mode"`
	CachedCount    int      `json:"cached_buckets"`
	Buckets        []string `json:"buckets"`
	AvailableTools int      `json:"available_tools"`
}

// Service is one agent mode bound to its own report cache. Chat turns are
// serialized.
type Service struct {
	mode      string
	backend   plugin.Backend
	cache     *cache.ReportCache
	registry  *tools.Registry
	responder Responder
	metrics   *telemetry.Metrics

	mu sync.Mutex
}

// NewService wires a Service for opts.Mode.
func NewService(opts Options) (*Service, error) {
	if opts.Backend == nil || opts.Cache == nil {
		return nil, apperrors.Configurationf("agent", "backend and cache are required")
	}
	if opts.Guardrail == nil {
		return nil, apperrors.Configurationf("agent", "guardrail is required")
	}

	toolbox := tools.NewToolbox(opts.Backend, opts.Cache, opts.Concurrency)
	registry, err := tools.NewBucketRegistry(toolbox, opts.Metrics)
	if err != nil {
		return nil, err
	}

	s := &Service{
		mode:     opts.Mode,
		backend:  opts.Backend,
		cache:    opts.Cache,
		registry: registry,
		metrics:  opts.Metrics,
	}

	switch {
	case opts.Provider == nil:
		log.Info().Str("mode", opts.Mode).Msg("no language model configured, answering locally")
		s.responder = NewLocal(opts.Backend, toolbox, opts.Guardrail)

	case opts.Mode == config.ModeTools:
		s.responder, err = NewOrchestrator(OrchestratorConfig{
			Provider:      opts.Provider,
			Registry:      registry,
			Guardrail:     opts.Guardrail,
			Formatter:     opts.Formatter,
			MaxIterations: opts.MaxIterations,
			MaxTokens:     opts.MaxTokens,
			Temperature:   opts.Temperature,
		})

	case opts.Mode == config.ModeClassifier:
		s.responder, err = NewRouter(RouterConfig{
			Provider:    opts.Provider,
			Backend:     opts.Backend,
			Toolbox:     toolbox,
			Guardrail:   opts.Guardrail,
			Formatter:   opts.Formatter,
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		})

	default:
		return nil, apperrors.Configurationf("agent", "unknown mode %q", opts.Mode)
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Mode returns the service mode.
func (s *Service) Mode() string { return s.mode }

// Ask runs one chat turn and returns its full outcome.
func (s *Service) Ask(ctx context.Context, query string) (Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.responder.Run(ctx, strings.TrimSpace(query))
	if err != nil {
		s.metrics.RecordChatOutcome(ctx, s.mode, "error")
		return Outcome{}, err
	}

	s.metrics.RecordChatOutcome(ctx, s.mode, string(out.State))
	log.Info().
		Str("mode", s.mode).
		Str("state", string(out.State)).
		Int("iterations", out.Iterations).
		Str("reason", out.Reason).
		Msg("chat turn complete")
	return out, nil
}

// Chat runs one chat turn and returns the answer text.
func (s *Service) Chat(ctx context.Context, query string) (string, error) {
	out, err := s.Ask(ctx, query)
	if err != nil {
		return "", err
	}
	return out.Answer, nil
}

// Analyze returns the report for bucket, inspecting it on a cache miss.
func (s *Service) Analyze(ctx context.Context, bucket string) (*report.InspectionReport, error) {
	if strings.TrimSpace(bucket) == "" {
		return nil, apperrors.Validationf("analyze", "bucket name is required")
	}
	return s.cache.GetOrCompute(ctx, bucket)
}

// ClearCache drops every cached report of this service.
func (s *Service) ClearCache(ctx context.Context) error {
	return s.cache.Clear(ctx)
}

// ListBuckets returns the visible bucket names.
func (s *Service) ListBuckets(ctx context.Context) ([]string, error) {
	return s.backend.ListResources(ctx)
}

// Status reports the mode and cached buckets. It makes no network calls.
func (s *Service) Status() Status {
	return Status{
		Mode:           s.mode,
		CachedCount:    s.cache.Len(),
		Buckets:        s.cache.Names(),
		AvailableTools: len(s.registry.Specs()),
	}
}

// Cache scopes accepted by Hub.ClearCache.
const (
	ScopeAll = "all"
)

var scopeAliases = map[string]string{
	"basic":    config.ModeClassifier,
	"enhanced": config.ModeTools,
}

// Hub holds one Service per mode.
type Hub struct {
	services map[string]*Service
}

// NewHub creates a Hub from services keyed by their mode.
func NewHub(services ...*Service) *Hub {
	h := &Hub{services: make(map[string]*Service, len(services))}
	for _, s := range services {
		h.services[s.Mode()] = s
	}
	return h
}

// Service returns the service for mode or one of its aliases.
func (h *Hub) Service(mode string) (*Service, bool) {
	if alias, ok := scopeAliases[mode]; ok {
		mode = alias
	}
	s, ok := h.services[mode]
	return s, ok
}

// Modes returns the hub's modes, sorted.
func (h *Hub) Modes() []string {
	modes := make([]string, 0, len(h.services))
	for m := range h.services {
		modes = append(modes, m)
	}
	sort.Strings(modes)
	return modes
}

// ClearCache clears one scope (classifier|basic, tools|enhanced) or all.
// Other scopes are untouched.
func (h *Hub) ClearCache(ctx context.Context, scope string) error {
	if scope == "" || scope == ScopeAll {
		var errs []error
		for _, m := range h.Modes() {
			errs = append(errs, h.services[m].ClearCache(ctx))
		}
		return errors.Join(errs...)
	}

	s, ok := h.Service(scope)
	if !ok {
		return apperrors.Validationf("clear cache", "unknown scope %q", scope)
	}
	return s.ClearCache(ctx)
}

// ListBuckets lists bucket names through the first service.
func (h *Hub) ListBuckets(ctx context.Context) ([]string, error) {
	modes := h.Modes()
	if len(modes) == 0 {
		return nil, apperrors.Configurationf("hub", "no agents configured")
	}
	return h.services[modes[0]].ListBuckets(ctx)
}

// Status returns the status of every service keyed by mode.
func (h *Hub) Status() map[string]Status {
	out := make(map[string]Status, len(h.services))
	for m, s := range h.services {
		out[m] = s.Status()
	}
	return out
}
