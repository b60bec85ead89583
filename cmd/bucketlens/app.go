package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/yairfalse/bucketlens/internal/agent"
	"github.com/yairfalse/bucketlens/internal/cache"
	"github.com/yairfalse/bucketlens/internal/config"
	"github.com/yairfalse/bucketlens/internal/emitter"
	"github.com/yairfalse/bucketlens/internal/filter"
	"github.com/yairfalse/bucketlens/internal/format"
	"github.com/yairfalse/bucketlens/internal/guardrail"
	"github.com/yairfalse/bucketlens/internal/inspector"
	"github.com/yairfalse/bucketlens/internal/llm"
	"github.com/yairfalse/bucketlens/internal/plugin"
	"github.com/yairfalse/bucketlens/internal/plugin/aws"
	"github.com/yairfalse/bucketlens/internal/resilience"
	"github.com/yairfalse/bucketlens/internal/storage"
	"github.com/yairfalse/bucketlens/internal/telemetry"
)

// app is the wired object graph shared by every subcommand.
type app struct {
	cfg       *config.Config
	telemetry *telemetry.Provider
	backend   plugin.Backend
	provider  llm.Provider
	store     *storage.ReportStore
	emitter   emitter.Emitter
	hub       *agent.Hub
}

// newApp wires config into a Hub with one Service per agent mode. Extra
// metric readers are attached to the meter provider.
func newApp(ctx context.Context, cfg *config.Config, readers ...sdkmetric.Reader) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	a.telemetry, err = telemetry.NewProvider(ctx, cfg.OTEL, readers...)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}
	metrics := a.telemetry.Metrics()

	rc := resilience.Config{
		CallTimeout:  cfg.Provider.CallTimeout,
		MaxAttempts:  cfg.Provider.MaxAttempts,
		InitialDelay: cfg.Provider.InitialDelay,
		Multiplier:   resilience.DefaultConfig().Multiplier,
	}

	awsOpts := aws.Config{
		Region:                   cfg.AWS.Region,
		Profile:                  cfg.AWS.Profile,
		AccessKeyID:              cfg.AWS.AccessKeyID,
		SecretAccessKey:          cfg.AWS.SecretAccessKey,
		SessionToken:             cfg.AWS.SessionToken,
		RequireStaticCredentials: cfg.AWS.RequireStaticCredentials,
		Endpoint:                 cfg.AWS.Endpoint,
		Resilience:               rc,
	}
	awsCfg, err := aws.LoadConfig(ctx, awsOpts)
	if err != nil {
		return nil, err
	}

	f, err := filter.New(cfg.Filter.Include, cfg.Filter.Exclude)
	if err != nil {
		return nil, err
	}
	s3Backend := aws.NewFromConfig(awsCfg, awsOpts)
	plugin.Register(s3Backend)
	a.backend = filter.Wrap(s3Backend, f)

	if cfg.Cache.Path != "" {
		a.store, err = storage.Open(cfg.Cache.Path)
		if err != nil {
			return nil, err
		}
	}

	prom, err := emitter.NewPrometheusEmitter(a.telemetry.Meter())
	if err != nil {
		return nil, err
	}
	a.emitter = emitter.NewMultiEmitter(prom, emitter.NewLogEmitter(log.Logger))

	guard, err := guardrail.New(ctx)
	if err != nil {
		return nil, err
	}
	formatter, err := format.ForSurface(cfg.Agent.Surface)
	if err != nil {
		return nil, err
	}

	base, err := llm.NewFromConfig(cfg.LLM, awsCfg)
	if err != nil {
		return nil, err
	}
	if base != nil {
		a.provider = llm.NewResilient(base, rc, metrics)
	}

	insp := inspector.New(a.backend, metrics)
	var services []*agent.Service
	for _, mode := range []string{config.ModeClassifier, config.ModeTools} {
		opts := agent.Options{
			Mode:          mode,
			Backend:       a.backend,
			Cache:         a.newCache(mode, insp, metrics),
			Provider:      a.provider,
			Guardrail:     guard,
			Formatter:     formatter,
			Metrics:       metrics,
			Concurrency:   cfg.Agent.Concurrency,
			MaxIterations: cfg.Agent.MaxIterations,
			MaxTokens:     cfg.Agent.MaxTokens,
			Temperature:   cfg.Agent.Temperature,
		}
		if mode == config.ModeClassifier {
			opts.MaxTokens = cfg.Agent.ClassifierMaxTokens
			opts.Temperature = cfg.Agent.ClassifierTemperature
		}

		svc, err := agent.NewService(opts)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	a.hub = agent.NewHub(services...)

	providerName := config.ProviderNone
	if a.provider != nil {
		providerName = a.provider.Name()
	}
	log.Info().
		Str("region", cfg.AWS.Region).
		Str("llm", providerName).
		Str("default_mode", cfg.Agent.Mode).
		Bool("persistent_cache", a.store != nil).
		Msg("bucketlens ready")

	return a, nil
}

func (a *app) newCache(scope string, insp *inspector.Inspector, metrics *telemetry.Metrics) *cache.ReportCache {
	opts := cache.Options{
		Scope:     scope,
		Inspector: insp,
		Emitter:   a.emitter,
		Metrics:   metrics,
	}
	if a.store != nil {
		opts.Store = a.store
	}
	return cache.New(opts)
}

// service returns the service for mode, falling back to the configured default.
func (a *app) service(mode string) (*agent.Service, error) {
	if mode == "" {
		mode = a.cfg.Agent.Mode
	}
	svc, ok := a.hub.Service(mode)
	if !ok {
		return nil, fmt.Errorf("unknown agent mode %q", mode)
	}
	return svc, nil
}

// Close releases the store, emitter and telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.emitter != nil {
		errs = append(errs, a.emitter.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.telemetry != nil {
		errs = append(errs, a.telemetry.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
