package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/internal/format"
	"github.com/yairfalse/bucketlens/internal/guardrail"
	"github.com/yairfalse/bucketlens/internal/intent"
	"github.com/yairfalse/bucketlens/internal/llm"
	"github.com/yairfalse/bucketlens/internal/plugin"
	"github.com/yairfalse/bucketlens/internal/tools"
	"github.com/yairfalse/bucketlens/pkg/report"
)

// Classifier-mode defaults.
const (
	DefaultClassifierMaxTokens   = 512
	DefaultClassifierTemperature = 0.3
)

// RouterConfig configures the classifier-routed responder.
type RouterConfig struct {
	Provider    llm.Provider
	Backend     plugin.Backend
	Toolbox     *tools.Toolbox
	Guardrail   *guardrail.Guardrail
	Formatter   format.Formatter
	MaxTokens   int
	Temperature float64
}

// Router classifies a query, gathers the minimal data for its intent and
// asks the model once.
type Router struct {
	provider    llm.Provider
	backend     plugin.Backend
	toolbox     *tools.Toolbox
	guard       *guardrail.Guardrail
	formatter   format.Formatter
	maxTokens   int
	temperature float64
}

// NewRouter validates cfg and builds a Router.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Provider == nil {
		return nil, apperrors.Configurationf("router", "provider is required")
	}
	if cfg.Backend == nil || cfg.Toolbox == nil {
		return nil, apperrors.Configurationf("router", "backend and toolbox are required")
	}
	if cfg.Guardrail == nil {
		return nil, apperrors.Configurationf("router", "guardrail is required")
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.Markdown{}
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultClassifierMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultClassifierTemperature
	}
	return &Router{
		provider:    cfg.Provider,
		backend:     cfg.Backend,
		toolbox:     cfg.Toolbox,
		guard:       cfg.Guardrail,
		formatter:   cfg.Formatter,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Run answers query with at most one model call.
func (r *Router) Run(ctx context.Context, query string) (Outcome, error) {
	ctx, span := otel.Tracer("bucketlens").Start(ctx, "agent.Router.Run")
	defer span.End()

	if out, done, err := preflight(ctx, r.guard, query); done {
		return out, err
	}

	names, err := r.backend.ListResources(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.Error().Err(err).Msg("list buckets failed")
		return exhausted(ReasonTools, ToolsFailedMessage, 0), nil
	}

	in := intent.Classify(query, names)
	span.SetAttributes(attribute.String("intent", string(in.Kind)))
	log.Debug().Str("intent", string(in.Kind)).Strs("buckets", in.Buckets).Msg("query classified")

	if in.Kind == intent.List {
		return answered(listAnswer(names), 0), nil
	}

	data, err := r.gather(ctx, in, names)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.Error().Err(err).Str("intent", string(in.Kind)).Msg("gather bucket data failed")
		return exhausted(ReasonTools, ToolsFailedMessage, 0), nil
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return Outcome{}, fmt.Errorf("encode context: %w", err)
	}

	resp, err := r.provider.Chat(ctx, llm.ChatRequest{
		System:      classifierSystemPrompt,
		MaxTokens:   r.maxTokens,
		Temperature: r.temperature,
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf("S3 Data:\n%s\n\nUser Question: %s", payload, query),
		}},
	})
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.Error().Err(err).Msg("model call failed")
		return exhausted(ReasonProvider, ServiceErrorMessage, 1), nil
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return answered(NoResponseMessage, 1), nil
	}
	return answered(r.formatter.Format(text), 1), nil
}

// gather inspects only what the intent needs. Only aggregate inspects every bucket.
func (r *Router) gather(ctx context.Context, in intent.Intent, names []string) (map[string]any, error) {
	var reports []*report.InspectionReport
	var err error

	switch in.Kind {
	case intent.Aggregate:
		reports, err = r.toolbox.Inspect(ctx, names)
	case intent.Specific:
		reports, err = r.toolbox.Inspect(ctx, in.Buckets)
	default:
		return map[string]any{
			"bucket_names": names,
			"note":         "Bucket details available on request",
		}, nil
	}
	if err != nil {
		return nil, err
	}

	data := make(map[string]any, len(reports))
	for _, rep := range reports {
		data[rep.Bucket] = rep
	}
	return data, nil
}

func listAnswer(names []string) string {
	return fmt.Sprintf("Available buckets (%d): %s", len(names), strings.Join(names, ", "))
}
