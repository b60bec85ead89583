package agent

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/internal/format"
	"github.com/yairfalse/bucketlens/internal/guardrail"
	"github.com/yairfalse/bucketlens/internal/llm"
	"github.com/yairfalse/bucketlens/internal/tools"
)

// Loop defaults.
const (
	DefaultMaxIterations = 8
	DefaultMaxTokens     = 1024
	DefaultTemperature   = 0.1
)

// OrchestratorConfig configures the tool-calling loop.
type OrchestratorConfig struct {
	Provider      llm.Provider
	Registry      *tools.Registry
	Guardrail     *guardrail.Guardrail
	Formatter     format.Formatter // defaults to markdown pass-through
	MaxIterations int
	MaxTokens     int
	Temperature   float64
}

// Orchestrator drives a bounded multi-turn exchange in which the model may
// request tool calls before answering.
type Orchestrator struct {
	provider      llm.Provider
	registry      *tools.Registry
	guard         *guardrail.Guardrail
	formatter     format.Formatter
	tools         []llm.Tool
	maxIterations int
	maxTokens     int
	temperature   float64
}

// NewOrchestrator validates cfg and builds an Orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, apperrors.Configurationf("orchestrator", "provider is required")
	}
	if cfg.Registry == nil {
		return nil, apperrors.Configurationf("orchestrator", "tool registry is required")
	}
	if cfg.Guardrail == nil {
		return nil, apperrors.Configurationf("orchestrator", "guardrail is required")
	}
	if cfg.Formatter == nil {
		cfg.Formatter = format.Markdown{}
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}

	return &Orchestrator{
		provider:      cfg.Provider,
		registry:      cfg.Registry,
		guard:         cfg.Guardrail,
		formatter:     cfg.Formatter,
		tools:         toolDefs(cfg.Registry.Specs()),
		maxIterations: cfg.MaxIterations,
		maxTokens:     cfg.MaxTokens,
		temperature:   cfg.Temperature,
	}, nil
}

// toolDefs converts registry specs to provider tool definitions.
func toolDefs(specs []tools.Spec) []llm.Tool {
	defs := make([]llm.Tool, 0, len(specs))
	for _, s := range specs {
		props := s.Properties
		if props == nil {
			props = map[string]any{}
		}
		required := s.Required
		if required == nil {
			required = []string{}
		}
		defs = append(defs, llm.Tool{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: map[string]any{
				"type":       "object",
				"properties": props,
				"required":   required,
			},
		})
	}
	return defs
}

// Run answers query. The iteration counter advances once per tool dispatch
// round and once for the nudge turn; reaching MaxIterations ends the turn
// as Exhausted.
func (o *Orchestrator) Run(ctx context.Context, query string) (Outcome, error) {
	ctx, span := otel.Tracer("bucketlens").Start(ctx, "agent.Orchestrator.Run")
	defer span.End()

	if out, done, err := preflight(ctx, o.guard, query); done {
		return out, err
	}

	messages := []llm.Message{{Role: llm.RoleUser, Content: query}}
	iterations := 0
	nudged, nudgeTurn := false, false

	for iterations < o.maxIterations {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		// The nudge turn is sent without tools.
		resp, err := o.provider.Chat(ctx, o.request(messages, !nudgeTurn))
		nudgeTurn = false
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			log.Error().Err(err).Int("iteration", iterations).Msg("model turn failed")
			return exhausted(ReasonProvider, ServiceErrorMessage, iterations), nil
		}

		if !resp.WantsTools() {
			text := strings.TrimSpace(resp.Content)
			if text != "" {
				span.SetAttributes(attribute.Int("iterations", iterations))
				return answered(o.formatter.Format(text), iterations), nil
			}
			if iterations == 0 && !nudged {
				log.Debug().Msg("empty model reply, nudging")
				nudged, nudgeTurn = true, true
				iterations++
				messages = append(messages, llm.Message{Role: llm.RoleUser, Content: NudgeMessage})
				continue
			}
			return answered(NoResponseMessage, iterations), nil
		}

		calls := toCalls(resp.ToolCalls)
		log.Debug().
			Int("iteration", iterations).
			Int("tool_calls", len(calls)).
			Msg("dispatching tool calls")

		results := o.registry.DispatchAll(ctx, calls)
		iterations++
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		if allFailed(results) {
			if iterations >= o.maxIterations {
				break
			}
			log.Warn().Int("tool_calls", len(calls)).Msg("all tool calls failed, retrying batch")
			results = o.registry.DispatchAll(ctx, calls)
			iterations++
			if err := ctx.Err(); err != nil {
				return Outcome{}, err
			}
			if allFailed(results) {
				return exhausted(ReasonTools, ToolsFailedMessage, iterations), nil
			}
		}

		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Content, ToolCalls: resp.ToolCalls},
			llm.Message{Role: llm.RoleUser, ToolResults: toResults(results)},
		)
	}

	log.Warn().Int("max_iterations", o.maxIterations).Msg("query exceeded iteration limit")
	return exhausted(ReasonIterations, ExhaustedMessage, iterations), nil
}

func (o *Orchestrator) request(messages []llm.Message, withTools bool) llm.ChatRequest {
	req := llm.ChatRequest{
		Messages:    messages,
		System:      toolsSystemPrompt,
		MaxTokens:   o.maxTokens,
		Temperature: o.temperature,
	}
	if withTools {
		req.Tools = o.tools
	}
	return req
}

func toCalls(tcs []llm.ToolCall) []tools.Call {
	calls := make([]tools.Call, len(tcs))
	for i, tc := range tcs {
		calls[i] = tools.Call{ID: tc.ID, Name: tc.Name, Input: tc.Input}
	}
	return calls
}

// toResults pairs every call id with its payload, in call order.
func toResults(results []tools.Result) []llm.ToolResult {
	out := make([]llm.ToolResult, len(results))
	for i, r := range results {
		out[i] = llm.ToolResult{ToolUseID: r.CallID, Content: r.Content(), IsError: r.Failed()}
	}
	return out
}

func allFailed(results []tools.Result) bool {
	for _, r := range results {
		if !r.Failed() {
			return false
		}
	}
	return true
}
