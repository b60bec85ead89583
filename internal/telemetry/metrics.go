package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the bucketlens instruments. A nil *Metrics records nothing.
type Metrics struct {
	inspectionDuration metric.Float64Histogram
	inspections        metric.Int64Counter
	cacheLookups       metric.Int64Counter
	toolCalls          metric.Int64Counter
	llmCalls           metric.Int64Counter
	llmDuration        metric.Float64Histogram
	chatOutcomes       metric.Int64Counter
}

// NewMetrics creates the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var (
		m   Metrics
		err error
	)

	m.inspectionDuration, err = meter.Float64Histogram(
		"bucketlens_inspection_duration_seconds",
		metric.WithDescription("Duration of bucket inspections"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create inspection_duration: %w", err)
	}

	m.inspections, err = meter.Int64Counter(
		"bucketlens_inspections_total",
		metric.WithDescription("Total bucket inspections by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("create inspections: %w", err)
	}

	m.cacheLookups, err = meter.Int64Counter(
		"bucketlens_cache_lookups_total",
		metric.WithDescription("Report cache lookups by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_lookups: %w", err)
	}

	m.toolCalls, err = meter.Int64Counter(
		"bucketlens_tool_calls_total",
		metric.WithDescription("Tool dispatches by tool and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create tool_calls: %w", err)
	}

	m.llmCalls, err = meter.Int64Counter(
		"bucketlens_llm_calls_total",
		metric.WithDescription("LLM chat calls by provider and status"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_calls: %w", err)
	}

	m.llmDuration, err = meter.Float64Histogram(
		"bucketlens_llm_call_duration_seconds",
		metric.WithDescription("Duration of LLM chat calls"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("create llm_duration: %w", err)
	}

	m.chatOutcomes, err = meter.Int64Counter(
		"bucketlens_chat_outcomes_total",
		metric.WithDescription("Chat turns by agent mode and terminal state"),
	)
	if err != nil {
		return nil, fmt.Errorf("create chat_outcomes: %w", err)
	}

	return &m, nil
}

// RecordInspection records one inspection run.
func (m *Metrics) RecordInspection(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.inspections.Add(ctx, 1, attrs)
	m.inspectionDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordCacheLookup records a cache hit or miss for scope.
func (m *Metrics) RecordCacheLookup(ctx context.Context, scope, result string) {
	if m == nil {
		return
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("result", result),
	))
}

// RecordToolCall records a tool dispatch.
func (m *Metrics) RecordToolCall(ctx context.Context, tool, status string) {
	if m == nil {
		return
	}
	m.toolCalls.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("status", status),
	))
}

// RecordLLMCall records a model call.
func (m *Metrics) RecordLLMCall(ctx context.Context, provider, status string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("provider", provider),
		attribute.String("status", status),
	)
	m.llmCalls.Add(ctx, 1, attrs)
	m.llmDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordChatOutcome records the terminal state of a chat turn.
func (m *Metrics) RecordChatOutcome(ctx context.Context, mode, state string) {
	if m == nil {
		return
	}
	m.chatOutcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("state", state),
	))
}
