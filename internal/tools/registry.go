// Package tools declares the tools a model may call and dispatches them to handlers.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/rs/zerolog/log"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/internal/telemetry"
)

// Spec describes a tool to the model.
type Spec struct {
	Name        string
	Description string
	Properties  map[string]any // JSON Schema properties
	Required    []string
}

// Call is one tool invocation requested by the model.
type Call struct {
	ID    string
	Name  string
	Input map[string]any
}

// Result is the outcome of one Call. A payload with an "error" key is a failure.
type Result struct {
	CallID  string
	Name    string
	Payload map[string]any
}

// Failed reports whether the payload carries an error.
func (r Result) Failed() bool {
	_, ok := r.Payload["error"]
	return ok
}

// Content renders the payload as JSON for the model.
func (r Result) Content() string {
	b, err := json.Marshal(r.Payload)
	if err != nil {
		return fmt.Sprintf(`{"error":%q}`, "encode result: "+err.Error())
	}
	return string(b)
}

// Handler executes a tool. Returned errors become error payloads.
type Handler func(ctx context.Context, input map[string]any) (map[string]any, error)

// Registry is an immutable set of tool specs paired with their handlers.
type Registry struct {
	specs    []Spec
	handlers map[string]Handler
	metrics  *telemetry.Metrics
}

// New builds a Registry. Every spec needs a handler and every handler a spec.
func New(specs []Spec, handlers map[string]Handler, metrics *telemetry.Metrics) (*Registry, error) {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, apperrors.Configurationf("tool registry", "tool spec with empty name")
		}
		if seen[s.Name] {
			return nil, apperrors.Configurationf("tool registry", "duplicate tool %q", s.Name)
		}
		seen[s.Name] = true
		if handlers[s.Name] == nil {
			return nil, apperrors.Configurationf("tool registry", "tool %q has no handler", s.Name)
		}
	}
	for name := range handlers {
		if !seen[name] {
			return nil, apperrors.Configurationf("tool registry", "handler %q has no spec", name)
		}
	}

	return &Registry{
		specs:    slices.Clone(specs),
		handlers: maps.Clone(handlers),
		metrics:  metrics,
	}, nil
}

// Specs returns a copy of the published tool specs.
func (r *Registry) Specs() []Spec {
	return slices.Clone(r.specs)
}

// Has reports whether name is a registered tool.
func (r *Registry) Has(name string) bool {
	_, ok := r.handlers[name]
	return ok
}

// Dispatch runs call and always returns a result; it never panics.
func (r *Registry) Dispatch(ctx context.Context, call Call) (res Result) {
	res = Result{CallID: call.ID, Name: call.Name}

	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic", p).Str("tool", call.Name).Msg("tool handler panicked")
			res.Payload = errorPayload(fmt.Errorf("tool %s failed: %v", call.Name, p))
		}
		status := "ok"
		if res.Failed() {
			status = "error"
		}
		r.metrics.RecordToolCall(ctx, call.Name, status)
	}()

	h, ok := r.handlers[call.Name]
	if !ok {
		res.Payload = map[string]any{"error": "unknown tool: " + call.Name}
		return res
	}

	if err := ctx.Err(); err != nil {
		res.Payload = errorPayload(err)
		return res
	}

	payload, err := h(ctx, call.Input)
	if err != nil {
		log.Warn().Err(err).Str("tool", call.Name).Msg("tool execution failed")
		res.Payload = errorPayload(err)
		return res
	}
	if payload == nil {
		payload = map[string]any{}
	}
	res.Payload = payload
	return res
}

// DispatchAll runs calls in order and returns one result per call.
func (r *Registry) DispatchAll(ctx context.Context, calls []Call) []Result {
	results := make([]Result, 0, len(calls))
	for _, c := range calls {
		results = append(results, r.Dispatch(ctx, c))
	}
	return results
}

func errorPayload(err error) map[string]any {
	p := map[string]any{"error": err.Error()}
	var e *apperrors.Error
	if errors.As(err, &e) {
		p["error_type"] = string(e.Type)
	}
	return p
}

// stringArg reads a required, non-empty string input.
func stringArg(input map[string]any, key string) (string, error) {
	v, ok := input[key]
	if !ok {
		return "", apperrors.Validationf("tool input", "missing required parameter %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", apperrors.Validationf("tool input", "parameter %q must be a string", key)
	}
	if s == "" {
		return "", apperrors.Validationf("tool input", "parameter %q must not be empty", key)
	}
	return s, nil
}
