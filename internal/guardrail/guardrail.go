// Package guardrail refuses queries that ask to change storage resources.
package guardrail

import (
	"context"
	_ "embed"
	"fmt"
	"sort"

	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/rs/zerolog/log"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
)

// RejectionMessage is returned for every refused query.
const RejectionMessage = "I can only read information about your S3 buckets. Requests to change, create or remove resources are not supported."

//go:embed policy.rego
var defaultPolicy string

// Verdict is the result of checking one query.
type Verdict struct {
	Allowed bool
	Terms   []string // mutation terms found, sorted
}

// Err returns a guardrail error for a refused verdict, nil otherwise.
func (v Verdict) Err() error {
	if v.Allowed || len(v.Terms) == 0 {
		return nil
	}
	return apperrors.Guardrail(v.Terms[0])
}

// Guardrail evaluates queries against a compiled Rego policy.
type Guardrail struct {
	query rego.PreparedEvalQuery
}

// New compiles the built-in policy.
func New(ctx context.Context) (*Guardrail, error) {
	return NewFromModule(ctx, "guardrail.rego", defaultPolicy)
}

// NewFromModule compiles a custom policy. The module must live in package
// bucketlens.guardrail and define allow and matched.
func NewFromModule(ctx context.Context, name, module string) (*Guardrail, error) {
	prepared, err := rego.New(
		rego.Query("data.bucketlens.guardrail"),
		rego.Module(name, module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, apperrors.Configuration("guardrail", fmt.Errorf("compile policy %s: %w", name, err))
	}
	return &Guardrail{query: prepared}, nil
}

// Check evaluates query. It makes no network calls.
func (g *Guardrail) Check(ctx context.Context, query string) (Verdict, error) {
	results, err := g.query.Eval(ctx, rego.EvalInput(map[string]any{"query": query}))
	if err != nil {
		return Verdict{}, fmt.Errorf("evaluate guardrail: %w", err)
	}
	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return Verdict{}, fmt.Errorf("evaluate guardrail: empty result")
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return Verdict{}, fmt.Errorf("evaluate guardrail: unexpected result %T", results[0].Expressions[0].Value)
	}

	v := Verdict{Allowed: true}
	if allow, ok := doc["allow"].(bool); ok {
		v.Allowed = allow
	}
	if matched, ok := doc["matched"].([]any); ok {
		for _, m := range matched {
			if s, ok := m.(string); ok {
				v.Terms = append(v.Terms, s)
			}
		}
		sort.Strings(v.Terms)
	}

	if !v.Allowed {
		log.Info().Strs("terms", v.Terms).Msg("query rejected by guardrail")
	}
	return v, nil
}
