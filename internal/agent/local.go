package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/bucketlens/internal/guardrail"
	"github.com/yairfalse/bucketlens/internal/intent"
	"github.com/yairfalse/bucketlens/internal/plugin"
	"github.com/yairfalse/bucketlens/internal/tools"
	"github.com/yairfalse/bucketlens/pkg/report"
)

// LocalHelpMessage is returned when Local cannot match a query.
const LocalHelpMessage = "No language model is configured. I can answer how many buckets you have, which bucket is largest, your total storage and object counts per bucket."

// Local answers common questions heuristically, without a model.
type Local struct {
	backend plugin.Backend
	toolbox *tools.Toolbox
	guard   *guardrail.Guardrail
}

// NewLocal creates a Local responder.
func NewLocal(backend plugin.Backend, toolbox *tools.Toolbox, guard *guardrail.Guardrail) *Local {
	return &Local{backend: backend, toolbox: toolbox, guard: guard}
}

type localRule struct {
	keywords []string
	answer   func([]*report.InspectionReport) string
}

var localRules = []localRule{
	{[]string{"most storage", "largest", "biggest"}, largestAnswer},
	{[]string{"total storage", "total size"}, totalAnswer},
	{[]string{"object count", "how many objects", "objects"}, objectsAnswer},
}

// Run answers query from listings and inspections.
func (l *Local) Run(ctx context.Context, query string) (Outcome, error) {
	if out, done, err := preflight(ctx, l.guard, query); done {
		return out, err
	}

	names, err := l.backend.ListResources(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return Outcome{}, ctx.Err()
		}
		log.Error().Err(err).Msg("list buckets failed")
		return exhausted(ReasonTools, ToolsFailedMessage, 0), nil
	}

	q := strings.ToLower(query)
	if containsAny(q, []string{"how many buckets", "number of buckets", "bucket count"}) {
		return answered(fmt.Sprintf("There are %d buckets in your account.", len(names)), 0), nil
	}

	for _, rule := range localRules {
		if !containsAny(q, rule.keywords) {
			continue
		}
		reports, err := l.toolbox.Inspect(ctx, names)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{}, ctx.Err()
			}
			log.Error().Err(err).Msg("inspect buckets failed")
			return exhausted(ReasonTools, ToolsFailedMessage, 0), nil
		}
		return answered(rule.answer(reports), 0), nil
	}

	if intent.Classify(query, names).Kind == intent.List {
		return answered(listAnswer(names), 0), nil
	}
	return answered(LocalHelpMessage, 0), nil
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func largestAnswer(reports []*report.InspectionReport) string {
	if len(reports) == 0 {
		return "I don't have bucket data."
	}
	best := reports[0]
	for _, r := range reports[1:] {
		if r.TotalSize > best.TotalSize {
			best = r
		}
	}
	return fmt.Sprintf("%s uses the most storage: %s.", best.Bucket, report.FormatSize(best.TotalSize))
}

func totalAnswer(reports []*report.InspectionReport) string {
	var total uint64
	for _, r := range reports {
		total += r.TotalSize
	}
	return fmt.Sprintf("Total storage: %s across %d buckets.", report.FormatSize(total), len(reports))
}

func objectsAnswer(reports []*report.InspectionReport) string {
	if len(reports) == 0 {
		return "I don't have bucket data."
	}
	lines := make([]string, 0, len(reports))
	for _, r := range reports {
		lines = append(lines, fmt.Sprintf("%s: %d", r.Bucket, r.ObjectCount))
	}
	return strings.Join(lines, "\n")
}
