// Package agent answers natural-language questions about storage buckets.
package agent

import (
	"context"
	"strings"
	"unicode"

	"github.com/yairfalse/bucketlens/internal/guardrail"
)

// State is the terminal state of one chat turn.
type State string

const (
	Answered  State = "answered"
	Exhausted State = "exhausted"
	Rejected  State = "rejected"
)

// Exhaustion reasons.
const (
	ReasonProvider   = "provider"
	ReasonTools      = "tools"
	ReasonIterations = "iterations"
)

// Outcome is the result of one chat turn.
type Outcome struct {
	State      State
	Answer     string
	Iterations int
	Reason     string // set when State is Exhausted
}

// Responder turns a query into an Outcome. Provider and tool failures degrade
// to an Exhausted outcome; only cancellation and guardrail evaluation
// failures are returned as errors.
type Responder interface {
	Run(ctx context.Context, query string) (Outcome, error)
}

func answered(text string, iterations int) Outcome {
	return Outcome{State: Answered, Answer: text, Iterations: iterations}
}

func exhausted(reason, text string, iterations int) Outcome {
	return Outcome{State: Exhausted, Answer: text, Iterations: iterations, Reason: reason}
}

var (
	greetings      = map[string]bool{"hello": true, "hi": true, "hey": true, "hiya": true, "howdy": true}
	greetingFiller = map[string]bool{"there": true, "again": true, "all": true, "bucketlens": true}
)

// isGreeting reports whether q is a short greeting and nothing else: at most
// three words, each a greeting or filler, at least one a greeting.
func isGreeting(q string) bool {
	words := strings.Fields(strings.ToLower(q))
	if len(words) == 0 || len(words) > 3 {
		return false
	}
	greeted := false
	for _, w := range words {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) })
		switch {
		case greetings[w]:
			greeted = true
		case greetingFiller[w], w == "":
		default:
			return false
		}
	}
	return greeted
}

// preflight handles queries that never reach a provider: empty queries,
// mutation requests and greetings. done is false when the query should
// proceed.
func preflight(ctx context.Context, guard *guardrail.Guardrail, query string) (out Outcome, done bool, err error) {
	if strings.TrimSpace(query) == "" {
		return answered(EmptyQueryMessage, 0), true, nil
	}

	verdict, err := guard.Check(ctx, query)
	if err != nil {
		return Outcome{}, true, err
	}
	if !verdict.Allowed {
		return Outcome{State: Rejected, Answer: guardrail.RejectionMessage}, true, nil
	}

	if isGreeting(query) {
		return answered(GreetingMessage, 0), true, nil
	}
	return Outcome{}, false, nil
}
