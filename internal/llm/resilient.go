package llm

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/bucketlens/internal/resilience"
	"github.com/yairfalse/bucketlens/internal/telemetry"
)

// Resilient wraps a Provider with per-attempt timeouts, bounded retries of
// transient failures and call metrics.
type Resilient struct {
	inner   Provider
	caller  *resilience.Caller[*ChatResponse]
	metrics *telemetry.Metrics
}

// NewResilient wraps p. A nil metrics records nothing.
func NewResilient(p Provider, cfg resilience.Config, metrics *telemetry.Metrics) *Resilient {
	return &Resilient{
		inner:   p,
		caller:  resilience.NewCaller[*ChatResponse](cfg),
		metrics: metrics,
	}
}

// Name returns the wrapped provider's name.
func (r *Resilient) Name() string { return r.inner.Name() }

// TestConnection delegates to the wrapped provider.
func (r *Resilient) TestConnection(ctx context.Context) error {
	return r.inner.TestConnection(ctx)
}

// Chat calls the wrapped provider, retrying transient errors.
func (r *Resilient) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	attempts := 0

	resp, err := r.caller.Do(ctx, "chat", func(ctx context.Context) (*ChatResponse, error) {
		attempts++
		return r.inner.Chat(ctx, req)
	})

	status := "ok"
	if err != nil {
		status = "error"
		log.Warn().Err(err).
			Str("provider", r.inner.Name()).
			Int("attempts", attempts).
			Msg("llm call failed")
	} else {
		log.Debug().
			Str("provider", r.inner.Name()).
			Int("attempts", attempts).
			Int("input_tokens", resp.InputTokens).
			Int("output_tokens", resp.OutputTokens).
			Str("stop_reason", resp.StopReason).
			Msg("llm call completed")
	}
	r.metrics.RecordLLMCall(ctx, r.inner.Name(), status, time.Since(start))
	return resp, err
}
