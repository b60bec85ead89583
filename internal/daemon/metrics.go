package daemon

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds HTTP request metrics using OTEL semantic conventions.
// A nil *Metrics records nothing.
type Metrics struct {
	requests        metric.Int64Counter
	requestDuration metric.Float64Histogram
	chatAnswers     metric.Int64Counter
}

// NewMetrics creates daemon metrics on the global meter provider.
func NewMetrics() (*Metrics, error) {
	return newMetricsWithMeter(otel.Meter("bucketlens.daemon"))
}

// NewMetricsWithProvider creates daemon metrics on provider.
func NewMetricsWithProvider(provider metric.MeterProvider) (*Metrics, error) {
	return newMetricsWithMeter(provider.Meter("bucketlens.daemon"))
}

func newMetricsWithMeter(meter metric.Meter) (*Metrics, error) {
	requests, err := meter.Int64Counter(
		"bucketlens.http.requests",
		metric.WithDescription("Number of HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"bucketlens.http.request.duration",
		metric.WithDescription("Duration of HTTP requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chatAnswers, err := meter.Int64Counter(
		"bucketlens.chat.answers",
		metric.WithDescription("Number of chat answers by endpoint and terminal state"),
		metric.WithUnit("{answer}"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		requests:        requests,
		requestDuration: requestDuration,
		chatAnswers:     chatAnswers,
	}, nil
}

// RecordRequest records one served request.
func (m *Metrics) RecordRequest(ctx context.Context, route string, status int, durationSeconds float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("http.route", route),
		attribute.Int("http.response.status_code", status),
	)
	m.requests.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, durationSeconds, attrs)
}

// RecordChatAnswer records the terminal state of a chat request.
func (m *Metrics) RecordChatAnswer(ctx context.Context, route, state string) {
	if m == nil {
		return
	}
	m.chatAnswers.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("http.route", route),
			attribute.String("chat.state", state),
		),
	)
}
