package providers

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
)

const scopeName = "llm-bias-detector/providers"

// InstrumentedProvider wraps a provider adapter with a span per call plus
// duration and token metrics. Instrumentation sits outermost so that even
// fast-failed calls (open breaker, missing key) show up in traces.
type InstrumentedProvider struct {
	inner       chat.ProviderPort
	tracer      trace.Tracer
	duration    metric.Float64Histogram
	tokensUsed  metric.Int64Counter
	callsFailed metric.Int64Counter
}

// NewInstrumentedProvider wraps inner with tracing and metrics from the
// global OpenTelemetry providers.
func NewInstrumentedProvider(inner chat.ProviderPort) *InstrumentedProvider {
	meter := otel.Meter(scopeName)

	duration, _ := meter.Float64Histogram("provider.request.duration",
		metric.WithDescription("Provider call latency"),
		metric.WithUnit("ms"))
	tokensUsed, _ := meter.Int64Counter("provider.tokens.used",
		metric.WithDescription("Tokens reported by the provider"))
	callsFailed, _ := meter.Int64Counter("provider.calls.failed",
		metric.WithDescription("Provider calls that returned an error"))

	return &InstrumentedProvider{
		inner:       inner,
		tracer:      otel.Tracer(scopeName),
		duration:    duration,
		tokensUsed:  tokensUsed,
		callsFailed: callsFailed,
	}
}

func (i *InstrumentedProvider) ID() chat.ProviderID { return i.inner.ID() }

func (i *InstrumentedProvider) Complete(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	return i.observe(ctx, "provider.complete", req, i.inner.Complete)
}

func (i *InstrumentedProvider) CompleteJSON(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	jc, ok := i.inner.(chat.JSONCompleter)
	if !ok {
		return nil, &chat.ProviderError{
			Provider: i.inner.ID(),
			Kind:     chat.ErrKindProviderRejected,
			Message:  "provider does not support JSON completions",
		}
	}
	return i.observe(ctx, "provider.complete_json", req, jc.CompleteJSON)
}

func (i *InstrumentedProvider) observe(ctx context.Context, spanName string, req *chat.CompletionRequest,
	call func(context.Context, *chat.CompletionRequest) (*chat.Completion, error)) (*chat.Completion, error) {

	providerAttr := attribute.String("provider", string(i.inner.ID()))
	ctx, span := i.tracer.Start(ctx, spanName, trace.WithAttributes(
		providerAttr,
		attribute.Int("messages", len(req.Messages)),
	))
	defer span.End()

	start := time.Now()
	completion, err := call(ctx, req)
	elapsed := float64(time.Since(start).Milliseconds())

	if err != nil {
		kind := "unknown"
		if pe, ok := chat.AsProviderError(err); ok {
			kind = string(pe.Kind)
		}
		kindAttr := attribute.String("error.kind", kind)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.duration.Record(ctx, elapsed, metric.WithAttributes(providerAttr, kindAttr))
		i.callsFailed.Add(ctx, 1, metric.WithAttributes(providerAttr, kindAttr))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("model", completion.Model),
		attribute.Int("tokens.total", completion.Usage.TotalTokens),
	)
	i.duration.Record(ctx, elapsed, metric.WithAttributes(providerAttr))
	i.tokensUsed.Add(ctx, int64(completion.Usage.TotalTokens), metric.WithAttributes(providerAttr))
	return completion, nil
}
