package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

func TestNewProvider_Disabled(t *testing.T) {
	provider, err := NewProvider(context.Background(), DefaultTracingConfig())
	require.NoError(t, err)

	assert.False(t, provider.IsEnabled())
	assert.NotNil(t, provider.GetTracer("store"))
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_RequiresEndpoint(t *testing.T) {
	config := DefaultTracingConfig()
	config.Enabled = true

	_, err := NewProvider(context.Background(), config)
	assert.Error(t, err)
}

func TestNewProvider_Enabled(t *testing.T) {
	config := DefaultTracingConfig()
	config.Enabled = true
	config.Endpoint = "localhost:4317"
	config.Insecure = true
	config.SampleRatio = 0.5

	provider, err := NewProvider(context.Background(), config)
	require.NoError(t, err)
	assert.True(t, provider.IsEnabled())

	ctx, span := provider.GetTracer("store").Start(context.Background(), "store.save")
	span.End()
	assert.NotNil(t, ctx)

	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewProvider_UnknownExporter(t *testing.T) {
	config := DefaultTracingConfig()
	config.Enabled = true
	config.Endpoint = "localhost:4317"
	config.ExporterType = "zipkin"

	_, err := NewProvider(context.Background(), config)
	assert.ErrorContains(t, err, "zipkin")
}

func TestResourceAttributes(t *testing.T) {
	config := DefaultTracingConfig()
	config.Attributes = map[string]string{"schemaui.upstream": "http://backend:8000", "deployment.environment": "test"}

	attrs := resourceAttributes(config)
	keys := make([]string, 0, len(attrs))
	for _, kv := range attrs {
		keys = append(keys, string(kv.Key))
	}
	assert.Equal(t, []string{
		"service.name", "service.version", "service.instance.id",
		"deployment.environment", "schemaui.upstream",
	}, keys)
}

func TestNilProvider(t *testing.T) {
	var provider *Provider
	assert.False(t, provider.IsEnabled())
	assert.NotNil(t, provider.GetTracer("store"))
	assert.NoError(t, provider.Shutdown(context.Background()))
}

func TestSampleRatio(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  float64
	}{
		{"negative clamps to zero", -1, 0},
		{"zero", 0, 0},
		{"half", 0.5, 0.5},
		{"one", 1, 1},
		{"above one clamps", 4, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TracingConfig{SampleRatio: tt.ratio}.ratio())
		})
	}
}

func TestInjectToHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	headers := map[string]string{}
	InjectToHeaders(context.Background(), headers)
	// no active span, nothing to propagate
	assert.Empty(t, headers)

	assert.NotPanics(t, func() { InjectToHeaders(context.Background(), nil) })
}

func TestInjectHTTP_RoundTrip(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	parent := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	header := InjectHTTP(parent, nil)
	require.NotEmpty(t, header.Get("traceparent"))

	got := trace.SpanContextFromContext(ExtractHTTP(context.Background(), header))
	assert.Equal(t, traceID, got.TraceID())
	assert.Equal(t, spanID, got.SpanID())

	// nil header leaves the context untouched
	assert.Equal(t, context.Background(), ExtractHTTP(context.Background(), nil))
}
