package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ExtractHTTP returns ctx carrying the remote span context of an inbound request
func ExtractHTTP(ctx context.Context, header http.Header) context.Context {
	if header == nil {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(header))
}

// InjectHTTP writes the span context of ctx into an outbound header, e.g. a
// WebSocket handshake. A nil header is allocated.
func InjectHTTP(ctx context.Context, header http.Header) http.Header {
	if header == nil {
		header = make(http.Header)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))
	return header
}

// InjectToHeaders is InjectHTTP for clients that take a flat header map
func InjectToHeaders(ctx context.Context, headers map[string]string) {
	if headers == nil {
		return
	}
	for k, v := range InjectHTTP(ctx, nil) {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
}
