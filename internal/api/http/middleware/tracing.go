package middleware

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowmesh/schemaui/internal/tracing"
)

// Tracing creates tracing middleware for HTTP requests. Spans are named
// after the matched route so per-model paths aggregate.
func Tracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract trace context from HTTP headers
			ctx := tracing.ExtractHTTP(r.Context(), r.Header)

			tracer := otel.Tracer("schemaui.http")
			ctx, span := tracer.Start(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
			)
			defer span.End()

			span.SetAttributes(
				attribute.String(tracing.AttrHTTPMethod, r.Method),
				attribute.String(tracing.AttrHTTPURL, r.URL.String()),
				attribute.String("http.user_agent", r.UserAgent()),
				attribute.String("http.request_id", GetRequestID(r.Context())),
			)

			ww := wrap(w)
			next.ServeHTTP(ww, r.WithContext(ctx))

			// the route is only known once chi has matched it
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					span.SetName("HTTP " + r.Method + " " + pattern)
					span.SetAttributes(attribute.String(tracing.AttrHTTPRoute, pattern))
				}
				if model := rctx.URLParam("model"); model != "" {
					span.SetAttributes(attribute.String(tracing.AttrModel, model))
				}
			}
			span.SetAttributes(attribute.Int(tracing.AttrHTTPStatusCode, ww.statusCode))

			if ww.statusCode >= 500 {
				span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(ww.statusCode))
			} else {
				span.SetStatus(codes.Ok, "")
			}
		})
	}
}
