package middleware

import (
	"fmt"
	"net/http"

	"seat-reservation/pkg/telemetry"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

const TraceIDHeader = "X-Trace-ID"

// Tracing opens a server span per request, continuing any trace context
// sent by the caller, and echoes the trace id back in X-Trace-ID.
func Tracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := telemetry.Tracer().Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPMethod(r.Method),
					semconv.HTTPURL(r.URL.String()),
					semconv.NetHostName(r.Host),
					semconv.UserAgentOriginal(r.UserAgent()),
				),
			)
			defer span.End()

			if id := telemetry.TraceID(ctx); id != "" {
				w.Header().Set(TraceIDHeader, id)
			}

			rw := wrap(w)
			next.ServeHTTP(rw, r.WithContext(ctx))

			if rctx := chi.RouteContext(ctx); rctx != nil && rctx.RoutePattern() != "" {
				span.SetName(fmt.Sprintf("%s %s", r.Method, rctx.RoutePattern()))
				span.SetAttributes(semconv.HTTPRoute(rctx.RoutePattern()))
			}
			span.SetAttributes(semconv.HTTPStatusCode(rw.statusCode))
			if rw.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(rw.statusCode))
			}
		})
	}
}
