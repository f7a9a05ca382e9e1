package middleware

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var httpRequests, _ = otel.Meter("ofsync/http").Int64Counter("ofsync.http.requests",
	metric.WithDescription("HTTP requests by route pattern and status class"),
)

// Tracing wraps the router in otelhttp, which extracts the W3C trace context,
// opens the server span and records the standard request metrics. Once chi
// has matched a route, the span is renamed to the route pattern and a
// per-route counter is incremented.
func Tracing(next http.Handler) http.Handler {
	routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := wrapResponseWriter(w)
		next.ServeHTTP(wrapped, r)

		route := routePattern(r)
		span := trace.SpanFromContext(r.Context())
		span.SetName(r.Method + " " + route)
		span.SetAttributes(attribute.String("http.route", route))

		httpRequests.Add(r.Context(), 1, metric.WithAttributes(
			attribute.String("http.request.method", r.Method),
			attribute.String("http.route", route),
			attribute.String("http.status_class", statusClass(wrapped.statusOrOK())),
		))
	})

	return otelhttp.NewHandler(routed, "http.server")
}

// routePattern keeps metric cardinality bounded; unmatched paths share one label.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}
