package observe

import (
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// CorrelationHeader is the response header carrying the request's trace ID.
const CorrelationHeader = "X-Correlation-ID"

// otherRoute labels requests for paths outside the configured route set, so
// that random probes cannot blow up metric cardinality.
const otherRoute = "other"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

type middlewareConfig struct {
	routes   []string
	untraced []string
}

// MiddlewareOption configures [Middleware].
type MiddlewareOption func(*middlewareConfig)

// WithRoutes lists the paths reported verbatim in the "route" metric
// attribute. Any other path is reported as "other". Without this option
// every path is reported verbatim.
func WithRoutes(paths ...string) MiddlewareOption {
	return func(c *middlewareConfig) { c.routes = append(c.routes, paths...) }
}

// WithUntracedPaths disables span creation for the given paths. Durations
// are still recorded. Useful for the scrape endpoint, which Prometheus hits
// every few seconds.
func WithUntracedPaths(paths ...string) MiddlewareOption {
	return func(c *middlewareConfig) { c.untraced = append(c.untraced, paths...) }
}

// Middleware wraps the operational endpoints (/metrics, /healthz, /readyz).
// It continues or starts a W3C trace, sets [CorrelationHeader], records
// [Metrics.HTTPRequestDuration] by method, route and status class and logs
// completion at Debug (Warn for 5xx).
func Middleware(m *Metrics, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	var cfg middlewareConfig
	for _, o := range opts {
		o(&cfg)
	}
	prop := propagation.TraceContext{}

	route := func(path string) string {
		if len(cfg.routes) == 0 || slices.Contains(cfg.routes, path) {
			return path
		}
		return otherRoute
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rt := route(r.URL.Path)
			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			var span trace.Span
			if !slices.Contains(cfg.untraced, r.URL.Path) {
				ctx, span = StartSpan(ctx, "HTTP "+r.Method+" "+rt,
					trace.WithSpanKind(trace.SpanKindServer),
					trace.WithAttributes(
						semconv.HTTPRequestMethodKey.String(r.Method),
						semconv.HTTPRoute(rt),
						semconv.URLPath(r.URL.Path),
					),
				)
				defer span.End()
			}

			cid := CorrelationID(ctx)
			if cid != "" {
				w.Header().Set(CorrelationHeader, cid)
				prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(ctx))
			elapsed := time.Since(start)

			m.HTTPRequestDuration.Record(ctx, elapsed.Seconds(),
				metric.WithAttributes(
					attribute.String("method", r.Method),
					attribute.String("route", rt),
					attribute.String("status", statusClass(rec.status)),
				),
			)
			if span != nil {
				span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))
			}

			level := slog.LevelDebug
			if rec.status >= http.StatusInternalServerError {
				level = slog.LevelWarn
			}
			Logger(ctx).LogAttrs(ctx, level, "http: request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.status),
				slog.Duration("duration", elapsed),
			)
		})
	}
}

// statusClass maps 503 to "5xx".
func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
