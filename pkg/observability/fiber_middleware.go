package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// FiberMiddleware opens a server span per request, continues any incoming
// W3C trace and records request count and latency per route.
func FiberMiddleware() fiber.Handler {
	tracer := otel.Tracer(InstrumentationName)
	meter := otel.Meter(InstrumentationName)

	requests, _ := meter.Int64Counter(
		"http_server_requests_total",
		metric.WithDescription("HTTP requests served"),
		metric.WithUnit("{request}"),
	)
	latency, _ := meter.Float64Histogram(
		"http_server_request_duration_seconds",
		metric.WithDescription("HTTP request latency"),
		metric.WithUnit("s"),
	)

	return func(c fiber.Ctx) error {
		ctx := otel.GetTextMapPropagator().Extract(c.Context(), propagation.HeaderCarrier(c.GetReqHeaders()))

		route := c.Route().Path
		ctx, span := tracer.Start(ctx, c.Method()+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Method()),
				attribute.String("http.route", route),
				attribute.String("client.address", c.IP()),
				attribute.String("user_agent.original", c.Get(fiber.HeaderUserAgent)),
			),
		)
		defer span.End()

		c.SetContext(ctx)
		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Set("X-Trace-Id", sc.TraceID().String())
		}

		start := time.Now()
		err := c.Next()
		elapsed := time.Since(start).Seconds()

		code := c.Response().StatusCode()
		span.SetAttributes(attribute.Int("http.response.status_code", code))
		if code >= fiber.StatusInternalServerError {
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(code))
			if err != nil {
				span.RecordError(err)
			}
		}

		attrs := metric.WithAttributes(
			attribute.String("http.request.method", c.Method()),
			attribute.String("http.route", c.Route().Path),
			attribute.Int("http.response.status_code", code),
		)
		requests.Add(ctx, 1, attrs)
		latency.Record(ctx, elapsed, attrs)

		return err
	}
}
