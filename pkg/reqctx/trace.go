package reqctx

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// TraceIDFromContext returns the active OpenTelemetry trace id, or "" when
// the request is not sampled.
func TraceIDFromContext(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}

// LogAttrs is the request correlation data added to log lines.
func LogAttrs(ctx context.Context) []any {
	attrs := make([]any, 0, 6)
	if id := RequestIDFromContext(ctx); id != "" {
		attrs = append(attrs, "request_id", id)
	}
	if tid := TraceIDFromContext(ctx); tid != "" {
		attrs = append(attrs, "trace_id", tid)
	}
	if uid, ok := UserIDFromContext(ctx); ok {
		attrs = append(attrs, "user_id", uid.String())
	}
	return attrs
}
