package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// withTrace appends trace_id and span_id when ctx carries a recording or
// remote span, so log lines can be matched to store spans.
func withTrace(ctx context.Context, args []any) []any {
	if ctx == nil {
		return args
	}
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return args
	}
	return append(args[:len(args):len(args)], "trace_id", sc.TraceID().String(), "span_id", sc.SpanID().String())
}
