package agent

import (
	"context"
	"log/slog"

	"mdtoml/internal/trace"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
)

type tracedTool struct {
	Tool
}

func withTrace(t Tool) Tool {
	return &tracedTool{Tool: t}
}

// Execute opens a span per tool call. Only argument names go on the span;
// the values can be whole documents.
func (t *tracedTool) Execute(ctx context.Context, input map[string]any) (any, error) {
	ctx, span := trace.Tracer().Start(ctx, t.Name(),
		oteltrace.WithAttributes(
			attribute.String("gen_ai.operation.name", "execute_tool"),
			attribute.String("gen_ai.tool.name", t.Name()),
			attribute.String("session.id", Session(ctx)),
			attribute.StringSlice("gen_ai.tool.arguments", argumentNames(input)),
		),
	)
	defer span.End()

	sc := span.SpanContext()
	slog.Debug("tool span started", "tool", t.Name(), "trace_id", sc.TraceID(), "span_id", sc.SpanID())

	result, err := t.Tool.Execute(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}

	if s, ok := result.(string); ok {
		span.SetAttributes(attribute.Int("gen_ai.tool.output_length", len(s)))
	}
	return result, nil
}
