package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/torosent/gn/internal/transport"
)

// StartWriteSpan starts a new client span for one write.
func StartWriteSpan(ctx context.Context, tracer trace.Tracer, target transport.Target, size int) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, string(target.Protocol)+" write",
		trace.WithSpanKind(trace.SpanKindClient),
	)
	span.SetAttributes(
		attribute.String("network.transport", string(target.Protocol)),
		attribute.String("server.address", target.Host),
		attribute.Int("server.port", target.Port),
		attribute.Int("gn.payload.size", size),
	)
	return ctx, span
}

// EndSpan finishes a span, recording error status if applicable.
func EndSpan(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if len(attrs) > 0 {
		span.SetAttributes(attrs...)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

type tracingWriter struct {
	inner  transport.Writer
	tracer trace.Tracer
}

// WrapWriter returns a Writer that records one span per write.
func WrapWriter(w transport.Writer, tracer trace.Tracer) transport.Writer {
	if tracer == nil {
		return w
	}
	return &tracingWriter{inner: w, tracer: tracer}
}

func (t *tracingWriter) Write(ctx context.Context, target transport.Target, payload []byte) transport.Outcome {
	ctx, span := StartWriteSpan(ctx, t.tracer, target, len(payload))
	out := t.inner.Write(ctx, target, payload)
	attrs := []attribute.KeyValue{attribute.Int("gn.bytes_written", out.BytesWritten)}
	if out.Kind != transport.KindNone {
		attrs = append(attrs, attribute.String("error.type", string(out.Kind)))
	}
	EndSpan(span, out.Err, attrs...)
	return out
}
