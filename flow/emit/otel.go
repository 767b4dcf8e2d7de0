package emit

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace"
	oteltrace "go.opentelemetry.io/otel/trace"
)

// OTelEmitter turns each flow Event into an OpenTelemetry span: a point-in-
// time span named after the event Kind, tagged with executionID and nodeID,
// carrying Payload as attributes. It is a consumer of the event bus like any
// other Emitter, not a replacement for LogEmitter — combine them with a
// MultiEmitter.
type OTelEmitter struct {
	tracer   oteltrace.Tracer
	provider *trace.TracerProvider
}

// NewOTelEmitter wraps a tracer obtained from otel.Tracer("ragflow"). The
// optional provider is used only so Flush can force-export pending spans
// before process shutdown.
func NewOTelEmitter(tracer oteltrace.Tracer, provider *trace.TracerProvider) *OTelEmitter {
	return &OTelEmitter{tracer: tracer, provider: provider}
}

func (o *OTelEmitter) Emit(event Event) {
	_, span := o.tracer.Start(context.Background(), string(event.Kind))
	o.annotate(span, event)
	span.End()
}

func (o *OTelEmitter) EmitBatch(ctx context.Context, events []Event) error {
	for _, event := range events {
		_, span := o.tracer.Start(ctx, string(event.Kind))
		o.annotate(span, event)
		span.End()
	}
	return nil
}

func (o *OTelEmitter) annotate(span oteltrace.Span, event Event) {
	span.SetAttributes(
		attribute.String("execution_id", event.ExecutionID),
		attribute.String("node_id", event.NodeID),
	)
	for k, v := range event.Payload {
		span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", v)))
	}
	if errMsg, ok := event.Payload["error"].(string); ok {
		span.SetStatus(codes.Error, errMsg)
		span.RecordError(fmt.Errorf("%s", errMsg))
	}
}

func (o *OTelEmitter) Flush(ctx context.Context) error {
	if o.provider == nil {
		return nil
	}
	return o.provider.ForceFlush(ctx)
}
