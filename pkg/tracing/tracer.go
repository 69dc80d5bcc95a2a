package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	AttrNotificationID      = "notification.id"
	AttrNotificationType    = "notification.type"
	AttrNotificationChannel = "notification.channel"
	AttrCustomerID          = "customer.id"

	AttrMessagingSystem      = "messaging.system"
	AttrMessagingDestination = "messaging.destination"
	AttrMessagingOperation   = "messaging.operation"
)

// Tracer is a thin wrapper over an otel tracer with the span kinds
// and attributes the notifier uses.
type Tracer struct {
	tracer trace.Tracer
}

// NewTracer creates a new tracer instance.
func NewTracer(tracer trace.Tracer) *Tracer {
	return &Tracer{tracer: tracer}
}

// StartServerSpan creates a new server span.
func (t *Tracer) StartServerSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.startSpan(ctx, operation, trace.SpanKindServer, attrs...)
}

// StartClientSpan creates a new client span.
func (t *Tracer) StartClientSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.startSpan(ctx, operation, trace.SpanKindClient, attrs...)
}

func (t *Tracer) startSpan(ctx context.Context, operation string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, operation,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

// RecordError records an error on the span.
func (t *Tracer) RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// NotificationAttributes builds the standard span attributes for one
// notification.
func NotificationAttributes(id, typ, channel, customerID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrNotificationID, id),
		attribute.String(AttrNotificationType, typ),
		attribute.String(AttrNotificationChannel, channel),
		attribute.String(AttrCustomerID, customerID),
	}
}

// GetTracer returns the named tracer from the global provider.
func GetTracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
