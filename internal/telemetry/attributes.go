// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPUserAgentKey  = "http.user_agent"

	// Watch attributes
	WatchGenerationKey = "watch.generation"
	WatchStateKey      = "watch.state"
	WatchEventKindKey  = "watch.event.kind"
	WatchEventStepKey  = "watch.event.step"

	// Delivery attributes
	DeliveryBackendKey    = "delivery.backend"
	DeliveryRecipientsKey = "delivery.recipients"
	DeliverySentKey       = "delivery.sent"
	DeliveryFailedKey     = "delivery.failed"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int(HTTPStatusCodeKey, statusCode))
	}
	return attrs
}

// EventAttributes describes a scheduled event.
func EventAttributes(kind string, step int, generation int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(WatchEventKindKey, kind),
		attribute.Int64(WatchGenerationKey, generation),
	}
	if step > 0 {
		attrs = append(attrs, attribute.Int(WatchEventStepKey, step))
	}
	return attrs
}

// DeliveryAttributes describes the outcome of a dispatch.
func DeliveryAttributes(backend string, recipients, sent, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(DeliveryBackendKey, backend),
		attribute.Int(DeliveryRecipientsKey, recipients),
		attribute.Int(DeliverySentKey, sent),
		attribute.Int(DeliveryFailedKey, failed),
	}
}

// RecordError marks span as failed. A nil err is ignored.
func RecordError(span trace.Span, err error, errType string) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errType != "" {
		span.SetAttributes(attribute.String(ErrorTypeKey, errType))
	}
}
