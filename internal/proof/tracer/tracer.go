// Package tracer provides a lightweight tracing abstraction for the proof
// module.
//
// The orchestrator emits one span per proof operation and one child span
// per verifier call without importing OpenTelemetry directly.
//
// Implementations:
//   - NoopTracer: For tests (zero overhead)
//   - OTelTracer: OpenTelemetry adapter for production
package tracer

import (
	"context"
	"time"
)

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	// End must be called exactly once, typically via defer.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	// Start creates a new span with the given name and attributes.
	//
	// Example:
	//   ctx, span := tracer.Start(ctx, tracer.SpanProofInit,
	//       tracer.String(tracer.AttrFormRef, "intake"),
	//   )
	//   defer span.End(err)
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute represents a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

// String creates a string attribute.
func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

// Bool creates a boolean attribute.
func Bool(key string, value bool) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int64 creates an int64 attribute.
func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

// Int creates an int attribute.
func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: value}
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value time.Duration) Attribute {
	return Attribute{Key: key, Value: value.Milliseconds()}
}

// Span names used by the proof module.
const (
	SpanProofInit    = "proof.init"
	SpanProofStatus  = "proof.status"
	SpanVerifierCall = "proof.verifier.call"
	SpanQRRender     = "proof.qr.render"
)

// Attribute keys used by the proof module.
const (
	AttrProofID       = "proof.id"
	AttrFormRef       = "form.ref"
	AttrDefineID      = "proof.define_id"
	AttrCorrelationID = "proof.correlation_id"
	AttrOperation     = "verifier.operation"
	AttrStatusCode    = "http.status_code"
	AttrMappings      = "proof.mappings"
	AttrDegraded      = "proof.degraded"
	AttrState         = "proof.state"
)

// Event names used by the proof module.
const (
	EventFallback      = "proof.fallback"
	EventCircuitOpen   = "proof.circuit_open"
	EventStatusChanged = "proof.status_changed"
)
