package instrumentation

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Common span attribute keys.
//
// Never record actual credentials (bearer tokens, client secrets) as span
// attributes. Only metadata such as client identifiers, scopes, and error
// codes is safe to attach; traces outlive requests and are replicated
// across monitoring infrastructure.
const (
	AttrClientID = "oauth.client_id" // Client identifier (non-secret)
	AttrScope    = "oauth.scope"     // Requested scopes
	AttrError    = "oauth.error"     // OAuth error code
	AttrSuccess  = "oauth.success"   // Operation outcome (boolean)
)

// SetSpanSuccess marks a span as successful (nil-safe).
func SetSpanSuccess(span trace.Span) {
	if span != nil {
		span.SetStatus(codes.Ok, "")
	}
}

// SetSpanError records an error on a span and sets an error status (nil-safe).
func SetSpanError(span trace.Span, err error) {
	if span != nil && err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSpanAttributes sets attributes on a span (nil-safe).
func SetSpanAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span != nil {
		span.SetAttributes(attrs...)
	}
}
