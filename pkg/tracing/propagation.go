package tracing

import (
	"context"
	"encoding/hex"
	"net/http"
	"strings"
)

const (
	// TraceparentHeader is the W3C Trace Context traceparent header name.
	TraceparentHeader = "traceparent"

	// TraceIDHeader is the response header carrying the active trace's
	// identifier, injected on every response an instrumented handler
	// produces.
	TraceIDHeader = "trace-id"

	// W3C Trace Context version.
	traceparentVersion = "00"

	// Trace flags.
	flagSampled = 0x01
)

// Carrier is an interface for reading and writing propagation data.
type Carrier interface {
	Get(key string) string
	Set(key, value string)
}

// HeaderCarrier adapts http.Header to the Carrier interface.
type HeaderCarrier http.Header

// Get returns the value for a key.
func (hc HeaderCarrier) Get(key string) string {
	return http.Header(hc).Get(key)
}

// Set sets a key-value pair.
func (hc HeaderCarrier) Set(key, value string) {
	http.Header(hc).Set(key, value)
}

// Extract extracts the trace context from HTTP headers (W3C traceparent
// format). If no valid traceparent header is found, returns the original
// context unchanged.
func Extract(ctx context.Context, headers http.Header) context.Context {
	return ExtractCarrier(ctx, HeaderCarrier(headers))
}

// Inject injects the trace context into HTTP headers.
// If there is no span in the context, this is a no-op.
func Inject(ctx context.Context, headers http.Header) {
	InjectCarrier(ctx, HeaderCarrier(headers))
}

// ExtractCarrier extracts span context from an arbitrary carrier.
//
// The traceparent format is: {version}-{trace-id}-{parent-id}-{flags}
// Example: 00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01
func ExtractCarrier(ctx context.Context, carrier Carrier) context.Context {
	traceparent := carrier.Get(TraceparentHeader)
	if traceparent == "" {
		return ctx
	}

	sc, ok := parseTraceparent(traceparent)
	if !ok {
		return ctx
	}

	return contextWithSpanContext(ctx, sc)
}

// InjectCarrier injects span context into an arbitrary carrier.
func InjectCarrier(ctx context.Context, carrier Carrier) {
	// Prefer the active span over a previously extracted remote context
	if span := SpanFromContext(ctx); span != nil {
		carrier.Set(TraceparentHeader, formatTraceparent(span.TraceID, span.SpanID, span.reporter != nil))
		return
	}

	if sc := SpanContextFromContext(ctx); sc.IsValid() {
		carrier.Set(TraceparentHeader, formatTraceparent(sc.TraceID, sc.SpanID, sc.Sampled))
	}
}

// parseTraceparent parses a W3C traceparent header.
// Returns the span context and whether parsing was successful.
func parseTraceparent(traceparent string) (SpanContext, bool) {
	parts := strings.Split(traceparent, "-")
	if len(parts) != 4 {
		return SpanContext{}, false
	}

	version := parts[0]
	traceID := parts[1]
	spanID := parts[2]
	flags := parts[3]

	// Unknown versions with valid structure are still parsed, per the
	// W3C spec; a malformed version field is rejected.
	if version != traceparentVersion && len(version) != 2 {
		return SpanContext{}, false
	}

	// Trace ID: 32 hex chars, not all zeros
	if len(traceID) != 32 || !isValidHex(traceID) {
		return SpanContext{}, false
	}
	if traceID == strings.Repeat("0", 32) {
		return SpanContext{}, false
	}

	// Span ID: 16 hex chars, not all zeros
	if len(spanID) != 16 || !isValidHex(spanID) {
		return SpanContext{}, false
	}
	if spanID == strings.Repeat("0", 16) {
		return SpanContext{}, false
	}

	if len(flags) != 2 {
		return SpanContext{}, false
	}
	flagBytes, err := hex.DecodeString(flags)
	if err != nil || len(flagBytes) != 1 {
		return SpanContext{}, false
	}

	return SpanContext{
		TraceID: traceID,
		SpanID:  spanID,
		Sampled: (flagBytes[0] & flagSampled) != 0,
	}, true
}

// formatTraceparent formats a traceparent header value.
func formatTraceparent(traceID, spanID string, sampled bool) string {
	flags := "00"
	if sampled {
		flags = "01"
	}
	return traceparentVersion + "-" + traceID + "-" + spanID + "-" + flags
}

// isValidHex returns true if the string contains only valid hex characters.
func isValidHex(s string) bool {
	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') && (c < 'A' || c > 'F') {
			return false
		}
	}
	return true
}

// TraceIDFromContext returns the trace ID from the current context, if any.
func TraceIDFromContext(ctx context.Context) string {
	if span := SpanFromContext(ctx); span != nil {
		return span.TraceID
	}
	if sc := SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID
	}
	return ""
}

// SpanIDFromContext returns the span ID from the current context, if any.
func SpanIDFromContext(ctx context.Context) string {
	if span := SpanFromContext(ctx); span != nil {
		return span.SpanID
	}
	if sc := SpanContextFromContext(ctx); sc.IsValid() {
		return sc.SpanID
	}
	return ""
}
