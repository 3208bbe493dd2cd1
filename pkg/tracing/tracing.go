package tracing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// SpanStatus represents the status of a span.
type SpanStatus int

const (
	// StatusUnset is the default status.
	StatusUnset SpanStatus = iota
	// StatusOK indicates the operation completed successfully.
	StatusOK
	// StatusError indicates the operation failed.
	StatusError
)

// String returns the string representation of the status.
func (s SpanStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusError:
		return "ERROR"
	default:
		return "UNSET"
	}
}

// SpanKind describes the relationship between the Span, its parents and children.
type SpanKind int

const (
	// SpanKindUnspecified is the default, unspecified span kind.
	SpanKindUnspecified SpanKind = 0
	// SpanKindInternal indicates an internal operation.
	SpanKindInternal SpanKind = 1
	// SpanKindServer indicates a server-side handling of an RPC or HTTP request.
	SpanKindServer SpanKind = 2
	// SpanKindClient indicates a client-side RPC or HTTP request.
	SpanKindClient SpanKind = 3
)

// String returns the string representation of the kind.
func (k SpanKind) String() string {
	switch k {
	case SpanKindInternal:
		return "INTERNAL"
	case SpanKindServer:
		return "SERVER"
	case SpanKindClient:
		return "CLIENT"
	default:
		return "UNSPECIFIED"
	}
}

// Span represents a single operation within a trace.
//
// A span is created by a Tracer, mutated while the operation runs, and
// finalized by End. After End the span is immutable: tag writes, status
// changes and kind changes are ignored, and the span has been handed to
// the tracer's Reporter exactly once.
type Span struct {
	TraceID       string              `json:"traceId"`
	SpanID        string              `json:"spanId"`
	ParentID      string              `json:"parentId,omitempty"`
	Name          string              `json:"name"`
	Kind          SpanKind            `json:"kind,omitempty"`
	StartTime     time.Time           `json:"startTime"`
	EndTime       time.Time           `json:"endTime,omitempty"`
	Status        SpanStatus          `json:"status"`
	StatusMessage string              `json:"statusMessage,omitempty"`
	Tags          map[string]TagValue `json:"tags,omitempty"`

	mu       sync.Mutex
	reporter Reporter
	ended    bool
}

// End marks the span as ended and reports it to the tracer's Reporter.
// End is idempotent; only the first call finalizes and reports the span.
func (s *Span) End() {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.EndTime = time.Now()
	reporter := s.reporter
	s.mu.Unlock()

	if reporter != nil {
		reporter.Report(s)
	}
}

// SetName renames the span. Used when the operation name is only known
// after the span started (e.g. a route template resolved mid-request).
func (s *Span) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.Name = name
}

// SetKind sets the kind of the span. This should be called before End().
func (s *Span) SetKind(kind SpanKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.Kind = kind
}

// SetStatus sets the status of the span.
func (s *Span) SetStatus(status SpanStatus, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.Status = status
	s.StatusMessage = message
}

// IsError reports whether the span is marked as errored.
func (s *Span) IsError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Status == StatusError
}

// IsRecording returns true if the span is still recording.
func (s *Span) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.ended
}

// Duration returns the span duration, or zero if the span has not ended.
func (s *Span) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// SpanContext returns the context values needed for propagation.
func (s *Span) SpanContext() SpanContext {
	return SpanContext{
		TraceID:  s.TraceID,
		SpanID:   s.SpanID,
		ParentID: s.ParentID,
		Sampled:  true,
	}
}

// SpanContext holds the trace context for propagation.
type SpanContext struct {
	TraceID  string
	SpanID   string
	ParentID string
	Sampled  bool
}

// IsValid returns true if the span context has valid trace and span IDs.
func (sc SpanContext) IsValid() bool {
	return sc.TraceID != "" && sc.SpanID != ""
}

// Sampler decides whether a span should be recorded, given the trace ID
// and the operation name the span starts with.
type Sampler interface {
	ShouldSample(traceID, name string) bool
}

// AlwaysSample is a sampler that always samples.
type AlwaysSample struct{}

// ShouldSample always returns true.
func (AlwaysSample) ShouldSample(string, string) bool { return true }

// NeverSample is a sampler that never samples.
type NeverSample struct{}

// ShouldSample always returns false.
func (NeverSample) ShouldSample(string, string) bool { return false }

// RatioSampler samples a percentage of traces.
type RatioSampler struct {
	ratio float64
}

// NewRatioSampler creates a sampler that samples the given ratio of traces.
func NewRatioSampler(ratio float64) *RatioSampler {
	if ratio < 0 {
		ratio = 0
	}
	if ratio > 1 {
		ratio = 1
	}
	return &RatioSampler{ratio: ratio}
}

// ShouldSample returns true if the trace should be sampled based on trace ID.
func (s *RatioSampler) ShouldSample(traceID, _ string) bool {
	if s.ratio >= 1 {
		return true
	}
	if s.ratio <= 0 {
		return false
	}
	// Use first 8 bytes of trace ID for deterministic sampling
	if len(traceID) < 16 {
		return true
	}
	b, err := hex.DecodeString(traceID[:16])
	if err != nil {
		return true
	}
	var val uint64
	for i := 0; i < 8; i++ {
		val = (val << 8) | uint64(b[i])
	}
	threshold := uint64(s.ratio * float64(^uint64(0)))
	return val < threshold
}

// Tracer creates spans and hands finalized spans to a Reporter.
//
// The Reporter is an explicit constructor dependency: there is no package
// level tracer or reporter, so independent tracers never share state.
type Tracer struct {
	serviceName string
	reporter    Reporter
	sampler     Sampler
}

// TracerOption configures a Tracer.
type TracerOption func(*Tracer)

// WithReporter sets the reporter that receives finalized spans.
func WithReporter(r Reporter) TracerOption {
	return func(t *Tracer) {
		t.reporter = r
	}
}

// WithSampler sets the sampler for the tracer.
func WithSampler(s Sampler) TracerOption {
	return func(t *Tracer) {
		t.sampler = s
	}
}

// NewTracer creates a new Tracer with the given service name.
func NewTracer(serviceName string, opts ...TracerOption) *Tracer {
	t := &Tracer{
		serviceName: serviceName,
		sampler:     AlwaysSample{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start creates a new span with the given name.
// If the context already contains a span, the new span will be a child of it.
func (t *Tracer) Start(ctx context.Context, name string) (context.Context, *Span) {
	var traceID, parentID string

	// Check for existing span in context
	if parent := SpanFromContext(ctx); parent != nil {
		traceID = parent.TraceID
		parentID = parent.SpanID
	} else if sc := SpanContextFromContext(ctx); sc.IsValid() {
		// Check for propagated span context (from Extract)
		traceID = sc.TraceID
		parentID = sc.SpanID
	}

	if traceID == "" {
		traceID = generateTraceID()
	}

	if !t.sampler.ShouldSample(traceID, name) {
		// Non-recording span: already ended, so mutations and End are no-ops
		span := &Span{
			TraceID:   traceID,
			SpanID:    generateSpanID(),
			ParentID:  parentID,
			Name:      name,
			StartTime: time.Now(),
			ended:     true,
		}
		return contextWithSpan(ctx, span), span
	}

	span := &Span{
		TraceID:   traceID,
		SpanID:    generateSpanID(),
		ParentID:  parentID,
		Name:      name,
		StartTime: time.Now(),
		Tags:      make(map[string]TagValue),
		reporter:  t.reporter,
	}
	span.Tags["service.name"] = StringValue(t.serviceName)

	return contextWithSpan(ctx, span), span
}

// ServiceName returns the tracer's service name.
func (t *Tracer) ServiceName() string {
	return t.serviceName
}

// generateTraceID generates a random 16-byte trace ID as a hex string.
func generateTraceID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// generateSpanID generates a random 8-byte span ID as a hex string.
func generateSpanID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Context key types for storing span information.
type spanContextKey struct{}
type spanContextValueKey struct{}

// contextWithSpan returns a new context with the span stored in it.
func contextWithSpan(ctx context.Context, span *Span) context.Context {
	return context.WithValue(ctx, spanContextKey{}, span)
}

// SpanFromContext returns the current span from the context, or nil if none.
func SpanFromContext(ctx context.Context) *Span {
	if span, ok := ctx.Value(spanContextKey{}).(*Span); ok {
		return span
	}
	return nil
}

// contextWithSpanContext returns a context with the SpanContext stored in it.
func contextWithSpanContext(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanContextValueKey{}, sc)
}

// SpanContextFromContext returns the SpanContext from the context.
func SpanContextFromContext(ctx context.Context) SpanContext {
	if sc, ok := ctx.Value(spanContextValueKey{}).(SpanContext); ok {
		return sc
	}
	return SpanContext{}
}
