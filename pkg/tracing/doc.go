// Package tracing provides distributed tracing: span creation, typed metric
// tags, trace context propagation, and pluggable span reporting.
//
// A Tracer creates spans and hands every finalized span to the Reporter it
// was constructed with, exactly once per span. Reporters are explicit
// dependencies; the package keeps no global tracer, so concurrent requests
// and independent test fixtures never share trace state.
//
// Basic usage:
//
//	reporter := tracing.NewQueueReporter(0)
//	tracer := tracing.NewTracer("my-service", tracing.WithReporter(reporter))
//
//	ctx, span := tracer.Start(ctx, "operation-name")
//	defer span.End()
//	span.SetKind(tracing.SpanKindServer)
//	span.SetTag("http.method", "GET")
//	span.SetIntTag("http.status_code", 200)
//
// Spans carry typed tags: strings and 64-bit integers. Observers read a tag
// back with the type it was recorded with via StringTag and IntTag.
//
// Trace context propagates across process boundaries in the W3C traceparent
// format via Extract and Inject. For export, ExportReporter batches spans to
// an Exporter (stdout JSON, or OTLP/JSON over HTTP), and FilterReporter
// applies an expr-lang rule to decide which spans to forward.
package tracing
