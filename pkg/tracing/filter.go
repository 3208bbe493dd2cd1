package tracing

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// FilterReporter forwards a span to the next reporter only when a rule
// expression evaluates to true for it. Rules are expr-lang expressions
// evaluated against the finalized span, for example:
//
//	error || duration_ms > 250
//	name startsWith "/api/" && tags["http.status_code"] >= 500
//
// A rule that fails to evaluate keeps the span: filtering is bookkeeping
// and must never lose data on its own bugs.
type FilterReporter struct {
	next    Reporter
	program *vm.Program
}

// NewFilterReporter compiles the rule and wraps the next reporter.
func NewFilterReporter(rule string, next Reporter) (*FilterReporter, error) {
	program, err := expr.Compile(rule, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter rule %q: %w", rule, err)
	}
	return &FilterReporter{next: next, program: program}, nil
}

// Report evaluates the rule and forwards the span when it matches.
func (f *FilterReporter) Report(span *Span) {
	keep := true
	if out, err := expr.Run(f.program, SpanEnv(span)); err == nil {
		if b, ok := out.(bool); ok {
			keep = b
		}
	}
	if keep {
		f.next.Report(span)
	}
}

// RuleSampler samples spans by an expr-lang rule evaluated at span start
// against the trace ID and operation name, for example:
//
//	name != "/healthz"
//	name startsWith "/api/"
//
// Unlike FilterReporter, which drops finalized spans, an unsampled span is
// never recorded at all. Evaluation errors sample the span.
type RuleSampler struct {
	program *vm.Program
}

// NewRuleSampler compiles a sampling rule.
func NewRuleSampler(rule string) (*RuleSampler, error) {
	program, err := expr.Compile(rule, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid sampling rule %q: %w", rule, err)
	}
	return &RuleSampler{program: program}, nil
}

// ShouldSample evaluates the rule for the span being started.
func (s *RuleSampler) ShouldSample(traceID, name string) bool {
	out, err := expr.Run(s.program, map[string]any{
		"trace_id": traceID,
		"name":     name,
	})
	if err != nil {
		return true
	}
	sample, ok := out.(bool)
	return !ok || sample
}

// SpanEnv builds the expression environment for a finalized span.
// Integer tags surface as int64, string tags as string.
func SpanEnv(span *Span) map[string]any {
	tags := make(map[string]any, len(span.Tags))
	for k, v := range span.Tags {
		if v.Kind() == TagInt {
			tags[k] = v.AsInt()
		} else {
			tags[k] = v.AsString()
		}
	}
	return map[string]any{
		"trace_id":    span.TraceID,
		"span_id":     span.SpanID,
		"name":        span.Name,
		"kind":        span.Kind.String(),
		"status":      span.Status.String(),
		"error":       span.Status == StatusError,
		"duration_ms": span.Duration().Milliseconds(),
		"tags":        tags,
	}
}
