package collector

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Filter decides which ingested spans are kept, driven by an expr rule
// evaluated against each span. Rules see the fields trace_id, span_id,
// service, name, kind, status, error, duration_ms and tags, e.g.:
//
//	error || duration_ms > 250
//	service == "checkout" && name != "GET /healthz"
type Filter struct {
	rule    string
	program *vm.Program
}

// NewFilter compiles a keep rule. An empty rule keeps everything.
func NewFilter(rule string) (*Filter, error) {
	f := &Filter{rule: rule}
	if rule == "" {
		return f, nil
	}
	program, err := expr.Compile(rule, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid filter rule %q: %w", rule, err)
	}
	f.program = program
	return f, nil
}

// Keep reports whether the span passes the rule. Evaluation errors fail
// open so a bad rule never drops data silently.
func (f *Filter) Keep(span *Span) bool {
	if f.program == nil {
		return true
	}
	out, err := expr.Run(f.program, spanEnv(span))
	if err != nil {
		return true
	}
	keep, ok := out.(bool)
	return !ok || keep
}

// Rule returns the source rule text.
func (f *Filter) Rule() string {
	return f.rule
}

func spanEnv(span *Span) map[string]any {
	tags := span.Tags
	if tags == nil {
		tags = map[string]any{}
	}
	return map[string]any{
		"trace_id":    span.TraceID,
		"span_id":     span.SpanID,
		"service":     span.Service,
		"name":        span.Name,
		"kind":        span.Kind,
		"status":      span.StatusCode,
		"error":       span.Error,
		"duration_ms": span.DurationMs,
		"tags":        tags,
	}
}
