package middleware

import (
	"log/slog"
	"net/http"

	"github.com/tracewire/tracewire/pkg/tracing"
)

// Chain assembles the standard instrumentation stack for an HTTP server.
type Chain struct {
	tracer    *tracing.Tracer
	templater Templater
	metrics   *Metrics
	log       *slog.Logger
	traceOpts []TraceOption
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

// WithChainTracer sets the tracer. Without one, requests are not traced.
func WithChainTracer(t *tracing.Tracer, opts ...TraceOption) ChainOption {
	return func(c *Chain) {
		c.tracer = t
		c.traceOpts = opts
	}
}

// WithChainTemplater sets the route template source shared by the tracing
// and metrics layers.
func WithChainTemplater(t Templater) ChainOption {
	return func(c *Chain) {
		c.templater = t
	}
}

// WithChainMetrics sets the metrics recorder.
func WithChainMetrics(m *Metrics) ChainOption {
	return func(c *Chain) {
		c.metrics = m
	}
}

// WithChainLogger sets the logger used for request logging and panic
// reports.
func WithChainLogger(log *slog.Logger) ChainOption {
	return func(c *Chain) {
		c.log = log
	}
}

// NewChain creates a middleware chain.
func NewChain(opts ...ChainOption) *Chain {
	c := &Chain{
		log: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Wrap wraps the handler with all configured middleware.
//
// The order is: recover -> tracing -> metrics -> request log -> handler.
// The panic translator sits outside the tracing layer, matching the usual
// server arrangement; the consequence is that a panic's replacement 500
// response carries no trace-id header (see the Trace and Recover docs for
// this ordering contract). The panicked request's span itself is always
// reported correctly.
func (c *Chain) Wrap(handler http.Handler) http.Handler {
	h := handler

	h = RequestLog(c.log)(h)

	if c.metrics != nil {
		h = c.metrics.Middleware(c.templater)(h)
	}

	if c.tracer != nil {
		opts := append([]TraceOption{WithTemplater(c.templater), WithLogger(c.log)}, c.traceOpts...)
		h = Trace(c.tracer, opts...)(h)
	}

	h = Recover(c.log)(h)

	return h
}
