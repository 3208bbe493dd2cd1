// Package collector implements the tracewire span collector: OTLP ingest
// over HTTP and gRPC, a bounded in-memory store, a query API and a live
// websocket feed.
package collector

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tracewire/tracewire/pkg/config"
	"github.com/tracewire/tracewire/pkg/logging"
	"github.com/tracewire/tracewire/pkg/middleware"
	"github.com/tracewire/tracewire/pkg/tracing"
)

// Collector ties the ingest paths, store and query API together.
type Collector struct {
	cfg      config.Config
	store    *Store
	filter   *Filter
	metrics  *Metrics
	registry *prometheus.Registry
	log      *slog.Logger
	tracer   *tracing.Tracer

	httpServer *http.Server
}

// Option configures a Collector.
type Option func(*Collector)

// WithLogger sets the collector logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Collector) {
		c.log = log
	}
}

// WithRegistry sets the Prometheus registry. Without one the collector
// creates its own, including the standard process and Go collectors.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(c *Collector) {
		c.registry = reg
	}
}

// New creates a Collector from a configuration.
func New(cfg config.Config, opts ...Option) (*Collector, error) {
	filter, err := NewFilter(cfg.FilterRule)
	if err != nil {
		return nil, err
	}

	c := &Collector{
		cfg:    cfg,
		store:  NewStore(cfg.Capacity),
		filter: filter,
		log:    logging.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
		c.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	c.metrics = NewMetrics(c.registry)

	// The collector traces its own API; spans land in its own store.
	c.tracer = tracing.NewTracer(cfg.Service,
		tracing.WithReporter(&storeReporter{store: c.store, service: cfg.Service}),
	)

	return c, nil
}

// Store exposes the span store, mainly for tests and embedding.
func (c *Collector) Store() *Store {
	return c.store
}

// Handler builds the collector's HTTP handler with its full middleware
// stack.
func (c *Collector) Handler() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/v1/traces", c.handleIngest).Methods(http.MethodPost)
	router.HandleFunc("/v1/stream", c.handleStream).Methods(http.MethodGet)
	router.HandleFunc("/healthz", c.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	query := router.PathPrefix("/v1").Subrouter()
	query.HandleFunc("/spans", c.handleListSpans).Methods(http.MethodGet)
	query.HandleFunc("/spans/{traceId}", c.handleGetTrace).Methods(http.MethodGet)
	query.HandleFunc("/stats", c.handleStats).Methods(http.MethodGet)
	if c.cfg.AuthSecret != "" {
		query.Use(bearerAuth(c.cfg.AuthSecret, c.log))
	}

	chain := middleware.NewChain(
		middleware.WithChainTracer(c.tracer,
			// Ingest is skipped so exports do not feed spans about
			// themselves back into the store; streaming and scrape
			// endpoints produce no useful spans either.
			middleware.WithSkipPaths("/v1/traces", "/v1/stream", "/metrics", "/healthz"),
		),
		middleware.WithChainTemplater(middleware.MuxTemplater{Router: router}),
		middleware.WithChainMetrics(middleware.NewMetrics(c.registry)),
		middleware.WithChainLogger(c.log),
	)
	return chain.Wrap(router)
}

// Serve runs the HTTP API until the context is canceled.
func (c *Collector) Serve(ctx context.Context) error {
	c.httpServer = &http.Server{
		Addr:              c.cfg.Listen,
		Handler:           c.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.httpServer.ListenAndServe()
	}()

	c.log.Info("collector listening", "addr", c.cfg.Listen)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return c.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

// storeReporter feeds the collector's own finished spans into its store.
type storeReporter struct {
	store   *Store
	service string
}

func (r *storeReporter) Report(span *tracing.Span) {
	r.store.Add(fromTracingSpan(span, r.service))
}

func fromTracingSpan(span *tracing.Span, service string) *Span {
	tags := make(map[string]any, len(span.Tags))
	for k, v := range span.Tags {
		if v.Kind() == tracing.TagInt {
			tags[k] = v.AsInt()
		} else {
			tags[k] = v.AsString()
		}
	}

	statusCode := 0
	switch span.Status {
	case tracing.StatusOK:
		statusCode = 1
	case tracing.StatusError:
		statusCode = otlpStatusError
	}

	return &Span{
		TraceID:       span.TraceID,
		SpanID:        span.SpanID,
		ParentID:      span.ParentID,
		Service:       service,
		Name:          span.Name,
		Kind:          kindName(int(span.Kind)),
		StartTime:     span.StartTime,
		EndTime:       span.EndTime,
		DurationMs:    durationMs(span.StartTime, span.EndTime),
		StatusCode:    statusCode,
		StatusMessage: span.StatusMessage,
		Error:         span.Status == tracing.StatusError,
		Tags:          tags,
		ReceivedAt:    time.Now().UTC(),
	}
}
