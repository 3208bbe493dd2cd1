package tracing

import (
	"context"
	"sync"
)

// Reporter receives finalized spans.
//
// Report is called exactly once per span, from the goroutine that ended it,
// potentially from many request-handling goroutines at once. Implementations
// must be safe for concurrent use and must not block request handling or
// surface failures to it: a reporter that cannot deliver a span drops it.
type Reporter interface {
	Report(span *Span)
}

// NopReporter discards all spans.
type NopReporter struct{}

// Report does nothing.
func (NopReporter) Report(*Span) {}

// DefaultQueueCapacity bounds a QueueReporter when no capacity is given.
const DefaultQueueCapacity = 1024

// QueueReporter buffers finalized spans in a bounded FIFO queue for later
// inspection. When the queue is full the oldest span is dropped.
//
// It is the reporter to hand to a Tracer in tests: end a request, then pop
// the reported span with Next and assert on it.
type QueueReporter struct {
	mu      sync.Mutex
	spans   []*Span
	cap     int
	dropped int
}

// NewQueueReporter creates a queue reporter with the given capacity.
// A capacity <= 0 uses DefaultQueueCapacity.
func NewQueueReporter(capacity int) *QueueReporter {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &QueueReporter{cap: capacity}
}

// Report appends the span to the queue, evicting the oldest if full.
func (q *QueueReporter) Report(span *Span) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.spans) >= q.cap {
		q.spans = q.spans[1:]
		q.dropped++
	}
	q.spans = append(q.spans, span)
}

// Next pops the oldest reported span, or nil if the queue is empty.
// Each reported span is returned exactly once.
func (q *QueueReporter) Next() *Span {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.spans) == 0 {
		return nil
	}
	span := q.spans[0]
	q.spans = q.spans[1:]
	return span
}

// Len returns the number of queued spans.
func (q *QueueReporter) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.spans)
}

// Dropped returns the number of spans evicted due to a full queue.
func (q *QueueReporter) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// MultiReporter fans a span out to several reporters in order.
type MultiReporter []Reporter

// Report delivers the span to every reporter.
func (m MultiReporter) Report(span *Span) {
	for _, r := range m {
		r.Report(span)
	}
}

// ExportReporter batches reported spans and hands full batches to an
// Exporter. Export failures are dropped: delivery is best-effort and never
// surfaces to the code that ended the span.
type ExportReporter struct {
	exporter  Exporter
	batchSize int

	mu    sync.Mutex
	spans []*Span
	wg    sync.WaitGroup // tracks in-flight exports
}

// ExportReporterOption configures an ExportReporter.
type ExportReporterOption func(*ExportReporter)

// WithBatchSize sets how many spans accumulate before an export is triggered.
func WithBatchSize(size int) ExportReporterOption {
	return func(r *ExportReporter) {
		if size > 0 {
			r.batchSize = size
		}
	}
}

// NewExportReporter creates a reporter that exports batches of spans.
func NewExportReporter(exporter Exporter, opts ...ExportReporterOption) *ExportReporter {
	r := &ExportReporter{
		exporter:  exporter,
		batchSize: 100,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Report adds the span to the batch and exports if the batch is full.
func (r *ExportReporter) Report(span *Span) {
	if r.exporter == nil {
		return
	}

	r.mu.Lock()
	r.spans = append(r.spans, span)
	if len(r.spans) >= r.batchSize {
		spans := r.spans
		r.spans = nil
		r.wg.Add(1)
		r.mu.Unlock()

		// Export in background to avoid blocking the request goroutine
		go func() {
			defer r.wg.Done()
			_ = r.exporter.Export(spans)
		}()
		return
	}
	r.mu.Unlock()
}

// Flush exports any buffered spans immediately and waits for in-flight
// exports to complete.
func (r *ExportReporter) Flush() error {
	r.wg.Wait()

	r.mu.Lock()
	spans := r.spans
	r.spans = nil
	r.mu.Unlock()

	if r.exporter != nil && len(spans) > 0 {
		return r.exporter.Export(spans)
	}
	return nil
}

// Shutdown flushes buffered spans and shuts down the exporter.
func (r *ExportReporter) Shutdown(ctx context.Context) error {
	if err := r.Flush(); err != nil {
		return err
	}
	if r.exporter != nil {
		return r.exporter.Shutdown(ctx)
	}
	return nil
}
