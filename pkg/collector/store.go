package collector

import (
	"sync"
)

// DefaultCapacity is the default span store capacity.
const DefaultCapacity = 8192

// streamBuffer is the per-subscriber channel depth. Slow subscribers drop
// spans rather than block ingest.
const streamBuffer = 64

// Query selects spans from the store. Zero-value fields match everything.
type Query struct {
	// Service matches the producing service name exactly.
	Service string
	// Name matches the span name exactly.
	Name string
	// ErrorsOnly keeps only spans with an error status.
	ErrorsOnly bool
	// Limit caps the number of returned spans. Zero means no cap beyond
	// the store capacity.
	Limit int
}

// Store is a bounded in-memory span store. When full, adding a span evicts
// the oldest. It also fans new spans out to live stream subscribers.
type Store struct {
	mu       sync.RWMutex
	spans    []*Span
	head     int
	size     int
	total    uint64
	subs     map[int]chan *Span
	nextSub  int
	capacity int
}

// NewStore creates a store holding at most capacity spans.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		spans:    make([]*Span, capacity),
		subs:     make(map[int]chan *Span),
		capacity: capacity,
	}
}

// Add stores a span, evicting the oldest when the store is full, and
// notifies stream subscribers.
func (s *Store) Add(span *Span) {
	s.mu.Lock()
	idx := (s.head + s.size) % s.capacity
	if s.size == s.capacity {
		s.head = (s.head + 1) % s.capacity
	} else {
		s.size++
	}
	s.spans[idx] = span
	s.total++
	for _, ch := range s.subs {
		select {
		case ch <- span:
		default:
		}
	}
	s.mu.Unlock()
}

// AddBatch stores a batch of spans.
func (s *Store) AddBatch(spans []*Span) {
	for _, span := range spans {
		s.Add(span)
	}
}

// Query returns matching spans, newest first.
func (s *Store) Query(q Query) []*Span {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Span
	for i := s.size - 1; i >= 0; i-- {
		span := s.spans[(s.head+i)%s.capacity]
		if q.Service != "" && span.Service != q.Service {
			continue
		}
		if q.Name != "" && span.Name != q.Name {
			continue
		}
		if q.ErrorsOnly && !span.Error {
			continue
		}
		out = append(out, span)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Trace returns all stored spans of one trace, oldest first.
func (s *Store) Trace(traceID string) []*Span {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Span
	for i := 0; i < s.size; i++ {
		span := s.spans[(s.head+i)%s.capacity]
		if span.TraceID == traceID {
			out = append(out, span)
		}
	}
	return out
}

// Len returns the number of spans currently held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Total returns the count of spans ever added, including evicted ones.
func (s *Store) Total() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}

// Clear removes all stored spans. Subscribers are unaffected.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.spans {
		s.spans[i] = nil
	}
	s.head = 0
	s.size = 0
}

// Subscribe registers a live span feed. The returned cancel function must
// be called to release the subscription. Spans are dropped for subscribers
// that fall behind.
func (s *Store) Subscribe() (<-chan *Span, func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan *Span, streamBuffer)
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}
