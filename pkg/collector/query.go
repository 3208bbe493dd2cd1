package collector

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/tracewire/tracewire/pkg/httputil"
)

// defaultQueryLimit caps span listings when the client does not ask for a
// specific limit.
const defaultQueryLimit = 100

// SpanList is the response for span listings.
type SpanList struct {
	Spans []*Span `json:"spans"`
	Count int     `json:"count"`
}

// TraceResponse is the response for a single trace lookup.
type TraceResponse struct {
	TraceID string  `json:"traceId"`
	Spans   []*Span `json:"spans"`
	Count   int     `json:"count"`
}

// Stats summarizes the collector state.
type Stats struct {
	Stored     int    `json:"stored"`
	Capacity   int    `json:"capacity"`
	Total      uint64 `json:"total"`
	FilterRule string `json:"filterRule,omitempty"`
}

// handleListSpans serves GET /v1/spans with optional service, name,
// errors and limit query parameters.
func (c *Collector) handleListSpans(w http.ResponseWriter, r *http.Request) {
	q := Query{
		Service: r.URL.Query().Get("service"),
		Name:    r.URL.Query().Get("name"),
		Limit:   defaultQueryLimit,
	}

	if v := r.URL.Query().Get("errors"); v != "" {
		errorsOnly, err := strconv.ParseBool(v)
		if err != nil {
			httputil.WriteBadRequest(w, "invalid_query", "errors must be a boolean")
			return
		}
		q.ErrorsOnly = errorsOnly
	}

	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			httputil.WriteBadRequest(w, "invalid_query", "limit must be a positive integer")
			return
		}
		q.Limit = limit
	}

	spans := c.store.Query(q)
	httputil.WriteOK(w, SpanList{Spans: spans, Count: len(spans)})
}

// handleGetTrace serves GET /v1/spans/{traceId}.
func (c *Collector) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	traceID := mux.Vars(r)["traceId"]
	spans := c.store.Trace(traceID)
	if len(spans) == 0 {
		httputil.WriteNotFound(w, "trace_not_found", "no spans for trace "+traceID)
		return
	}
	httputil.WriteOK(w, TraceResponse{TraceID: traceID, Spans: spans, Count: len(spans)})
}

// handleStats serves GET /v1/stats.
func (c *Collector) handleStats(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, Stats{
		Stored:     c.store.Len(),
		Capacity:   c.store.capacity,
		Total:      c.store.Total(),
		FilterRule: c.filter.Rule(),
	})
}

// handleHealth serves GET /healthz.
func (c *Collector) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteOK(w, map[string]string{"status": "ok"})
}
