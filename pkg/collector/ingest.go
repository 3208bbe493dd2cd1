package collector

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tracewire/tracewire/pkg/httputil"
	"github.com/tracewire/tracewire/pkg/tracing"
)

// maxIngestBody bounds a single OTLP/JSON ingest request.
const maxIngestBody = 16 << 20 // 16 MiB

// IngestResponse is the receipt returned for an accepted trace export.
type IngestResponse struct {
	ReceiptID string `json:"receiptId"`
	Accepted  int    `json:"accepted"`
	Filtered  int    `json:"filtered"`
}

// handleIngest accepts an OTLP/JSON trace export on POST /v1/traces.
func (c *Collector) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req tracing.OTLPTraceRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxIngestBody))
	if err := dec.Decode(&req); err != nil {
		c.metrics.recordIngestError("http")
		httputil.WriteBadRequest(w, "invalid_payload", "invalid OTLP/JSON payload: "+err.Error())
		return
	}

	spans := spansFromJSON(req, time.Now().UTC())
	accepted, filtered := c.ingest(spans)
	c.metrics.recordIngest("http", accepted, filtered)

	c.log.Debug("ingested trace export",
		"transport", "http",
		"accepted", accepted,
		"filtered", filtered,
	)

	httputil.WriteOK(w, IngestResponse{
		ReceiptID: uuid.NewString(),
		Accepted:  accepted,
		Filtered:  filtered,
	})
}

// ingest applies the filter rule and stores what survives. It returns the
// accepted and filtered counts.
func (c *Collector) ingest(spans []*Span) (accepted, filtered int) {
	for _, span := range spans {
		if !c.filter.Keep(span) {
			filtered++
			continue
		}
		c.store.Add(span)
		accepted++
	}
	return accepted, filtered
}
