package collector

import (
	"encoding/hex"
	"strconv"
	"time"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	tracepb "go.opentelemetry.io/proto/otlp/trace/v1"

	"github.com/tracewire/tracewire/pkg/tracing"
)

// Span is the collector's stored form of an ingested span. It is flattened
// from the OTLP resource/scope hierarchy so queries can filter on service
// and name directly.
type Span struct {
	TraceID       string         `json:"traceId"`
	SpanID        string         `json:"spanId"`
	ParentID      string         `json:"parentId,omitempty"`
	Service       string         `json:"service"`
	Name          string         `json:"name"`
	Kind          string         `json:"kind"`
	StartTime     time.Time      `json:"startTime"`
	EndTime       time.Time      `json:"endTime"`
	DurationMs    float64        `json:"durationMs"`
	StatusCode    int            `json:"statusCode"`
	StatusMessage string         `json:"statusMessage,omitempty"`
	Error         bool           `json:"error"`
	Tags          map[string]any `json:"tags,omitempty"`
	ReceivedAt    time.Time      `json:"receivedAt"`
}

// OTLP numeric span kinds and status codes.
const (
	otlpKindInternal = 1
	otlpKindServer   = 2
	otlpKindClient   = 3

	otlpStatusError = 2
)

func kindName(kind int) string {
	switch kind {
	case otlpKindInternal:
		return "internal"
	case otlpKindServer:
		return "server"
	case otlpKindClient:
		return "client"
	default:
		return "unspecified"
	}
}

// spansFromJSON flattens an OTLP/JSON trace request into stored spans.
func spansFromJSON(req tracing.OTLPTraceRequest, now time.Time) []*Span {
	var out []*Span
	for _, rs := range req.ResourceSpans {
		service := "unknown"
		for _, attr := range rs.Resource.Attributes {
			if attr.Key == "service.name" && attr.Value.StringValue != "" {
				service = attr.Value.StringValue
			}
		}
		for _, ss := range rs.ScopeSpans {
			for _, ws := range ss.Spans {
				out = append(out, jsonSpan(ws, service, now))
			}
		}
	}
	return out
}

func jsonSpan(ws tracing.OTLPSpan, service string, now time.Time) *Span {
	start := unixNanoTime(ws.StartTimeUnixNano)
	end := unixNanoTime(ws.EndTimeUnixNano)

	tags := make(map[string]any, len(ws.Attributes))
	for _, attr := range ws.Attributes {
		if attr.Value.IntValue != "" {
			if n, err := strconv.ParseInt(attr.Value.IntValue, 10, 64); err == nil {
				tags[attr.Key] = n
				continue
			}
		}
		tags[attr.Key] = attr.Value.StringValue
	}

	return &Span{
		TraceID:       ws.TraceID,
		SpanID:        ws.SpanID,
		ParentID:      ws.ParentSpanID,
		Service:       service,
		Name:          ws.Name,
		Kind:          kindName(ws.Kind),
		StartTime:     start,
		EndTime:       end,
		DurationMs:    durationMs(start, end),
		StatusCode:    ws.Status.Code,
		StatusMessage: ws.Status.Message,
		Error:         ws.Status.Code == otlpStatusError,
		Tags:          tags,
		ReceivedAt:    now,
	}
}

// spansFromProto flattens an OTLP gRPC export request into stored spans.
func spansFromProto(req *coltracepb.ExportTraceServiceRequest, now time.Time) []*Span {
	var out []*Span
	for _, rs := range req.GetResourceSpans() {
		service := "unknown"
		for _, attr := range rs.GetResource().GetAttributes() {
			if attr.GetKey() == "service.name" {
				if v := attr.GetValue().GetStringValue(); v != "" {
					service = v
				}
			}
		}
		for _, ss := range rs.GetScopeSpans() {
			for _, ps := range ss.GetSpans() {
				out = append(out, protoSpan(ps, service, now))
			}
		}
	}
	return out
}

func protoSpan(ps *tracepb.Span, service string, now time.Time) *Span {
	start := time.Unix(0, int64(ps.GetStartTimeUnixNano())).UTC()
	end := time.Unix(0, int64(ps.GetEndTimeUnixNano())).UTC()

	tags := make(map[string]any, len(ps.GetAttributes()))
	for _, attr := range ps.GetAttributes() {
		val := attr.GetValue()
		switch {
		case val.GetStringValue() != "":
			tags[attr.GetKey()] = val.GetStringValue()
		default:
			tags[attr.GetKey()] = val.GetIntValue()
		}
	}

	statusCode := int(ps.GetStatus().GetCode())

	return &Span{
		TraceID:       hex.EncodeToString(ps.GetTraceId()),
		SpanID:        hex.EncodeToString(ps.GetSpanId()),
		ParentID:      hex.EncodeToString(ps.GetParentSpanId()),
		Service:       service,
		Name:          ps.GetName(),
		Kind:          kindName(int(ps.GetKind())),
		StartTime:     start,
		EndTime:       end,
		DurationMs:    durationMs(start, end),
		StatusCode:    statusCode,
		StatusMessage: ps.GetStatus().GetMessage(),
		Error:         statusCode == otlpStatusError,
		Tags:          tags,
		ReceivedAt:    now,
	}
}

func unixNanoTime(s string) time.Time {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func durationMs(start, end time.Time) float64 {
	if end.Before(start) {
		return 0
	}
	return float64(end.Sub(start)) / float64(time.Millisecond)
}
