package collector

import (
	"context"
	"log/slog"
	"net"
	"time"

	coltracepb "go.opentelemetry.io/proto/otlp/collector/trace/v1"
	"google.golang.org/grpc"
)

// TraceService implements the OTLP gRPC trace collector service, feeding
// exported spans into the same store and filter as the HTTP ingest path.
type TraceService struct {
	coltracepb.UnimplementedTraceServiceServer

	collector *Collector
	log       *slog.Logger
}

// NewTraceService creates the gRPC ingest service for a collector.
func NewTraceService(c *Collector) *TraceService {
	return &TraceService{
		collector: c,
		log:       c.log.With("transport", "grpc"),
	}
}

// Export receives an OTLP trace export.
func (s *TraceService) Export(ctx context.Context, req *coltracepb.ExportTraceServiceRequest) (*coltracepb.ExportTraceServiceResponse, error) {
	spans := spansFromProto(req, time.Now().UTC())
	accepted, filtered := s.collector.ingest(spans)
	s.collector.metrics.recordIngest("grpc", accepted, filtered)

	s.log.Debug("ingested trace export", "accepted", accepted, "filtered", filtered)

	return &coltracepb.ExportTraceServiceResponse{}, nil
}

// ServeGRPC runs the OTLP gRPC ingest listener until the context is
// canceled or the server fails.
func (c *Collector) ServeGRPC(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	server := grpc.NewServer()
	coltracepb.RegisterTraceServiceServer(server, NewTraceService(c))

	go func() {
		<-ctx.Done()
		server.GracefulStop()
	}()

	c.log.Info("grpc ingest listening", "addr", lis.Addr().String())
	return server.Serve(lis)
}
