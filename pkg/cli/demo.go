package cli

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tracewire/tracewire/pkg/logging"
	"github.com/tracewire/tracewire/pkg/middleware"
	"github.com/tracewire/tracewire/pkg/tracing"
)

type demoFlags struct {
	listen    string
	collector string
	service   string
}

var demoFlagVals demoFlags

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a demo HTTP service instrumented with tracewire",
	Long: `Run a small HTTP service wrapped in the tracewire middleware stack.
Useful for trying out the collector: point --collector at a running
tracewire serve instance and hit the demo routes.

Routes:
  GET /hello/{name}   200 greeting
  GET /slow           200 after a random delay
  GET /fail           500
  GET /boom           handler panic (translated to 500)`,
	Example: `  tracewire demo --collector http://localhost:4318/v1/traces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDemo(&demoFlagVals)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	f := &demoFlagVals
	demoCmd.Flags().StringVar(&f.listen, "listen", ":8080", "Demo server listen address")
	demoCmd.Flags().StringVar(&f.collector, "collector", "", "Collector OTLP/JSON endpoint; spans print to stdout when unset")
	demoCmd.Flags().StringVar(&f.service, "service", "tracewire-demo", "Service name on exported spans")
}

func runDemo(f *demoFlags) error {
	log := logging.New(logging.DefaultConfig())

	var exporter tracing.Exporter
	if f.collector != "" {
		exporter = tracing.NewOTLPExporter(f.collector)
	} else {
		exporter = tracing.NewStdoutExporter()
	}
	reporter := tracing.NewExportReporter(exporter, tracing.WithBatchSize(16))

	tracer := tracing.NewTracer(f.service, tracing.WithReporter(reporter))

	router := mux.NewRouter()
	router.HandleFunc("/hello/{name}", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "hello %s\n", mux.Vars(r)["name"])
	}).Methods(http.MethodGet)
	router.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Intn(400)) * time.Millisecond)
		fmt.Fprintln(w, "done")
	}).Methods(http.MethodGet)
	router.HandleFunc("/fail", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "something broke", http.StatusInternalServerError)
	}).Methods(http.MethodGet)
	router.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("demo panic")
	}).Methods(http.MethodGet)

	chain := middleware.NewChain(
		middleware.WithChainTracer(tracer),
		middleware.WithChainTemplater(middleware.MuxTemplater{Router: router}),
		middleware.WithChainMetrics(middleware.NewMetrics(prometheus.NewRegistry())),
		middleware.WithChainLogger(log),
	)

	server := &http.Server{
		Addr:              f.listen,
		Handler:           chain.Wrap(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	log.Info("demo server listening", "addr", f.listen, "service", f.service)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		flushCtx, cancelFlush := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelFlush()
		return reporter.Shutdown(flushCtx)
	case err := <-errCh:
		return err
	}
}
