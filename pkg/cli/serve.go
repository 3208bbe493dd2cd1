package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tracewire/tracewire/pkg/collector"
	"github.com/tracewire/tracewire/pkg/config"
	"github.com/tracewire/tracewire/pkg/logging"
)

type serveFlags struct {
	configFile string
	listen     string
	grpcListen string
	capacity   int
	filterRule string
	authSecret string
	logLevel   string
	logFormat  string
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the span collector (foreground)",
	Example: `  # Start with defaults (OTLP/JSON on :4318)
  tracewire serve

  # Start from a config file
  tracewire serve --config collector.yaml

  # Enable the OTLP gRPC listener and keep only errors and slow spans
  tracewire serve --grpc-listen :4317 --filter 'error || duration_ms > 250'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(&serveFlagVals)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	f := &serveFlagVals
	serveCmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to collector configuration file (YAML or JSON)")
	serveCmd.Flags().StringVar(&f.listen, "listen", "", "HTTP listen address for ingest and query")
	serveCmd.Flags().StringVar(&f.grpcListen, "grpc-listen", "", "OTLP gRPC listen address (empty = disabled)")
	serveCmd.Flags().IntVar(&f.capacity, "capacity", 0, "Span store capacity")
	serveCmd.Flags().StringVar(&f.filterRule, "filter", "", "Keep rule for ingested spans (expr syntax)")
	serveCmd.Flags().StringVar(&f.authSecret, "auth-secret", "", "Enable bearer auth on the query API with this HS256 secret")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format (text, json)")
}

// applyServeFlags overlays non-empty flag values on a loaded configuration.
func applyServeFlags(cfg config.Config, f *serveFlags) config.Config {
	if f.listen != "" {
		cfg.Listen = f.listen
	}
	if f.grpcListen != "" {
		cfg.GRPCListen = f.grpcListen
	}
	if f.capacity > 0 {
		cfg.Capacity = f.capacity
	}
	if f.filterRule != "" {
		cfg.FilterRule = f.filterRule
	}
	if f.authSecret != "" {
		cfg.AuthSecret = f.authSecret
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	return cfg
}

func runServe(f *serveFlags) error {
	cfg := config.Default()
	if f.configFile != "" {
		loaded, err := config.LoadFromFile(f.configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	cfg = applyServeFlags(cfg, f)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logCfg := logging.DefaultConfig()
	logCfg.Level = logging.ParseLevel(cfg.Log.Level)
	logCfg.Format = logging.ParseFormat(cfg.Log.Format)
	log := logging.New(logCfg)

	c, err := collector.New(cfg, collector.WithLogger(log))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 2)
	if cfg.GRPCListen != "" {
		go func() {
			errCh <- c.ServeGRPC(ctx, cfg.GRPCListen)
		}()
	}
	go func() {
		errCh <- c.Serve(ctx)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
		// let Serve finish its graceful shutdown
		return <-errCh
	case err := <-errCh:
		return err
	}
}
