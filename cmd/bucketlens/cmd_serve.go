package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/exporters/prometheus"

	"github.com/yairfalse/bucketlens/internal/daemon"
)

var (
	serveAddr        string
	serveMetricsAddr string
	serveCheckLLM    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the bucketlens HTTP API.

Endpoints:
- POST /chat           classifier-routed chat
- POST /enhanced-chat  chat with tool calling
- GET  /analyze/{b}    inspection report for one bucket
- GET  /status         agents, cached buckets and bucket names
- POST /clear-cache    clear one or all report caches
- GET  /health         liveness

Prometheus metrics are served on a separate listener.`,
	Example: `  bucketlens serve                         # Listen on :8000, metrics on :9090
  bucketlens serve --addr :8080            # Custom API address
  bucketlens serve --config bucketlens.toml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "API listen address (overrides server.addr)")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "Metrics listen address (overrides server.metrics_addr)")
	serveCmd.Flags().BoolVar(&serveCheckLLM, "check-llm", true, "Test the language model connection at startup")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}
	if serveMetricsAddr != "" {
		cfg.Server.MetricsAddr = serveMetricsAddr
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	promExporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("create prometheus exporter: %w", err)
	}

	a, err := newApp(ctx, cfg, promExporter)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Close(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	if serveCheckLLM && a.provider != nil {
		if err := a.provider.TestConnection(ctx); err != nil {
			log.Warn().Err(err).Str("provider", a.provider.Name()).Msg("language model connection test failed")
		}
	}

	httpMetrics, err := daemon.NewMetrics()
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}
	d, err := daemon.NewDaemon(daemon.Config{Addr: cfg.Server.Addr}, a.hub, httpMetrics)
	if err != nil {
		return err
	}

	var g run.Group
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))
	{
		apiCtx, stop := context.WithCancel(ctx)
		g.Add(func() error {
			return d.Start(apiCtx)
		}, func(error) {
			stop()
		})
	}
	{
		srv := newMetricsServer(cfg.Server.MetricsAddr)
		g.Add(func() error {
			log.Info().Str("addr", srv.Addr).Msg("starting metrics server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		}, func(error) {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
		return nil
	}
	return err
}

func newMetricsServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
}
