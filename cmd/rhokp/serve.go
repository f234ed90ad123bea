package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rhokp/internal/metrics"
	chiTransport "github.com/kailas-cloud/rhokp/internal/transport/chi"
	"github.com/kailas-cloud/rhokp/internal/version"
)

func serveCmd(g *globalFlags) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve GET /v1/retrieve, /health and /metrics over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := g.load()
			if err != nil {
				return err
			}
			defer a.close()
			if cmd.Flags().Changed("port") {
				a.cfg.HTTP.Port = port
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Listen port (default from config, PORT)")
	return cmd
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func (a *app) serve(ctx context.Context) error {
	logger := a.logger
	logger.Info("Starting rhokp API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("portal", a.cfg.OKP.BaseURL),
		zap.String("local_index", a.cfg.Local.Index),
		zap.String("cache_driver", a.cfg.Cache.Driver),
		zap.Int("http_port", a.cfg.HTTP.Port),
	)

	reg := newRegistry()
	client, err := a.newClient(reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("Error closing client", zap.Error(err))
		}
	}()

	httpMetrics, err := metrics.NewHTTP(reg)
	if err != nil {
		return fmt.Errorf("http metrics: %w", err)
	}

	server := chiTransport.NewServer(client, client, logger)
	router := chiTransport.NewRouter(server, chiTransport.RouterConfig{
		APIKeys:  a.cfg.Auth.APIKeys,
		Metrics:  httpMetrics,
		Gatherer: reg,
	})

	addr := fmt.Sprintf(":%d", a.cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(a.cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(a.cfg.HTTP.WriteTimeoutSec) * time.Second,
	}
	return runHTTP(ctx, srv, time.Duration(a.cfg.HTTP.ShutdownSec)*time.Second, logger)
}

// runHTTP serves until SIGINT/SIGTERM or ctx is done, then shuts down gracefully.
func runHTTP(ctx context.Context, srv *http.Server, shutdown time.Duration, logger *zap.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-quit:
		logger.Info("Received shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdown)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
		return err
	}

	logger.Info("Server stopped gracefully")
	return nil
}
