package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/copyleftdev/dotbind/internal/errors"
	"github.com/copyleftdev/dotbind/internal/logging"
	"github.com/copyleftdev/dotbind/internal/metrics"
	"github.com/copyleftdev/dotbind/internal/server"
	"github.com/copyleftdev/dotbind/internal/store"
)

var (
	port         int
	dataDir      string
	serveBackend string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and JSON-RPC server",
	RunE:  serve,
}

func init() {
	serveCmd.Flags().IntVar(&port, "port", 0, "Listen port; overrides HTTP_PORT")
	serveCmd.Flags().StringVar(&dataDir, "data-dir", "", "Directory for run summaries; overrides DOT_DATA_DIR")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "", "Backend (native, emulated); overrides DOT_BACKEND")
	rootCmd.AddCommand(serveCmd)
}

func serve(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("port") {
		cfg.HTTP.Port = port
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Output.DataDir = dataDir
	}
	if cmd.Flags().Changed("backend") {
		cfg.DOT.Backend = serveBackend
	}

	serviceLogger := logger.WithFields(map[string]interface{}{
		"service": "dot-server",
		"version": version,
	})

	factory, err := solverFactory(cfg.DOT.Backend, cfg.DOT.LibraryPath)
	if err != nil {
		return errors.Wrap(err, "backend")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector, err := metrics.NewCollector(registry)
	if err != nil {
		return errors.Wrap(err, "failed to register metrics")
	}

	summaries, err := store.NewFSStore(cfg.Output.DataDir, logging.NewZapLogger(serviceLogger))
	if err != nil {
		return errors.Wrapf(err, "failed to open data directory %s", cfg.Output.DataDir)
	}

	// Create router
	r := chi.NewRouter()

	// Add middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logging.Middleware(logger))
	r.Use(errors.RecoveryMiddleware(serviceLogger))
	r.Use(errors.ErrorHandler(serviceLogger))
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))

	srv := server.NewServer(cfg, serviceLogger, factory,
		server.WithStore(summaries),
		server.WithObservers(collector),
		server.WithTraceDir(cfg.Output.TraceDir),
		server.WithRetention(cfg.Output.Retention),
	)
	srv.RegisterRoutes(r)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      r,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		serviceLogger.Info("Starting server", map[string]interface{}{
			"address": httpServer.Addr,
			"backend": cfg.DOT.Backend,
		})
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-serveErr:
		srv.Close()
		if err != nil {
			return errors.Wrap(err, "failed to start server")
		}
		return nil
	case <-quit:
	}

	serviceLogger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		serviceLogger.Error("Server forced to shutdown", map[string]interface{}{"error": err.Error()})
	}

	// Queued runs are cancelled; the one in progress finishes.
	if err := srv.Close(); err != nil {
		serviceLogger.Error("error closing server resources", map[string]interface{}{"error": err.Error()})
	}

	serviceLogger.Info("server exited properly")
	return nil
}
