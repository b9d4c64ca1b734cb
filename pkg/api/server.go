// Package api serves stored pods over HTTP.
//
// Routes:
//
//	GET    /health                 liveness, unauthenticated
//	GET    /metrics                Prometheus metrics, unauthenticated
//	POST   /api/v1/pods            store a pod (raw bytes or a YAML/JSON document)
//	GET    /api/v1/pods            list stored pods
//	GET    /api/v1/pods/{id}       raw pod bytes, ETag = BLAKE3 digest
//	GET    /api/v1/pods/{id}/dump  render as json, yaml, text or cbor
//	DELETE /api/v1/pods/{id}       delete a pod
//	POST   /api/v1/validate        validate without storing
//	GET    /api/v1/stats           storage totals
//
// Everything under /api/v1 requires the X-API-Key header. Responses are
// gzip-compressed for clients that accept it.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ssargent/podkit/pkg/logging"
	"github.com/ssargent/podkit/pkg/pod"
)

const (
	metricsRefreshInterval = 30 * time.Second
	shutdownTimeout        = 10 * time.Second
)

// NewRouter wires the routes of s. gatherer serves /metrics.
func NewRouter(s *Server, gatherer prometheus.Gatherer, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(logging.Middleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/health", s.metrics.InstrumentHandler("GET", "/health", s.handleHealth))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.metrics.InstrumentAuthMiddleware(apiKeyMiddleware(s.config.APIKey)))

		r.Post("/pods", s.metrics.InstrumentHandler("POST", "/api/v1/pods", s.handlePutPod))
		r.Get("/pods", s.metrics.InstrumentHandler("GET", "/api/v1/pods", s.handleListPods))
		r.Get("/pods/{id}", s.metrics.InstrumentHandler("GET", "/api/v1/pods/{id}", s.handleGetPod))
		r.Get("/pods/{id}/dump", s.metrics.InstrumentHandler("GET", "/api/v1/pods/{id}/dump", s.handleDumpPod))
		r.Delete("/pods/{id}", s.metrics.InstrumentHandler("DELETE", "/api/v1/pods/{id}", s.handleDeletePod))
		r.Post("/validate", s.metrics.InstrumentHandler("POST", "/api/v1/validate", s.handleValidate))
		r.Get("/stats", s.metrics.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))
	})

	return r
}

// StartServer serves the API until ctx is cancelled, then shuts down
// gracefully.
func StartServer(ctx context.Context, storage PodStorage, config ServerConfig, logger *slog.Logger, opts ...pod.Option) error {
	if config.APIKey == "" || config.APIKey == "auto" {
		return fmt.Errorf("an API key is required to start the server")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := NewMetrics(registry)
	server := NewServer(storage, config, metrics, opts...)

	addr := net.JoinHostPort(config.Bind, strconv.Itoa(config.Port))
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           NewRouter(server, registry, logger),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	done := make(chan struct{})
	defer close(done)
	go server.runMetricsUpdater(done, metricsRefreshInterval, logger)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting podkit API server", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info("shutting down podkit API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
