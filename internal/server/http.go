// Package server exposes the monitor: run scenarios over HTTP, watch their
// records and logs over a WebSocket and scrape Prometheus metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// Server is the HTTP server of the monitor.
type Server struct {
	mux     *http.ServeMux
	handler *Handlers
	addr    string
}

// NewServer creates a new HTTP server. Metrics are served from gatherer.
func NewServer(addr string, handler *Handlers, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		handler: handler,
		addr:    addr,
	}
	s.setupRoutes(gatherer)
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	s.mux.HandleFunc("/api/run", s.handler.HandleRun)
	s.mux.HandleFunc("/api/status", s.handler.HandleStatus)
	s.mux.HandleFunc("/api/scenarios", s.handler.HandleScenarios)
	s.mux.HandleFunc("/api/devices", s.handler.HandleDevices)
	s.mux.HandleFunc("/api/download/", s.handler.HandleDownload)

	s.mux.HandleFunc("/ws", s.handler.HandleWebSocket)
	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the routed mux.
func (s *Server) Handler() http.Handler { return s.mux }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", s.addr).Info("monitor listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
