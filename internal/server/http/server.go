// Package http serves the operator API, the live frame stream and the health probes.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/guardvision/guardvision/internal/export"
	"github.com/guardvision/guardvision/internal/monitor/core"
	"github.com/guardvision/guardvision/internal/monitor/model"
	"github.com/guardvision/guardvision/internal/pkg/metrics"
	"github.com/guardvision/guardvision/pkg/log"
	"github.com/guardvision/guardvision/pkg/options"
)

// Navigator is the session the API drives.
type Navigator interface {
	Frame() model.Frame
	Login(ctx context.Context, identifier, secret string) error
	OpenCameraList(ctx context.Context) error
	SelectCamera(ctx context.Context, cameraID string) error
	Back(ctx context.Context) error
	Logout(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// Config wires a Server.
type Config struct {
	Options   *options.HttpOptions
	Navigator Navigator
	// Exporter is optional; without it the export route answers 503.
	Exporter *export.Exporter
	// Ready reports whether the record store is reachable; nil means always ready.
	Ready func() bool
	Log   log.Logger
}

// Server is the HTTP front end. It is also a core.Renderer that pushes every
// frame to the connected websocket clients.
type Server struct {
	server   *http.Server
	options  *options.HttpOptions
	nav      Navigator
	exporter *export.Exporter
	ready    func() bool
	log      log.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
}

var _ core.Renderer = (*Server)(nil)

func NewServer(cfg Config) *Server {
	logger := cfg.Log
	if logger == nil {
		logger = log.NewNopLogger()
	}
	ready := cfg.Ready
	if ready == nil {
		ready = func() bool { return true }
	}

	s := &Server{
		options:  cfg.Options,
		nav:      cfg.Navigator,
		exporter: cfg.Exporter,
		ready:    ready,
		log:      logger.WithName("http"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients: make(map[*client]struct{}),
	}
	s.server = &http.Server{
		Addr:         cfg.Options.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Options.Timeout,
		WriteTimeout: cfg.Options.Timeout,
	}
	return s
}

// Handler returns the router serving every route.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Basic Liveness Probe
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !s.ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("record store unreachable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/frame", s.getFrame).Methods(http.MethodGet)
	api.HandleFunc("/ws", s.stream).Methods(http.MethodGet)
	api.HandleFunc("/session/login", s.login).Methods(http.MethodPost)
	api.HandleFunc("/session/logout", s.action(s.nav.Logout)).Methods(http.MethodPost)
	api.HandleFunc("/cameras", s.action(s.nav.OpenCameraList)).Methods(http.MethodPost)
	api.HandleFunc("/cameras/{id}", s.selectCamera).Methods(http.MethodPost)
	api.HandleFunc("/back", s.action(s.nav.Back)).Methods(http.MethodPost)
	api.HandleFunc("/refresh", s.action(s.nav.Refresh)).Methods(http.MethodPost)
	api.HandleFunc("/records/{pushKey}/export", s.exportRecord).Methods(http.MethodPost)

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, lis)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	log.Info("Starting HTTP Server", "addr", lis.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.closeClients()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}
