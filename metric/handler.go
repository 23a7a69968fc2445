package metric

import (
	stderrors "errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ScGaSe/smartlogistics-sub001/errors"
)

const (
	defaultPort = 9090
	defaultPath = "/metrics"
)

// Server exposes the registry over HTTP alongside a /health endpoint
type Server struct {
	port     int
	path     string
	registry *MetricsRegistry
	health   http.Handler

	mu  sync.Mutex
	srv *http.Server
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithHealthHandler replaces the static /health responder
func WithHealthHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		if h != nil {
			s.health = h
		}
	}
}

// NewServer builds a server for registry. Zero port and empty path fall back
// to 9090 and /metrics.
func NewServer(port int, path string, registry *MetricsRegistry, opts ...ServerOption) *Server {
	s := &Server{
		port:     port,
		path:     path,
		registry: registry,
		health:   http.HandlerFunc(okHealth),
	}
	if s.port == 0 {
		s.port = defaultPort
	}
	if s.path == "" {
		s.path = defaultPath
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func okHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// Handler returns the mux that Start serves
func (s *Server) Handler() (http.Handler, error) {
	if s.registry == nil {
		return nil, errors.WrapFatal(stderrors.New("nil registry"), "Server", "Handler",
			"metrics registry not provided")
	}

	mux := http.NewServeMux()
	mux.Handle(s.path, promhttp.HandlerFor(s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.Handle("/health", s.health)
	return mux, nil
}

// Start serves until Stop is called. A second Start while running is invalid.
func (s *Server) Start() error {
	srv, err := s.prepare()
	if err != nil {
		return err
	}

	err = srv.ListenAndServe()
	if err == nil || stderrors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return errors.WrapFatal(err, "Server", "Start", "listen on "+srv.Addr)
}

func (s *Server) prepare() (*http.Server, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv != nil {
		return nil, errors.WrapInvalid(stderrors.New("server already running"), "Server", "Start",
			"start while running")
	}

	handler, err := s.Handler()
	if err != nil {
		return nil, err
	}

	s.srv = &http.Server{
		Addr:              net.JoinHostPort("", strconv.Itoa(s.port)),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.srv, nil
}

// Stop closes the listener. The server can be started again afterwards.
func (s *Server) Stop() error {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Close(); err != nil {
		return errors.WrapTransient(err, "Server", "Stop", "close http server")
	}
	return nil
}

// Address is the scrape URL on localhost
func (s *Server) Address() string {
	return "http://" + net.JoinHostPort("localhost", strconv.Itoa(s.port)) + s.path
}
