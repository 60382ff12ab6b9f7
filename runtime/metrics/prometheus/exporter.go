package prometheus

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const readHeaderTimeout = 10 * time.Second

// ErrExporterClosed is returned by Listen after Shutdown.
var ErrExporterClosed = errors.New("metrics exporter is shut down")

// Exporter serves the client metrics on /metrics and a liveness probe on
// /health.
type Exporter struct {
	addr     string
	registry *prometheus.Registry

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	serving  bool
	closed   bool
}

// NewExporter creates an exporter for addr with its own registry holding the
// client metrics and the Go runtime and process collectors.
func NewExporter(addr string) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(Collectors()...)
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewExporterWithRegistry(addr, reg)
}

// NewExporterWithRegistry creates an exporter backed by registry. Callers
// register Collectors() themselves.
func NewExporterWithRegistry(addr string, registry *prometheus.Registry) *Exporter {
	return &Exporter{addr: addr, registry: registry}
}

// Registry returns the registry scraped on /metrics.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns the exporter's routes for mounting on another server.
func (e *Exporter) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

// Listen binds the listen address without serving, so bind errors surface
// before Serve is started in the background. Calling it again is a no-op.
func (e *Exporter) Listen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrExporterClosed
	}
	if e.listener != nil {
		return nil
	}
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}
	e.listener = ln
	return nil
}

// Serve blocks serving requests on the bound listener until Shutdown, then
// returns http.ErrServerClosed. A second concurrent call returns nil.
func (e *Exporter) Serve() error {
	if err := e.Listen(); err != nil {
		return err
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return http.ErrServerClosed
	}
	if e.serving {
		e.mu.Unlock()
		return nil
	}
	e.serving = true
	e.server = &http.Server{
		Handler:           e.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	srv, ln := e.server, e.listener
	e.mu.Unlock()

	return srv.Serve(ln)
}

// Start binds and serves in one call.
func (e *Exporter) Start() error {
	return e.Serve()
}

// Shutdown stops serving and releases the listener. The exporter cannot be
// restarted.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.server != nil {
		return e.server.Shutdown(ctx)
	}
	if e.listener != nil {
		return e.listener.Close()
	}
	return nil
}

// Addr returns the bound address once listening, else the configured one.
func (e *Exporter) Addr() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listener != nil {
		return e.listener.Addr().String()
	}
	return e.addr
}
