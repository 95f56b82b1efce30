package observability

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// Check reports a dependency's readiness; nil means ready
type Check func(ctx context.Context) error

// HealthChecker manages health checks for both gRPC and HTTP
type HealthChecker struct {
	grpcHealth *health.Server
	httpServer *http.Server
	metrics    *Metrics
	logger     *zap.Logger

	mu     sync.RWMutex
	ready  bool
	checks map[string]Check
}

// NewHealthChecker creates a new health checker; metrics may be nil
func NewHealthChecker(logger *zap.Logger, metrics *Metrics) *HealthChecker {
	return &HealthChecker{
		grpcHealth: health.NewServer(),
		metrics:    metrics,
		logger:     logger,
		ready:      true,
		checks:     make(map[string]Check),
	}
}

// AddCheck registers a named readiness check
func (h *HealthChecker) AddCheck(name string, check Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// RegisterGRPC registers the health service with the gRPC server
func (h *HealthChecker) RegisterGRPC(s *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(s, h.grpcHealth)
	h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
}

// Handler serves /healthz and /metrics
func (h *HealthChecker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealthz)
	mux.Handle("/metrics", h.metrics.Handler())
	return mux
}

// StartHTTPServer serves Handler on addr until Shutdown
func (h *HealthChecker) StartHTTPServer(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return h.ServeHTTP(ln)
}

// ServeHTTP serves Handler on ln until Shutdown
func (h *HealthChecker) ServeHTTP(ln net.Listener) error {
	h.mu.Lock()
	h.httpServer = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srv := h.httpServer
	h.mu.Unlock()

	h.logger.Info("starting HTTP health server", zap.String("addr", ln.Addr().String()))
	return srv.Serve(ln)
}

// Shutdown marks the process not ready and stops the HTTP server
func (h *HealthChecker) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.ready = false
	h.grpcHealth.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	srv := h.httpServer
	h.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// Ready runs every check and returns the names of the failing ones
func (h *HealthChecker) Ready(ctx context.Context) (bool, []string) {
	h.mu.RLock()
	ready := h.ready
	checks := make(map[string]Check, len(h.checks))
	for name, c := range h.checks {
		checks[name] = c
	}
	h.mu.RUnlock()

	var failing []string
	if !ready {
		failing = append(failing, "shutdown")
	}
	for name, check := range checks {
		if err := check(ctx); err != nil {
			h.logger.Debug("readiness check failed", zap.String("check", name), zap.Error(err))
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	return len(failing) == 0, failing
}

func (h *HealthChecker) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if ok, failing := h.Ready(ctx); !ok {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("NOT_READY: " + strings.Join(failing, ",")))
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
