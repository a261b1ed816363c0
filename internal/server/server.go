package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/teemow/newsletterpost/internal/instrumentation"
	"github.com/teemow/newsletterpost/internal/pipeline"
)

const (
	// DefaultAddr is the default listen address of the webhook server.
	DefaultAddr = ":8000"

	// DefaultRunTimeout bounds one pipeline run started by a push.
	DefaultRunTimeout = 5 * time.Minute

	// Pub/Sub waits up to ten minutes for a push acknowledgement.
	defaultWriteTimeout = 10 * time.Minute
)

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, trig pipeline.Trigger) (*pipeline.Result, error)
}

// Config configures the webhook server.
type Config struct {
	Addr   string
	Runner Runner

	// PushToken, when set, must match the token query parameter of push requests.
	PushToken string

	// RateLimit is the sustained number of pipeline triggers per second.
	// Zero disables rate limiting.
	RateLimit float64
	RateBurst int

	RunTimeout time.Duration

	Metrics *instrumentation.Metrics
	Logger  *slog.Logger
}

// Server is the webhook HTTP server.
type Server struct {
	config     Config
	sc         *ServerContext
	health     *HealthChecker
	limiter    *rate.Limiter
	httpServer *http.Server
	logger     *slog.Logger

	mu   sync.Mutex
	addr string
}

// New creates a Server. Runner is required.
func New(sc *ServerContext, config Config) (*Server, error) {
	if config.Runner == nil {
		return nil, errors.New("server: pipeline runner is required")
	}
	if sc == nil {
		sc = NewServerContext(context.Background())
	}
	if config.Addr == "" {
		config.Addr = DefaultAddr
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultRunTimeout
	}
	if config.RateBurst <= 0 {
		config.RateBurst = 1
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		config: config,
		sc:     sc,
		health: NewHealthChecker(sc),
		logger: logger.With("component", "server"),
		addr:   config.Addr,
	}
	if config.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst)
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       120 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return sc.Context() },
	}
	return s, nil
}

// Handler returns the instrumented request handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	push := http.Handler(http.HandlerFunc(s.handlePush))
	push = s.rateLimit(push)
	push = s.requireToken(push)
	mux.Handle("POST /mail_payload", push)
	mux.HandleFunc("POST /webhooks", s.handleWebhook)

	s.health.RegisterHealthEndpoints(mux)

	return otelhttp.NewHandler(s.instrument(mux), "newsletterpost",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	return s.StartWithReadySignal(nil)
}

// StartWithReadySignal is Start with a channel closed once the port is bound.
// After Shutdown it returns http.ErrServerClosed without serving.
func (s *Server) StartWithReadySignal(ready chan<- struct{}) error {
	addr := s.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.logger.Info("starting webhook server", "addr", ln.Addr().String())
	if ready != nil {
		close(ready)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown marks the server not ready and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.logger.Info("shutting down webhook server")
	err := s.httpServer.Shutdown(ctx)
	_ = s.sc.Shutdown()
	return err
}

// Addr returns the listen address; after start it is the bound address.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}
