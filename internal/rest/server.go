// Copyright (c) 2026 Jeremy Hahn
// Copyright (c) 2026 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
)

// Config contains REST server configuration.
type Config struct {
	// Host is the listen address. Empty means all interfaces.
	Host string

	// Port is the listen port. 0 selects a random free port.
	Port int

	// ReadTimeout and WriteTimeout bound request processing.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// TLSCertFile and TLSKeyFile enable TLS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	// EnableMetrics mounts the Prometheus endpoint at MetricsPath.
	EnableMetrics bool
	MetricsPath   string

	// Version is reported by the health endpoint.
	Version string
}

// Server is the passkey REST API server.
type Server struct {
	config        Config
	service       *passkey.Service
	tokens        *passkey.JWTIssuer
	logger        *slog.Logger
	router        chi.Router
	httpServer    *http.Server
	listener      net.Listener
	healthChecker *health.Checker
	limiter       *ratelimit.Limiter
}

// NewServer creates a new REST server for the given passkey service.
func NewServer(config Config, service *passkey.Service, tokens *passkey.JWTIssuer, logger *slog.Logger) (*Server, error) {
	if service == nil {
		return nil, fmt.Errorf("service is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token issuer is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = 15 * time.Second
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = 15 * time.Second
	}
	if config.MetricsPath == "" {
		config.MetricsPath = "/metrics"
	}

	s := &Server{
		config:  config,
		service: service,
		tokens:  tokens,
		logger:  logger,
	}
	s.router = s.setupRouter()
	return s, nil
}

// SetHealthChecker attaches a health checker used by the probe endpoints.
func (s *Server) SetHealthChecker(checker *health.Checker) {
	s.healthChecker = checker
}

// SetRateLimiter attaches a rate limiter applied to all API routes.
// Must be called before Start.
func (s *Server) SetRateLimiter(limiter *ratelimit.Limiter) {
	s.limiter = limiter
	s.router = s.setupRouter()
}

// setupRouter builds the chi router with the middleware stack and routes.
func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware stack. Recovery first so panics in later middleware
	// are also caught.
	r.Use(s.RecoveryMiddleware())
	r.Use(s.CorrelationMiddleware())
	r.Use(s.LoggingMiddleware())
	r.Use(metrics.HTTPMiddleware)
	r.Use(s.CORSMiddleware())
	if s.limiter != nil && s.limiter.IsEnabled() {
		r.Use(ratelimit.Middleware(s.limiter))
	}

	// Health endpoints
	r.Get("/health", s.healthHandler)
	r.Get("/health/live", s.livenessHandler)
	r.Get("/health/ready", s.readinessHandler)
	r.Get("/health/startup", s.startupHandler)

	// Metrics endpoint
	if s.config.EnableMetrics {
		r.Handle(s.config.MetricsPath, promhttp.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		// Ceremony endpoints are unauthenticated. The creation
		// options endpoint reads an optional bearer token itself to
		// let signed-in users add credentials.
		r.Route("/auth", func(r chi.Router) {
			r.Post("/creationOptions", s.creationOptionsHandler)
			r.Post("/createCredential", s.createCredentialHandler)
			r.Get("/assertion-options", s.assertionOptionsHandler)
			r.Post("/assertion", s.assertionHandler)
		})

		// Account endpoints require a valid token
		r.Route("/me", func(r chi.Router) {
			r.Use(s.AuthenticationMiddleware())
			r.Get("/", s.meHandler)
			r.Delete("/", s.deleteMeHandler)
			r.Delete("/credentials/{credentialID}", s.deleteCredentialHandler)
		})
	})

	return r
}

// Router returns the HTTP handler. Exposed for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start begins listening for HTTP requests. It returns once the
// listener is bound; request serving continues in the background.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.listener = listener

	s.httpServer = &http.Server{
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	useTLS := s.config.TLSCertFile != "" && s.config.TLSKeyFile != ""
	s.logger.Info("Starting REST server",
		"address", listener.Addr().String(),
		"tls", useTLS)

	go func() {
		var serveErr error
		if useTLS {
			serveErr = s.httpServer.ServeTLS(listener, s.config.TLSCertFile, s.config.TLSKeyFile)
		} else {
			serveErr = s.httpServer.Serve(listener)
		}
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("REST server error", slog.Any("error", serveErr))
		}
	}()

	if s.healthChecker != nil {
		s.healthChecker.MarkStarted()
	}

	return nil
}

// Stop gracefully shuts down the server, waiting for in-flight
// requests to finish.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping REST server")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("REST server shutdown: %w", err)
	}
	return nil
}

// Port returns the bound listen port. Useful when the configured
// port was 0.
func (s *Server) Port() int {
	if s.listener == nil {
		return s.config.Port
	}
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.config.Port
}
