package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vaultguard/vaultguard/internal/config"
	"github.com/vaultguard/vaultguard/internal/errors"
	"github.com/vaultguard/vaultguard/internal/identity"
	"github.com/vaultguard/vaultguard/internal/logging"
	"github.com/vaultguard/vaultguard/internal/metrics"
	"github.com/vaultguard/vaultguard/internal/vault"
)

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	config      config.ServerConfig
	apiConfig   config.APIConfig
	store       vault.Store
	provider    identity.Provider
	oauth       *identity.OAuthFlow
	gate        *identity.Gate
	metrics     *metrics.Metrics
	logger      *logging.Logger
	audit       logging.AuditTrail
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
	tlsConfig   config.TLSConfig
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithOAuth wires the OAuth redirect flow.
func WithOAuth(flow *identity.OAuthFlow) Option {
	return func(s *Server) { s.oauth = flow }
}

// WithGate attaches the session gate so the server closes it on shutdown.
func WithGate(gate *identity.Gate) Option {
	return func(s *Server) { s.gate = gate }
}

// WithAuditTrail wires an audit sink for API access events.
func WithAuditTrail(trail logging.AuditTrail) Option {
	return func(s *Server) { s.audit = trail }
}

// WithLogger overrides the default logger.
func WithLogger(logger *logging.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// NewServer creates a new API server
func NewServer(cfg config.ServerConfig, apiCfg config.APIConfig, store vault.Store, provider identity.Provider, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	requestsPerMinute := apiCfg.RateLimit.RequestsPerMinute
	if requestsPerMinute <= 0 {
		requestsPerMinute = 120
	}
	burst := apiCfg.RateLimit.Burst
	if burst <= 0 {
		burst = 30
	}
	maxBody := apiCfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	server := &Server{
		router:      gin.New(),
		config:      cfg,
		apiConfig:   apiCfg,
		store:       store,
		provider:    provider,
		metrics:     metrics.NewMetrics("vaultguard"),
		logger:      logging.NewLogger(),
		audit:       logging.NopAuditTrail{},
		rateLimiter: newIPRateLimiter(time.Minute/time.Duration(requestsPerMinute), burst),
		tlsConfig:   cfg.TLS,
	}
	for _, opt := range opts {
		opt(server)
	}
	server.router.HandleMethodNotAllowed = true

	server.router.Use(gin.Recovery())
	server.router.Use(rateLimitMiddleware(server.rateLimiter))
	server.router.Use(bodyLimitMiddleware(maxBody))
	if apiCfg.CORS.Enabled {
		server.router.Use(corsMiddleware(apiCfg.CORS))
	}
	server.router.Use(metrics.Middleware(server.metrics, server.logger))
	server.router.Use(loggingMiddleware(server.logger))

	server.setupRoutes()
	return server
}

// loggingMiddleware provides structured logging for all requests
func loggingMiddleware(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		correlationID := c.GetHeader("X-Correlation-ID")
		if correlationID == "" {
			correlationID = logging.GenerateCorrelationID()
		}

		ctx := logging.WithCorrelationID(c.Request.Context(), correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		duration := time.Since(start).Seconds()
		logger.InfoWithContext(ctx, "request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_seconds", duration,
		)
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	// Metrics and health - no authentication
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/health", s.handleHealth)

	auth := s.router.Group("/auth")
	{
		auth.POST("/signup", s.handleSignUp)
		auth.POST("/signin", s.handleSignIn)
		auth.POST("/signout", s.handleSignOut)
		auth.POST("/reset", s.handleRequestReset)
		auth.POST("/reset/confirm", s.handleConfirmReset)
		auth.GET("/verify", s.handleVerifyEmail)
		auth.POST("/verify/resend", s.handleResendVerification)
		auth.GET("/oauth", s.handleOAuthBegin)
		auth.GET("/oauth/callback", s.handleOAuthCallback)
		auth.GET("/session", s.sessionAuth(), s.handleSession)
		auth.PATCH("/profile", s.sessionAuth(), s.handleUpdateProfile)
	}

	// Vault endpoints require a verified session.
	vaultGroup := s.router.Group("/vault")
	vaultGroup.Use(s.sessionAuth())
	{
		vaultGroup.GET("/records", s.handleListRecords)
		vaultGroup.POST("/records", s.handleCreateRecord)
		vaultGroup.GET("/records/:id", s.handleGetRecord)
		vaultGroup.PATCH("/records/:id", s.handleUpdateRecord)
		vaultGroup.DELETE("/records/:id", s.handleDeleteRecord)
		vaultGroup.POST("/records/:id/favorite", s.handleToggleFavorite)
		vaultGroup.GET("/watch", s.handleWatch)
	}

	tools := s.router.Group("/tools")
	tools.Use(s.sessionAuth())
	{
		tools.POST("/generate", s.handleGenerate)
		tools.POST("/strength", s.handleStrength)
	}
}

// Run starts the HTTP or HTTPS server based on TLS configuration
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	if s.tlsConfig.Enabled {
		return s.RunTLS()
	}

	if s.httpServer == nil {
		s.httpServer = NewHTTPServer(addr, s.router)
	}

	s.logger.Info("starting HTTP server", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// RunTLS starts the HTTPS server with TLS configuration
func (s *Server) RunTLS() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.HTTPPort)

	s.logger.Info("starting HTTPS server", "addr", addr, "cert_file", s.tlsConfig.CertFile, "min_version", s.tlsConfig.MinVersion)

	srv, err := NewHTTPSServerWithConfig(addr, s.tlsConfig.CertFile, s.tlsConfig.KeyFile, s.tlsConfig.MinVersion, s.router)
	if err != nil {
		return &errors.ErrServerStart{Addr: addr, Err: err}
	}
	s.httpServer = srv

	return s.httpServer.ListenAndServeTLS("", "")
}

// StartWithServer starts the server with a pre-configured http.Server
func (s *Server) StartWithServer(srv *http.Server) error {
	s.httpServer = srv
	s.logger.Info("starting HTTP server", "addr", srv.Addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server and its collaborators
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("initiating graceful shutdown")

	var wg sync.WaitGroup
	errs := make(chan error, 3)

	if s.httpServer != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.logger.Info("shutting down HTTP server")
			if err := s.httpServer.Shutdown(ctx); err != nil {
				s.logger.Error("HTTP server shutdown error", "error", err.Error())
				errs <- &errors.ErrServerShutdown{Err: err}
			}
		}()
	}

	if s.gate != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.gate.Close()
		}()
	}

	if s.store != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.store.Close(); err != nil {
				errs <- fmt.Errorf("store close: %w", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	close(errs)
	var errList []error
	for err := range errs {
		if err != nil {
			errList = append(errList, err)
		}
	}
	if len(errList) > 0 {
		return fmt.Errorf("shutdown errors: %v", errList)
	}

	s.logger.Info("graceful shutdown completed")
	return nil
}

// handleHealth returns health status
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}
