// Package api provides the HTTP parse service for structdoc
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/structdoc/structdoc/pkg/config"
	"github.com/structdoc/structdoc/pkg/logger"
	"github.com/structdoc/structdoc/pkg/parsers"
)

// Server represents the API server instance
type Server struct {
	integration *parsers.ParserIntegration
	factory     *parsers.Factory
	config      *config.FrameworkConfig
	logger      logger.Logger
	router      *gin.Engine
	server      *http.Server
	auth        *AuthManager
	started     time.Time
}

// NewServer creates a new API server instance
func NewServer(integration *parsers.ParserIntegration, cfg *config.FrameworkConfig, log logger.Logger) *Server {
	if cfg == nil {
		cfg = config.NewFrameworkConfig()
	}
	if cfg.API == nil {
		cfg.API = config.NewAPIConfig()
	}
	if log == nil {
		log = logger.New()
	}
	if integration == nil {
		integration = parsers.NewParserIntegration(nil, nil, log)
	}

	// Set Gin mode based on log level (use LogLevel as proxy for environment)
	if cfg.LogLevel == "error" || cfg.LogLevel == "warn" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()

	s := &Server{
		integration: integration,
		factory:     integration.Factory(),
		config:      cfg,
		logger:      log,
		router:      router,
		auth:        NewAuthManager(cfg.API.JWTSecret, cfg.API.TokenTTL),
		started:     time.Now(),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())

	if s.config.API.CORSEnabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = s.config.API.CORSOrigins
		if len(corsConfig.AllowOrigins) == 0 {
			corsConfig.AllowOrigins = []string{"*"}
		}
		corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
		corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"}
		s.router.Use(cors.New(corsConfig))
	}

	s.router.Use(s.requestIDMiddleware())
	s.router.Use(s.jwtAuthMiddleware())
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.healthCheck)
	s.router.GET("/", s.redirectToSpec)
	s.router.GET("/openapi.json", s.getOpenAPISpec)
	s.router.POST("/auth/token", s.issueToken)

	v1 := s.router.Group("/v1")
	{
		v1.POST("/parse", s.parseUpload)
		v1.POST("/parse/path", s.parsePath)
		v1.POST("/convert", s.convertDocument)
		v1.GET("/strategies", s.listStrategies)
		v1.GET("/extensions", s.listExtensions)
		v1.GET("/stats", s.getStats)
	}
}

// Start starts the API server and blocks until ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	timeout := s.config.API.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.API.Host, s.config.API.Port),
		Handler:      s.router,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("Starting API server", map[string]interface{}{
		"addr": s.server.Addr,
		"mode": gin.Mode(),
	})

	errCh := make(chan error, 1)
	go func() {
		var err error
		if s.config.API.TLSEnabled {
			err = s.server.ListenAndServeTLS(s.config.API.TLSCert, s.config.API.TLSKey)
		} else {
			err = s.server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down API server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// Stop gracefully stops the API server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// Router exposes the gin engine, mainly for tests
func (s *Server) Router() *gin.Engine {
	return s.router
}
