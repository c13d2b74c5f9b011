package api

import (
	"context"
	"net/http"
	"time"

	"example.com/coverlane/services/claims/config"
	"example.com/coverlane/services/claims/internal/api/handlers"
	"example.com/coverlane/services/claims/internal/api/middleware"
	"example.com/coverlane/services/claims/internal/claims"
	"example.com/coverlane/services/claims/internal/metrics"
	"example.com/coverlane/services/claims/internal/services"
	"example.com/coverlane/services/claims/internal/tracing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Server represents the HTTP server
type Server struct {
	config        config.Config
	router        *gin.Engine
	httpServer    *http.Server
	claimsService *services.ClaimsService
	metrics       *metrics.Metrics
	tracer        tracing.Tracer
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, claimsService *services.ClaimsService, metricsCollector *metrics.Metrics, tracer tracing.Tracer) *Server {
	server := &Server{
		config:        cfg,
		claimsService: claimsService,
		metrics:       metricsCollector,
		tracer:        tracer,
	}

	router := server.setupRouter()
	server.router = router

	httpServer := &http.Server{
		Addr:    cfg.ServerAddress,
		Handler: router,
	}
	if cfg.ServerTimeout > 0 {
		httpServer.ReadTimeout = cfg.ServerTimeout
		httpServer.WriteTimeout = cfg.ServerTimeout
	}
	server.httpServer = httpServer

	return server
}

// setupRouter configures the HTTP router
func (s *Server) setupRouter() *gin.Engine {
	if s.config.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	if s.config.CorsEnabled {
		router.Use(middleware.CORS(s.config.CorsOrigins))
	}

	router.MaxMultipartMemory = s.config.Uploads.MaxFileSizeBytes

	limits := claims.UploadLimits{
		MaxFileSize: s.config.Uploads.MaxFileSizeBytes,
		MaxFiles:    s.config.Uploads.MaxFilesPerClaim,
	}
	if limits.MaxFileSize <= 0 {
		limits.MaxFileSize = claims.DefaultUploadLimits.MaxFileSize
	}
	if limits.MaxFiles <= 0 {
		limits.MaxFiles = claims.DefaultUploadLimits.MaxFiles
	}

	claimsHandler := handlers.NewClaimsHandler(s.claimsService, s.tracer, limits)
	claimsHandler.RegisterRoutes(router)

	adminHandler := handlers.NewAdminHandler(s.claimsService, s.tracer)
	adminHandler.RegisterRoutes(router, middleware.AdminAuth(s.config.Auth.JWTSecret))

	if s.config.MetricsEnabled {
		metricsHandler := handlers.NewMetricsHandler(s.metrics, s.tracer)
		metricsHandler.RegisterRoutes(router)
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Info().Str("address", s.config.ServerAddress).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "HTTP server error")
	}

	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("Shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "HTTP server shutdown error")
	}

	log.Info().Msg("HTTP server shut down successfully")
	return nil
}
