// Package api exposes the gateway over HTTP. The transport layer owns CORS,
// (de)serialization and the call to the generation backend; quota decisions
// come from the admission pipeline.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/inkproof/stencil-gateway/internal/admission"
	"github.com/inkproof/stencil-gateway/internal/config"
	"github.com/inkproof/stencil-gateway/internal/generation"
	"github.com/inkproof/stencil-gateway/internal/kvstore"
)

// Generator is the outbound boundary to the image transformation backend.
type Generator interface {
	Generate(ctx context.Context, req generation.Request) (*generation.Result, error)
}

// Server represents the API server
type Server struct {
	router    *gin.Engine
	logger    *zap.Logger
	pipeline  *admission.Pipeline
	generator Generator
	store     kvstore.Store
	maxBody   int64
}

// NewServer creates a new API server with injected collaborators.
func NewServer(
	logger *zap.Logger,
	pipeline *admission.Pipeline,
	generator Generator,
	store kvstore.Store,
	cfg config.ServerConfig,
) *Server {
	server := &Server{
		logger:    logger,
		pipeline:  pipeline,
		generator: generator,
		store:     store,
		maxBody:   cfg.MaxBodyBytes,
	}

	router := gin.New()
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(requestID())

	// The web client sends identity headers cross-origin, so they must be
	// allowed explicitly.
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept",
			"X-User-Phone", "X-Device-Id", "X-Account-Id",
		},
		ExposeHeaders: []string{"Content-Length", "X-Request-Id"},
		MaxAge:        12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// registerRoutes registers all API routes
func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.healthCheck)
		v1.GET("/generate", s.generateProbe)
		v1.POST("/generate", s.bodyLimit(), s.generate)
	}
}

// requestID attaches a request id, honoring one supplied by the client.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// bodyLimit caps the request body; base64 image payloads get large.
func (s *Server) bodyLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBody)
		c.Next()
	}
}

func (s *Server) healthCheck(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "store unreachable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// generateProbe answers GET on the generate route so clients can check the
// API is up without consuming quota.
func (s *Server) generateProbe(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true, "message": "API online. Use POST on /api/v1/generate"})
}
