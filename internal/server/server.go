package server

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"

	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rayzilt/aipscan-deploy/internal/config"
	"github.com/rayzilt/aipscan-deploy/internal/middlewares"
	"github.com/rayzilt/aipscan-deploy/internal/observability"
)

// Server is the HTTP status API. The listener is bound at construction so
// that a configured port of 0 resolves to a concrete address before Start.
type Server struct {
	cfg      *config.Configuration
	listener net.Listener
	srv      *http.Server
	log      *zap.SugaredLogger
}

// New builds the router, binds the listener and wires the API routes. The
// registerFn callback receives the /api/v1 route group, which carries the
// authentication middleware when auth is enabled.
func New(cfg *config.Configuration, registerFn func(*gin.RouterGroup)) (*Server, error) {
	if cfg.Server.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	observability.RegisterMetrics()

	router := gin.New()
	router.Use(middlewares.Logger(), middlewares.Metrics(), ginzap.RecoveryWithZap(zap.L(), true))
	_ = router.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api/v1")
	if cfg.Auth.Enabled {
		secret, err := os.ReadFile(cfg.Auth.JWTSecretFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT secret: %w", err)
		}
		api.Use(middlewares.Authentication(bytes.TrimSpace(secret)))
	}
	registerFn(api)

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		c.Status(http.StatusNotFound)
	})

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.Port))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on port %d: %w", cfg.Server.Port, err)
	}

	return &Server{
		cfg:      cfg,
		listener: listener,
		srv:      &http.Server{Handler: router},
		log:      zap.S().Named("server"),
	}, nil
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Start serves requests until Stop is called or the listener fails. It
// blocks; after a clean Stop the returned error is http.ErrServerClosed.
func (s *Server) Start(ctx context.Context) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	s.log.Infow("status API listening",
		"addr", s.Addr(),
		"mode", s.cfg.Server.Mode,
		"auth", s.cfg.Auth.Enabled,
	)
	return s.srv.Serve(s.listener)
}

// Stop drains in-flight requests and closes the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Infow("stopping status API")
	return s.srv.Shutdown(ctx)
}
