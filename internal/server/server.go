// Package server provides the HTTP API for briefd.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/briefd/internal/briefing"
	"github.com/fyrsmithlabs/briefd/internal/logging"
	"github.com/fyrsmithlabs/briefd/internal/query"
)

// BriefingService is the briefing pipeline consumed by the server.
type BriefingService interface {
	GetBriefing(ctx context.Context, userID string, forceRefresh bool) (b *briefing.Briefing, cacheHit bool)
}

// QueryEngine is the conversational-query path consumed by the server.
type QueryEngine interface {
	ProcessQuery(ctx context.Context, queryText, workspaceID string) (*query.Response, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// Server exposes the briefing and query endpoints.
type Server struct {
	echo      *echo.Echo
	briefings BriefingService
	queries   QueryEngine
	logger    *zap.Logger
	config    *Config
}

// NewServer creates the HTTP server.
func NewServer(briefings BriefingService, queries QueryEngine, logger *zap.Logger, cfg *Config) (*Server, error) {
	if briefings == nil {
		return nil, fmt.Errorf("briefing service cannot be nil")
	}
	if queries == nil {
		return nil, fmt.Errorf("query engine cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = &Config{
			Host: "localhost",
			Port: 8090,
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			requestID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.WithRequestID(c.Request().Context(), requestID)
			c.SetRequest(c.Request().WithContext(ctx))

			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", requestID),
			)

			return err
		}
	})

	s := &Server{
		echo:      e,
		briefings: briefings,
		queries:   queries,
		logger:    logger,
		config:    cfg,
	}

	s.registerRoutes()

	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	s.echo.GET("/briefing", s.handleBriefing)

	v1 := s.echo.Group("/api/v1")
	v1.POST("/query", s.handleQuery)
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// handleHealth returns a simple health check response.
func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleBriefing serves GET /briefing?user_id&force_refresh.
//
// A missing user_id is the only client error; every other failure mode
// degrades inside the pipeline and still produces a 200 with a
// schema-valid briefing.
func (s *Server) handleBriefing(c echo.Context) error {
	userID := c.QueryParam("user_id")
	if userID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}
	forceRefresh := c.QueryParam("force_refresh") == "true"

	b, cacheHit := s.briefings.GetBriefing(c.Request().Context(), userID, forceRefresh)
	if cacheHit {
		c.Response().Header().Set("X-Cache", "HIT")
	}

	return c.JSON(http.StatusOK, b)
}

// QueryRequest is the request body for POST /api/v1/query.
type QueryRequest struct {
	Query       string `json:"query"`
	WorkspaceID string `json:"workspace_id"`
}

// handleQuery serves the conversational-query path.
func (s *Server) handleQuery(c echo.Context) error {
	var req QueryRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid query request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query field is required")
	}
	if req.WorkspaceID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "workspace_id field is required")
	}

	resp, err := s.queries.ProcessQuery(c.Request().Context(), req.Query, req.WorkspaceID)
	if err != nil {
		s.logger.Error("query processing failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadGateway, "query processing failed")
	}

	return c.JSON(http.StatusOK, resp)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
