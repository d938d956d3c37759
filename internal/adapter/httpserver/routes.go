package httpserver

import (
	"log/slog"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const maxFactBodySize = "64K"

func (s *Server) registerRoutes() {
	s.echo.Use(s.setupRequestLoggerMiddleware())
	s.echo.Use(middleware.Recover())
	s.echo.Use(correlationMiddleware)
	if s.httpMetrics != nil {
		s.echo.Use(s.httpMetrics.Middleware())
	}
	s.echo.Use(ErrorHandlingMiddleware(s.httpMetrics))

	s.registerHealthRoutes()
	if s.registry != nil {
		s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))
	}
	s.echo.GET("/stats", s.handleStats)

	wsLimiter := newConnectLimiter(s.config.WSConnectRate, s.config.WSConnectBurst)
	s.echo.GET("/ws/poll/:id", s.handleViewerSocket, wsLimiter)

	s.registerPollRoutes()
}

func (s *Server) registerPollRoutes() {
	api := s.echo.Group("/api/polls/:id")
	api.GET("/state", s.handlePollState)
	api.GET("/viewers", s.handleViewerCount)

	bodyLimit := middleware.BodyLimit(maxFactBodySize)
	api.POST("/votes", s.handleVoteRecorded, bodyLimit)
	api.POST("/likes", s.handleLikeToggled, bodyLimit)
	api.POST("/comments", s.handleCommentPosted, bodyLimit)
}

func (s *Server) setupRequestLoggerMiddleware() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogError:   true,
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/metrics" || c.Path() == "/health/live"
		},
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
			}
			if v.Error != nil {
				attrs = append(attrs, "error", v.Error)
			}
			slog.InfoContext(c.Request().Context(), "Request", attrs...)
			return nil
		},
	})
}
