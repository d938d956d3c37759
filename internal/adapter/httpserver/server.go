package httpserver

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/config"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

type viewerEndpoint interface {
	Serve(w http.ResponseWriter, r *http.Request, pollID, clientIP string) error
}

type snapshotSource interface {
	GetSnapshot(ctx context.Context, pollID string) (*domain.PollSnapshot, error)
}

type viewerStats interface {
	ViewerCount(pollID string) int
	Stats() (rooms, connections int)
}

// Dependencies are the collaborators the HTTP surface routes into. Relay
// receives facts posted to the ingest API.
type Dependencies struct {
	Endpoint     viewerEndpoint
	Relay        domain.FactPublisher
	Snapshots    snapshotSource
	Viewers      viewerStats
	Registry     *prometheus.Registry
	HTTPMetrics  *metrics.HTTPMetrics
	HealthChecks []HealthCheck
	Clock        clockwork.Clock
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	endpoint    viewerEndpoint
	relay       domain.FactPublisher
	snapshots   snapshotSource
	viewers     viewerStats
	registry    *prometheus.Registry
	httpMetrics *metrics.HTTPMetrics

	healthChecks []HealthCheck
	clock        clockwork.Clock
	startTime    time.Time
}

func NewServer(cfg *config.Config, deps Dependencies) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	srv := &Server{
		echo:         e,
		config:       cfg,
		endpoint:     deps.Endpoint,
		relay:        deps.Relay,
		snapshots:    deps.Snapshots,
		viewers:      deps.Viewers,
		registry:     deps.Registry,
		httpMetrics:  deps.HTTPMetrics,
		healthChecks: deps.HealthChecks,
		clock:        clock,
		startTime:    clock.Now(),
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones. Hijacked
// WebSocket connections are not tracked by echo; close them through the
// connection lifecycle.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP exposes the router for tests and embedding.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
