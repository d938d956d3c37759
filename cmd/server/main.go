package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/httpserver"
	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/adapter/postgres"
	"github.com/arjun-vegeta/QuickPoll/internal/adapter/redis"
	"github.com/arjun-vegeta/QuickPoll/internal/adapter/websocket"
	"github.com/arjun-vegeta/QuickPoll/internal/app"
	"github.com/arjun-vegeta/QuickPoll/internal/broadcast"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/config"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/logging"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/retry"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/version"
	"github.com/arjun-vegeta/QuickPoll/internal/room"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

const connectTimeout = 30 * time.Second

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// slog is not initialized yet
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func startupPolicy(dependency string) retry.Policy {
	p := retry.DefaultPolicy
	p.OnRetry = func(attempt int, err error, backoff time.Duration) {
		slog.Warn("Dependency not reachable, retrying", "dependency", dependency, "attempt", attempt, "backoff", backoff, "error", err)
	}
	return p
}

func setupDB(cfg *config.Config, m *metrics.DBMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := retry.Do(ctx, startupPolicy("postgres"), func(ctx context.Context) (*pgxpool.Pool, error) {
		return postgres.Connect(ctx, cfg.DatabaseURL, m)
	})
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return pool
}

func setupRedis(cfg *config.Config, m *metrics.RedisMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := retry.Do(ctx, startupPolicy("redis"), func(ctx context.Context) (*goredis.Client, error) {
		return redis.NewClient(ctx, cfg.RedisURL, m)
	})
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

// startFactSubscriber relays facts from the Redis channel until ctx is
// cancelled. The returned WaitGroup completes when the subscriber has exited.
func startFactSubscriber(ctx context.Context, cfg *config.Config, client *goredis.Client, relay *websocket.Publisher) *sync.WaitGroup {
	var wg sync.WaitGroup
	subscriber := redis.NewFactSubscriber(client, cfg.FactChannel, relay)

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := subscriber.Start(ctx); err != nil {
			slog.Error("Fact subscriber stopped", "channel", cfg.FactChannel, "error", err)
		}
	}()
	return &wg
}

type shutdownDeps struct {
	server         *httpserver.Server
	lifecycle      *broadcast.Lifecycle
	stopSubscriber context.CancelFunc
	subscriberDone *sync.WaitGroup
	timeout        time.Duration
}

func runGracefulShutdown(deps shutdownDeps) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), deps.timeout)
		defer cancel()
		if err := deps.server.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		deps.stopSubscriber()
		if deps.subscriberDone != nil {
			deps.subscriberDone.Wait()
		}

		deps.lifecycle.Shutdown()
		close(done)
	}()

	return done
}

func breakerCheck(snapshots *app.SnapshotService) func(context.Context) error {
	return func(context.Context) error {
		if snapshots.BreakerState() == circuitbreaker.OpenState {
			return errors.New("snapshot circuit breaker is open")
		}
		return nil
	}
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", version.Get().Version)

	reg := metrics.NewRegistry()
	wsMetrics := metrics.NewWebSocketMetrics(reg)
	factMetrics := metrics.NewFactMetrics(reg)

	pool := setupDB(cfg, metrics.NewDBMetrics(reg))
	defer pool.Close()

	pollRepo := postgres.NewPollRepo(pool)
	snapshots := app.NewSnapshotService(pollRepo, clock, metrics.NewSnapshotMetrics(reg))

	rooms := room.NewRegistry()
	broadcaster := broadcast.NewBroadcaster(rooms, wsMetrics)
	lifecycle := broadcast.NewLifecycle(rooms, broadcaster)

	endpoint := websocket.NewEndpoint(lifecycle, snapshots, clock, wsMetrics, websocket.EndpointConfig{
		AllowedOrigins:  cfg.AllowedOrigins,
		IsDevelopment:   cfg.IsDevelopment(),
		MaxConnections:  int64(cfg.MaxWebSocketConnections),
		MaxPerIP:        cfg.MaxConnectionsPerIP,
		SnapshotTimeout: cfg.SnapshotTimeout,
	})

	healthChecks := []httpserver.HealthCheck{
		{Name: "postgres", Check: pollRepo.Ping},
		{Name: "snapshot_breaker", Check: breakerCheck(snapshots)},
	}

	subscriberCtx, stopSubscriber := context.WithCancel(context.Background())
	defer stopSubscriber()

	var subscriberDone *sync.WaitGroup
	if cfg.RedisURL != "" {
		redisClient := setupRedis(cfg, metrics.NewRedisMetrics(reg))
		defer func() { _ = redisClient.Close() }()

		redisRelay := websocket.NewPublisher(broadcaster, factMetrics, "redis")
		subscriberDone = startFactSubscriber(subscriberCtx, cfg, redisClient, redisRelay)
		healthChecks = append(healthChecks, httpserver.HealthCheck{
			Name:  "redis",
			Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
	} else {
		slog.Info("REDIS_URL not set, facts are accepted over HTTP only")
	}

	srv := httpserver.NewServer(cfg, httpserver.Dependencies{
		Endpoint:     endpoint,
		Relay:        websocket.NewPublisher(broadcaster, factMetrics, "http"),
		Snapshots:    snapshots,
		Viewers:      lifecycle,
		Registry:     reg,
		HTTPMetrics:  metrics.NewHTTPMetrics(reg),
		HealthChecks: healthChecks,
		Clock:        clock,
	})

	done := runGracefulShutdown(shutdownDeps{
		server:         srv,
		lifecycle:      lifecycle,
		stopSubscriber: stopSubscriber,
		subscriberDone: subscriberDone,
		timeout:        cfg.ShutdownTimeout,
	})

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
	slog.Info("Shutdown complete")
}
