package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/broadcast"
	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/arjun-vegeta/QuickPoll/internal/platform/correlation"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const defaultSnapshotTimeout = 3 * time.Second

type snapshotSource interface {
	GetSnapshot(ctx context.Context, pollID string) (*domain.PollSnapshot, error)
}

// EndpointConfig tunes admission for viewer connections.
type EndpointConfig struct {
	AllowedOrigins  []string
	IsDevelopment   bool
	MaxConnections  int64
	MaxPerIP        int
	SnapshotTimeout time.Duration
}

// Endpoint accepts viewer WebSocket connections for one poll each, pushes the
// initial snapshot and answers keep-alive probes until the peer goes away.
type Endpoint struct {
	lifecycle       *broadcast.Lifecycle
	snapshots       snapshotSource
	clock           clockwork.Clock
	metrics         *metrics.WebSocketMetrics
	upgrader        websocket.Upgrader
	limits          *connectionLimits
	snapshotTimeout time.Duration
	nextID          atomic.Uint64
}

func NewEndpoint(lifecycle *broadcast.Lifecycle, snapshots snapshotSource, clock clockwork.Clock, m *metrics.WebSocketMetrics, cfg EndpointConfig) *Endpoint {
	timeout := cfg.SnapshotTimeout
	if timeout <= 0 {
		timeout = defaultSnapshotTimeout
	}

	return &Endpoint{
		lifecycle: lifecycle,
		snapshots: snapshots,
		clock:     clock,
		metrics:   m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     NewCheckOrigin(cfg.AllowedOrigins, cfg.IsDevelopment),
		},
		limits:          newConnectionLimits(cfg.MaxConnections, cfg.MaxPerIP),
		snapshotTimeout: timeout,
	}
}

// Serve upgrades the request and blocks until the connection is closed.
func (e *Endpoint) Serve(w http.ResponseWriter, r *http.Request, pollID, clientIP string) error {
	ctx := correlation.WithPollID(r.Context(), pollID)
	if reason, ok := e.limits.acquire(clientIP); !ok {
		e.reject(ctx, w, reason, clientIP)
		return nil
	}
	defer e.limits.release(clientIP)

	conn, err := e.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if e.metrics != nil {
			e.metrics.RejectedUpgrades.WithLabelValues("upgrade_failed").Inc()
		}
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	cl := newClient(domain.ConnID(e.nextID.Add(1)), conn, e.clock, e.metrics)
	membership := e.lifecycle.Join(pollID, cl)
	defer func() {
		membership.Close()
		_ = cl.Close()
		cl.wait()
	}()

	e.pushInitial(ctx, pollID, cl)
	e.readLoop(ctx, cl)
	return nil
}

func (e *Endpoint) reject(ctx context.Context, w http.ResponseWriter, reason LimitReason, clientIP string) {
	if e.metrics != nil {
		e.metrics.RejectedUpgrades.WithLabelValues(string(reason)).Inc()
	}
	slog.WarnContext(ctx, "Rejected WebSocket connection", "reason", reason, "client_ip", clientIP)

	status := http.StatusServiceUnavailable
	if reason == LimitReasonPerIP {
		status = http.StatusTooManyRequests
	}
	http.Error(w, "too many connections", status)
}

// pushInitial sends exactly one initial_data or error message.
func (e *Endpoint) pushInitial(ctx context.Context, pollID string, cl *client) {
	ctx, cancel := context.WithTimeout(ctx, e.snapshotTimeout)
	defer cancel()

	var msg domain.Message
	snapshot, err := e.snapshots.GetSnapshot(ctx, pollID)
	switch {
	case err == nil:
		msg = domain.NewInitialData(*snapshot, e.lifecycle.ViewerCount(pollID))
	case errors.Is(err, domain.ErrPollNotFound):
		msg = domain.NewErrorMessage("poll not found")
	default:
		slog.ErrorContext(ctx, "Failed to load poll snapshot", "conn_id", cl.ID(), "error", err)
		msg = domain.NewErrorMessage("failed to load poll")
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal initial message", "error", err)
		return
	}
	if err := cl.Send(data); err != nil {
		slog.DebugContext(ctx, "Initial message not delivered", "conn_id", cl.ID(), "error", err)
	}
}

// readLoop answers keep-alive probes and ignores everything else. It returns
// when the peer disconnects or the socket is closed under it.
func (e *Endpoint) readLoop(ctx context.Context, cl *client) {
	ack := []byte(domain.KeepAliveAck)

	for {
		messageType, data, err := cl.connection.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				slog.DebugContext(ctx, "WebSocket read failed", "conn_id", cl.ID(), "error", err)
			}
			return
		}
		cl.touch()

		if messageType != websocket.TextMessage || string(data) != domain.KeepAliveProbe {
			continue
		}
		if err := cl.Send(ack); err != nil {
			return
		}
	}
}
