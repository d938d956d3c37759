package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	writeDeadline     = 5 * time.Second
	pingInterval      = 30 * time.Second
	pongDeadline      = 60 * time.Second
	idleTimeout       = 5 * time.Minute
	messageBufferSize = 16
)

// client is one viewer connection. A single writer goroutine owns every
// write to the socket; Send only queues.
type client struct {
	id            domain.ConnID
	connection    *websocket.Conn
	clock         clockwork.Clock
	metrics       *metrics.WebSocketMetrics
	sendChannel   chan []byte
	doneChannel   chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup
	lastActivity  time.Time
	activityMutex sync.Mutex
}

func newClient(id domain.ConnID, connection *websocket.Conn, clock clockwork.Clock, m *metrics.WebSocketMetrics) *client {
	c := &client{
		id:           id,
		connection:   connection,
		clock:        clock,
		metrics:      m,
		sendChannel:  make(chan []byte, messageBufferSize),
		doneChannel:  make(chan struct{}),
		lastActivity: clock.Now(),
	}
	c.configurePongHandler()
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *client) ID() domain.ConnID { return c.id }

// Send queues data for the writer goroutine without waiting on the network.
func (c *client) Send(data []byte) error {
	select {
	case <-c.doneChannel:
		return domain.ErrConnectionClosed
	default:
	}

	select {
	case c.sendChannel <- data:
		return nil
	default:
		return domain.ErrSlowConsumer
	}
}

// Close tells the writer to send a close frame and drop the socket. It
// returns at once; use wait to block until the socket is released.
func (c *client) Close() error {
	c.closeOnce.Do(func() { close(c.doneChannel) })
	return nil
}

func (c *client) wait() {
	c.wg.Wait()
}

func (c *client) run() {
	ticker := c.clock.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.wg.Done()
	defer func() { _ = c.connection.Close() }()

	for {
		select {
		case msg := <-c.sendChannel:
			start := c.clock.Now()
			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("WebSocket write failed", "conn_id", c.id, "error", err)
				_ = c.Close()
				return
			}
			if c.metrics != nil {
				c.metrics.SendDuration.Observe(c.clock.Since(start).Seconds())
			}
		case <-ticker.Chan():
			if c.checkIdleTimeout() {
				if c.metrics != nil {
					c.metrics.IdleDisconnects.Inc()
				}
				slog.Debug("Closing idle connection", "conn_id", c.id)
				_ = c.Close()
				c.writeClose(websocket.CloseGoingAway, "idle timeout")
				return
			}

			c.updateWriteDeadline()
			if err := c.connection.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}
		case <-c.doneChannel:
			c.writeClose(websocket.CloseNormalClosure, "")
			return
		}
	}
}

func (c *client) writeClose(code int, reason string) {
	c.updateWriteDeadline()
	_ = c.connection.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}

func (c *client) configurePongHandler() {
	c.updateReadDeadline()
	c.connection.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})
}

// touch records inbound activity. Called from the read goroutine only.
func (c *client) touch() {
	c.updateReadDeadline()
	c.recordActivity()
}

func (c *client) updateWriteDeadline() {
	_ = c.connection.SetWriteDeadline(c.clock.Now().Add(writeDeadline))
}

func (c *client) updateReadDeadline() {
	_ = c.connection.SetReadDeadline(c.clock.Now().Add(pongDeadline))
}

func (c *client) recordActivity() {
	c.activityMutex.Lock()
	defer c.activityMutex.Unlock()
	c.lastActivity = c.clock.Now()
}

// checkIdleTimeout reports whether the client has been silent for idleTimeout.
func (c *client) checkIdleTimeout() bool {
	c.activityMutex.Lock()
	defer c.activityMutex.Unlock()
	return c.clock.Since(c.lastActivity) >= idleTimeout
}
