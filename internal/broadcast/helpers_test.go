package broadcast

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/arjun-vegeta/QuickPoll/internal/room"
	"github.com/stretchr/testify/require"
)

// fakeConn records delivered frames and can be told to fail or stall.
type fakeConn struct {
	id domain.ConnID

	mu       sync.Mutex
	frames   [][]byte
	sendErr  error
	delay    time.Duration
	closed   bool
	closeCnt int
}

func newFakeConn(id domain.ConnID) *fakeConn { return &fakeConn{id: id} }

func (c *fakeConn) ID() domain.ConnID { return c.id }

func (c *fakeConn) Send(data []byte) error {
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrConnectionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.closeCnt++
	return nil
}

func (c *fakeConn) failWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendErr = err
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCnt
}

func (c *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]map[string]any, 0, len(c.frames))
	for _, frame := range c.frames {
		var msg map[string]any
		require.NoError(t, json.Unmarshal(frame, &msg))
		out = append(out, msg)
	}
	return out
}

func (c *fakeConn) last(t *testing.T) map[string]any {
	t.Helper()
	msgs := c.messages(t)
	require.NotEmpty(t, msgs, "conn %d received nothing", c.id)
	return msgs[len(msgs)-1]
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = nil
}

// gatedConn holds its first Send until release is closed.
type gatedConn struct {
	*fakeConn
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newGatedConn(id domain.ConnID) *gatedConn {
	return &gatedConn{fakeConn: newFakeConn(id), entered: make(chan struct{}), release: make(chan struct{})}
}

func (c *gatedConn) Send(data []byte) error {
	c.once.Do(func() {
		close(c.entered)
		<-c.release
	})
	return c.fakeConn.Send(data)
}

func countType(msgs []map[string]any, typ domain.MessageType) int {
	n := 0
	for _, m := range msgs {
		if m["type"] == string(typ) {
			n++
		}
	}
	return n
}

func newTestStack() (*room.Registry, *Broadcaster, *Lifecycle) {
	rooms := room.NewRegistry()
	b := NewBroadcaster(rooms, nil)
	return rooms, b, NewLifecycle(rooms, b)
}
