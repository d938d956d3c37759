package broadcast

import (
	"log/slog"
	"sync/atomic"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/arjun-vegeta/QuickPoll/internal/room"
)

// State is the lifecycle state of one connection.
type State int32

const (
	StateConnecting State = iota
	StateJoined
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateJoined:
		return "joined"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Lifecycle admits connections into rooms and takes them out again.
type Lifecycle struct {
	rooms       *room.Registry
	broadcaster *Broadcaster
}

func NewLifecycle(rooms *room.Registry, broadcaster *Broadcaster) *Lifecycle {
	return &Lifecycle{rooms: rooms, broadcaster: broadcaster}
}

// Membership is the handle a transport keeps for one joined connection.
type Membership struct {
	pollID    string
	conn      domain.Conn
	state     atomic.Int32
	lifecycle *Lifecycle
}

// Join moves conn from Connecting to Joined in the room of pollID and
// announces the new viewer count to the room, conn included.
func (l *Lifecycle) Join(pollID string, conn domain.Conn) *Membership {
	m := &Membership{pollID: pollID, conn: conn, lifecycle: l}

	change := l.broadcaster.join(pollID, conn)
	m.state.Store(int32(StateJoined))

	if change.Changed {
		slog.Debug("Connection joined", "poll_id", pollID, "conn_id", conn.ID(), "viewers", change.Size)
	}
	return m
}

// ViewerCount returns the number of connections currently in the room.
func (l *Lifecycle) ViewerCount(pollID string) int {
	return l.rooms.Size(pollID)
}

// Stats returns the number of open rooms and joined connections.
func (l *Lifecycle) Stats() (rooms, connections int) {
	return l.rooms.Stats()
}

// Shutdown closes every member connection and empties the registry without
// announcing viewer counts.
func (l *Lifecycle) Shutdown() {
	drained := l.rooms.Drain()

	total := 0
	for _, conns := range drained {
		for _, conn := range conns {
			_ = conn.Close()
			total++
		}
	}
	l.broadcaster.updateGauges()
	slog.Info("Closed all viewer connections", "rooms", len(drained), "connections", total)
}

func (m *Membership) PollID() string { return m.pollID }

func (m *Membership) State() State { return State(m.state.Load()) }

// Close moves the membership to Closed. If the connection is still in its
// room it is removed and the remaining members get the new viewer count; if
// the broadcaster already evicted it nothing more happens. Safe to call twice.
func (m *Membership) Close() {
	if !m.state.CompareAndSwap(int32(StateJoined), int32(StateClosed)) {
		return
	}
	if m.lifecycle.broadcaster.remove(m.pollID, m.conn) {
		slog.Debug("Connection left", "poll_id", m.pollID, "conn_id", m.conn.ID())
	}
}
