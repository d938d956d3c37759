package broadcast

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/arjun-vegeta/QuickPoll/internal/room"
)

// slowBroadcastThreshold only drives a warning; Send never blocks, so a pass
// this slow means a room is very large or the process is starved.
const slowBroadcastThreshold = 40 * time.Millisecond

// Broadcaster delivers messages to every member of a room.
type Broadcaster struct {
	rooms   *room.Registry
	metrics *metrics.WebSocketMetrics

	// changeMu is held from a membership change until its viewer_count has
	// been queued, so members see counts in the order the changes happened.
	changeMu sync.Mutex
}

// NewBroadcaster creates a broadcaster over rooms. m may be nil.
func NewBroadcaster(rooms *room.Registry, m *metrics.WebSocketMetrics) *Broadcaster {
	return &Broadcaster{rooms: rooms, metrics: m}
}

// BroadcastToRoom delivers msg to the current members of pollID. Failed
// members are evicted once the pass completes. Broadcasting to a room that
// does not exist is a no-op.
func (b *Broadcaster) BroadcastToRoom(pollID string, msg domain.Message) {
	b.deliver(pollID, msg, b.rooms.Members(pollID))
}

func (b *Broadcaster) deliver(pollID string, msg domain.Message, members []domain.Conn) {
	b.evict(pollID, b.send(pollID, msg, members))
}

// send queues msg on every member and returns the members that failed.
func (b *Broadcaster) send(pollID string, msg domain.Message, members []domain.Conn) []domain.Conn {
	if len(members) == 0 {
		return nil
	}

	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "poll_id", pollID, "message_type", msg.Type(), "error", err)
		return nil
	}

	start := time.Now()
	var failed []domain.Conn
	for _, conn := range members {
		if err := conn.Send(data); err != nil {
			b.recordFailure(err)
			failed = append(failed, conn)
		}
	}

	if b.metrics != nil {
		b.metrics.MessagesPublished.WithLabelValues(string(msg.Type())).Add(float64(len(members) - len(failed)))
	}
	if elapsed := time.Since(start); elapsed > slowBroadcastThreshold {
		slog.Warn("Broadcast pass exceeded budget", "poll_id", pollID, "members", len(members), "duration", elapsed)
	}
	return failed
}

func (b *Broadcaster) evict(pollID string, failed []domain.Conn) {
	for _, conn := range failed {
		if b.remove(pollID, conn) {
			slog.Warn("Evicted connection after failed delivery", "poll_id", pollID, "conn_id", conn.ID())
			if b.metrics != nil {
				b.metrics.Evictions.Inc()
			}
		}
	}
}

// join adds conn to its room and announces the new viewer count.
func (b *Broadcaster) join(pollID string, conn domain.Conn) room.Change {
	b.changeMu.Lock()
	change := b.rooms.Join(pollID, conn)
	var failed []domain.Conn
	if change.Changed {
		failed = b.announce(pollID, change)
	}
	b.changeMu.Unlock()

	if change.Changed {
		b.updateGauges()
	}
	b.evict(pollID, failed)
	return change
}

// remove takes conn out of its room, closes it and announces the new viewer
// count. It reports false when another path already removed the connection.
func (b *Broadcaster) remove(pollID string, conn domain.Conn) bool {
	b.changeMu.Lock()
	change := b.rooms.Leave(pollID, conn)
	if !change.Changed {
		b.changeMu.Unlock()
		return false
	}
	failed := b.announce(pollID, change)
	b.changeMu.Unlock()

	_ = conn.Close()
	b.updateGauges()
	b.evict(pollID, failed)
	return true
}

// announce queues the post-change viewer count on the post-change members.
// Evicting the members that failed is left to the caller, outside changeMu.
func (b *Broadcaster) announce(pollID string, change room.Change) []domain.Conn {
	if change.Size == 0 {
		slog.Debug("Room closed", "poll_id", pollID)
		return nil
	}
	return b.send(pollID, domain.NewViewerCount(change.Size), change.Members)
}

func (b *Broadcaster) recordFailure(err error) {
	if b.metrics == nil {
		return
	}
	reason := "other"
	switch {
	case errors.Is(err, domain.ErrSlowConsumer):
		reason = "slow_consumer"
	case errors.Is(err, domain.ErrConnectionClosed):
		reason = "closed"
	}
	b.metrics.DeliveryFailures.WithLabelValues(reason).Inc()
}

func (b *Broadcaster) updateGauges() {
	if b.metrics == nil {
		return
	}
	rooms, conns := b.rooms.Stats()
	b.metrics.ActiveRooms.Set(float64(rooms))
	b.metrics.ActiveConnections.Set(float64(conns))
}
