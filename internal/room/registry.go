package room

import (
	"sync"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
)

type members map[domain.ConnID]domain.Conn

// Change describes a room right after Join or Leave.
type Change struct {
	// Changed is false when the call was a no-op (already a member / not a member).
	Changed bool
	Size    int
	Members []domain.Conn
}

// Registry maps poll IDs to their live member sets. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]members
}

func NewRegistry() *Registry {
	return &Registry{rooms: make(map[string]members)}
}

// Join adds conn to the room of pollID, creating the room if needed.
// Joining twice is a no-op.
func (r *Registry) Join(pollID string, conn domain.Conn) Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[pollID]
	if !exists {
		room = make(members)
		r.rooms[pollID] = room
	}

	if _, already := room[conn.ID()]; already {
		return Change{Size: len(room), Members: snapshot(room)}
	}

	room[conn.ID()] = conn
	return Change{Changed: true, Size: len(room), Members: snapshot(room)}
}

// Leave removes conn from the room of pollID and deletes the room once empty.
// Leaving a room the connection is not in is a no-op.
func (r *Registry) Leave(pollID string, conn domain.Conn) Change {
	r.mu.Lock()
	defer r.mu.Unlock()

	room, exists := r.rooms[pollID]
	if !exists {
		return Change{}
	}

	if _, member := room[conn.ID()]; !member {
		return Change{Size: len(room), Members: snapshot(room)}
	}

	delete(room, conn.ID())
	if len(room) == 0 {
		delete(r.rooms, pollID)
		return Change{Changed: true}
	}
	return Change{Changed: true, Size: len(room), Members: snapshot(room)}
}

// Members returns a copy of the current member set; nil when the room does not exist.
func (r *Registry) Members(pollID string) []domain.Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.rooms[pollID])
}

// Size returns the member count of a room, 0 when absent.
func (r *Registry) Size(pollID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[pollID])
}

// Has reports whether a room entry exists for pollID.
func (r *Registry) Has(pollID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.rooms[pollID]
	return exists
}

// Stats returns the number of rooms and the total number of members.
func (r *Registry) Stats() (rooms, connections int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, room := range r.rooms {
		connections += len(room)
	}
	return len(r.rooms), connections
}

// Drain empties the registry and returns what it held, keyed by poll ID.
func (r *Registry) Drain() map[string][]domain.Conn {
	r.mu.Lock()
	defer r.mu.Unlock()

	drained := make(map[string][]domain.Conn, len(r.rooms))
	for pollID, room := range r.rooms {
		drained[pollID] = snapshot(room)
	}
	r.rooms = make(map[string]members)
	return drained
}

func snapshot(room members) []domain.Conn {
	if len(room) == 0 {
		return nil
	}
	out := make([]domain.Conn, 0, len(room))
	for _, conn := range room {
		out = append(out, conn)
	}
	return out
}
