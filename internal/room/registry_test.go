package room

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubConn struct{ id domain.ConnID }

func (c stubConn) ID() domain.ConnID { return c.id }
func (c stubConn) Send(_ []byte) error { return nil }
func (c stubConn) Close() error { return nil }

func TestRegistry_JoinCreatesRoom(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Has("p1"))
	assert.Equal(t, 0, r.Size("p1"))

	change := r.Join("p1", stubConn{id: 1})

	assert.True(t, change.Changed)
	assert.Equal(t, 1, change.Size)
	require.Len(t, change.Members, 1)
	assert.Equal(t, domain.ConnID(1), change.Members[0].ID())
	assert.True(t, r.Has("p1"))
	assert.Equal(t, 1, r.Size("p1"))
}

func TestRegistry_JoinIdempotent(t *testing.T) {
	r := NewRegistry()
	conn := stubConn{id: 7}

	first := r.Join("p1", conn)
	second := r.Join("p1", conn)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, 1, second.Size)
	assert.Equal(t, 1, r.Size("p1"))
}

func TestRegistry_LeaveDeletesEmptyRoom(t *testing.T) {
	r := NewRegistry()
	a, b := stubConn{id: 1}, stubConn{id: 2}
	r.Join("p1", a)
	r.Join("p1", b)

	change := r.Leave("p1", a)
	assert.True(t, change.Changed)
	assert.Equal(t, 1, change.Size)
	require.Len(t, change.Members, 1)
	assert.Equal(t, b.ID(), change.Members[0].ID())
	assert.True(t, r.Has("p1"))

	change = r.Leave("p1", b)
	assert.True(t, change.Changed)
	assert.Equal(t, 0, change.Size)
	assert.Empty(t, change.Members)
	assert.False(t, r.Has("p1"))
}

func TestRegistry_LeaveNotMember(t *testing.T) {
	r := NewRegistry()
	r.Join("p1", stubConn{id: 1})

	assert.False(t, r.Leave("p1", stubConn{id: 2}).Changed)
	assert.False(t, r.Leave("missing", stubConn{id: 1}).Changed)
	assert.False(t, r.Has("missing"))
	assert.Equal(t, 1, r.Size("p1"))
}

func TestRegistry_MembersIsSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Join("p1", stubConn{id: 1})
	r.Join("p1", stubConn{id: 2})

	snap := r.Members("p1")
	r.Leave("p1", stubConn{id: 1})
	r.Join("p1", stubConn{id: 3})

	assert.Len(t, snap, 2)
	assert.Nil(t, r.Members("missing"))
}

func TestRegistry_SizeMatchesJoinsMinusLeaves(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := range 50 {
		r := NewRegistry()
		present := map[domain.ConnID]bool{}

		for range 200 {
			id := domain.ConnID(rng.Intn(10))
			if rng.Intn(2) == 0 {
				r.Join("p", stubConn{id: id})
				present[id] = true
			} else {
				r.Leave("p", stubConn{id: id})
				delete(present, id)
			}

			require.Equal(t, len(present), r.Size("p"), "round %d", round)
			require.Equal(t, len(present) > 0, r.Has("p"), "round %d", round)
		}
	}
}

func TestRegistry_Stats(t *testing.T) {
	r := NewRegistry()
	r.Join("p1", stubConn{id: 1})
	r.Join("p1", stubConn{id: 2})
	r.Join("p2", stubConn{id: 3})

	rooms, conns := r.Stats()
	assert.Equal(t, 2, rooms)
	assert.Equal(t, 3, conns)
}

func TestRegistry_Drain(t *testing.T) {
	r := NewRegistry()
	r.Join("p1", stubConn{id: 1})
	r.Join("p2", stubConn{id: 2})

	drained := r.Drain()

	assert.Len(t, drained, 2)
	assert.Len(t, drained["p1"], 1)
	rooms, conns := r.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, conns)
}

func TestRegistry_ConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := range 50 {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			pollID := fmt.Sprintf("p%d", id%5)
			conn := stubConn{id: domain.ConnID(id)}
			for range 100 {
				r.Join(pollID, conn)
				_ = r.Members(pollID)
				r.Leave(pollID, conn)
			}
		}(i)
	}
	wg.Wait()

	rooms, conns := r.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, conns)
}
