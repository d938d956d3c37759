package websocket

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type broadcastCall struct {
	pollID string
	msg    domain.Message
}

type recordingBroadcaster struct {
	mu    sync.Mutex
	calls []broadcastCall
}

func (r *recordingBroadcaster) BroadcastToRoom(pollID string, msg domain.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, broadcastCall{pollID: pollID, msg: msg})
}

func (r *recordingBroadcaster) snapshot() []broadcastCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]broadcastCall(nil), r.calls...)
}

func newTestPublisher(t *testing.T) (*Publisher, *recordingBroadcaster, *metrics.FactMetrics) {
	t.Helper()
	rec := &recordingBroadcaster{}
	m := metrics.NewFactMetrics(prometheus.NewRegistry())
	return NewPublisher(rec, m, "test"), rec, m
}

func TestPublisher_VoteRecorded(t *testing.T) {
	p, rec, m := newTestPublisher(t)

	err := p.PublishVoteRecorded(context.Background(), domain.VoteRecorded{PollID: "p1", OptionID: "o1", NewOptionCount: 4, NewPollTotal: 9})
	require.NoError(t, err)

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, "p1", calls[0].pollID)
	assert.Equal(t, domain.NewVoteUpdate("p1", "o1", 4, 9), calls[0].msg)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FactsRelayed.WithLabelValues(domain.FactKindVoteRecorded, "test")))
}

func TestPublisher_LikeToggled(t *testing.T) {
	p, rec, _ := newTestPublisher(t)

	require.NoError(t, p.PublishLikeToggled(context.Background(), domain.LikeToggled{PollID: "p1", NewLikeTotal: 12}))

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.NewLikeUpdate("p1", 12), calls[0].msg)
}

func TestPublisher_CommentPosted(t *testing.T) {
	p, rec, _ := newTestPublisher(t)
	created := time.Date(2025, 3, 1, 10, 30, 0, 0, time.UTC)
	comment := domain.CommentSummary{ID: "c1", Username: "ana", CommentText: "nice", CreatedAt: created}

	require.NoError(t, p.PublishCommentPosted(context.Background(), domain.CommentPosted{PollID: "p1", Comment: comment}))

	calls := rec.snapshot()
	require.Len(t, calls, 1)
	update, ok := calls[0].msg.(domain.CommentUpdate)
	require.True(t, ok)
	assert.Equal(t, "c1", update.Comment.ID)
	assert.Equal(t, "2025-03-01T10:30:00", update.Comment.CreatedAt)
}

func TestPublisher_InvalidFactIsNotBroadcast(t *testing.T) {
	p, rec, m := newTestPublisher(t)
	ctx := context.Background()

	assert.ErrorIs(t, p.PublishVoteRecorded(ctx, domain.VoteRecorded{PollID: "p1"}), domain.ErrInvalidFact)
	assert.ErrorIs(t, p.PublishLikeToggled(ctx, domain.LikeToggled{PollID: "p1", NewLikeTotal: -1}), domain.ErrInvalidFact)
	assert.ErrorIs(t, p.PublishCommentPosted(ctx, domain.CommentPosted{PollID: "p1"}), domain.ErrInvalidFact)

	assert.Empty(t, rec.snapshot())
	assert.Equal(t, 3.0, testutil.ToFloat64(m.FactsRejected.WithLabelValues("test")))
}

func TestPublisher_VoteChangeKeepsOrder(t *testing.T) {
	p, rec, _ := newTestPublisher(t)
	ctx := context.Background()

	require.NoError(t, p.PublishVoteRecorded(ctx, domain.VoteRecorded{PollID: "p1", OptionID: "old", NewOptionCount: 2, NewPollTotal: 10}))
	require.NoError(t, p.PublishVoteRecorded(ctx, domain.VoteRecorded{PollID: "p1", OptionID: "new", NewOptionCount: 5, NewPollTotal: 10}))

	calls := rec.snapshot()
	require.Len(t, calls, 2)
	assert.Equal(t, "old", calls[0].msg.(domain.VoteUpdate).OptionID)
	assert.Equal(t, "new", calls[1].msg.(domain.VoteUpdate).OptionID)
}
