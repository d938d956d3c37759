package websocket

import (
	"context"
	"log/slog"

	"github.com/arjun-vegeta/QuickPoll/internal/adapter/metrics"
	"github.com/arjun-vegeta/QuickPoll/internal/domain"
)

type roomBroadcaster interface {
	BroadcastToRoom(pollID string, msg domain.Message)
}

// Publisher relays persistence facts to the viewers of the affected poll.
// Each fact becomes exactly one message and is broadcast before the call
// returns, so callers that relay one poll's facts in order keep that order.
type Publisher struct {
	broadcaster roomBroadcaster
	metrics     *metrics.FactMetrics
	source      string
}

// NewPublisher creates a relay. source labels metrics and logs ("http",
// "redis"); m may be nil.
func NewPublisher(broadcaster roomBroadcaster, m *metrics.FactMetrics, source string) *Publisher {
	return &Publisher{broadcaster: broadcaster, metrics: m, source: source}
}

func (p *Publisher) PublishVoteRecorded(ctx context.Context, fact domain.VoteRecorded) error {
	if err := fact.Validate(); err != nil {
		return p.reject(ctx, err)
	}
	msg := domain.NewVoteUpdate(fact.PollID, fact.OptionID, fact.NewOptionCount, fact.NewPollTotal)
	p.relay(fact.PollID, domain.FactKindVoteRecorded, msg)
	return nil
}

func (p *Publisher) PublishLikeToggled(ctx context.Context, fact domain.LikeToggled) error {
	if err := fact.Validate(); err != nil {
		return p.reject(ctx, err)
	}
	p.relay(fact.PollID, domain.FactKindLikeToggled, domain.NewLikeUpdate(fact.PollID, fact.NewLikeTotal))
	return nil
}

func (p *Publisher) PublishCommentPosted(ctx context.Context, fact domain.CommentPosted) error {
	if err := fact.Validate(); err != nil {
		return p.reject(ctx, err)
	}
	p.relay(fact.PollID, domain.FactKindCommentPosted, domain.NewCommentUpdate(fact.PollID, fact.Comment))
	return nil
}

func (p *Publisher) relay(pollID, kind string, msg domain.Message) {
	p.broadcaster.BroadcastToRoom(pollID, msg)
	if p.metrics != nil {
		p.metrics.FactsRelayed.WithLabelValues(kind, p.source).Inc()
	}
}

func (p *Publisher) reject(ctx context.Context, err error) error {
	if p.metrics != nil {
		p.metrics.FactsRejected.WithLabelValues(p.source).Inc()
	}
	slog.WarnContext(ctx, "Dropped invalid fact", "source", p.source, "error", err)
	return err
}
