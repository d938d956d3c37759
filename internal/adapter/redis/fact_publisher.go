package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
	goredis "github.com/redis/go-redis/v9"
)

// FactPublisher writes facts to the fact channel in the envelope format
// FactSubscriber reads. Producers use it to reach the relay.
type FactPublisher struct {
	rdb     *goredis.Client
	channel string
}

var _ domain.FactPublisher = (*FactPublisher)(nil)

func NewFactPublisher(rdb *goredis.Client, channel string) *FactPublisher {
	return &FactPublisher{rdb: rdb, channel: channel}
}

func (p *FactPublisher) PublishVoteRecorded(ctx context.Context, fact domain.VoteRecorded) error {
	return p.publish(ctx, voteEnvelope{Kind: domain.FactKindVoteRecorded, VoteRecorded: fact})
}

func (p *FactPublisher) PublishLikeToggled(ctx context.Context, fact domain.LikeToggled) error {
	return p.publish(ctx, likeEnvelope{Kind: domain.FactKindLikeToggled, LikeToggled: fact})
}

func (p *FactPublisher) PublishCommentPosted(ctx context.Context, fact domain.CommentPosted) error {
	return p.publish(ctx, commentEnvelope{Kind: domain.FactKindCommentPosted, CommentPosted: fact})
}

func (p *FactPublisher) publish(ctx context.Context, envelope any) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal fact: %w", err)
	}
	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish fact: %w", err)
	}
	return nil
}
