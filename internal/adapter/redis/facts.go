package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arjun-vegeta/QuickPoll/internal/domain"
)

// Envelopes on the fact channel carry a kind next to the fact's own fields:
//
//	{"kind":"vote_recorded","poll_id":"...","option_id":"...","vote_count":5,"total_votes":12}
type envelopeHeader struct {
	Kind string `json:"kind"`
}

type voteEnvelope struct {
	Kind string `json:"kind"`
	domain.VoteRecorded
}

type likeEnvelope struct {
	Kind string `json:"kind"`
	domain.LikeToggled
}

type commentEnvelope struct {
	Kind string `json:"kind"`
	domain.CommentPosted
}

// dispatch decodes one envelope and hands the fact to relay.
func dispatch(ctx context.Context, payload []byte, relay domain.FactPublisher) error {
	var header envelopeHeader
	if err := json.Unmarshal(payload, &header); err != nil {
		return fmt.Errorf("%w: malformed envelope: %w", domain.ErrInvalidFact, err)
	}

	switch header.Kind {
	case domain.FactKindVoteRecorded:
		var env voteEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return fmt.Errorf("%w: malformed vote fact: %w", domain.ErrInvalidFact, err)
		}
		return relay.PublishVoteRecorded(ctx, env.VoteRecorded)
	case domain.FactKindLikeToggled:
		var env likeEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return fmt.Errorf("%w: malformed like fact: %w", domain.ErrInvalidFact, err)
		}
		return relay.PublishLikeToggled(ctx, env.LikeToggled)
	case domain.FactKindCommentPosted:
		var env commentEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return fmt.Errorf("%w: malformed comment fact: %w", domain.ErrInvalidFact, err)
		}
		return relay.PublishCommentPosted(ctx, env.CommentPosted)
	default:
		return fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidFact, header.Kind)
	}
}
