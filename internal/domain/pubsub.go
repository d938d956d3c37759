package domain

import (
	"context"
	"fmt"
)

// Fact kinds as they appear in relay metrics and on the fact channel.
const (
	FactKindVoteRecorded  = "vote_recorded"
	FactKindLikeToggled   = "like_toggled"
	FactKindCommentPosted = "comment_posted"
)

// VoteRecorded reports the new count of one option after a vote was stored.
type VoteRecorded struct {
	PollID         string `json:"poll_id"`
	OptionID       string `json:"option_id"`
	NewOptionCount int    `json:"vote_count"`
	NewPollTotal   int    `json:"total_votes"`
}

func (f VoteRecorded) Validate() error {
	if f.PollID == "" || f.OptionID == "" {
		return fmt.Errorf("%w: vote needs poll_id and option_id", ErrInvalidFact)
	}
	if f.NewOptionCount < 0 || f.NewPollTotal < 0 {
		return fmt.Errorf("%w: negative vote count", ErrInvalidFact)
	}
	return nil
}

// LikeToggled reports the like total of a poll after a like was added or removed.
type LikeToggled struct {
	PollID       string `json:"poll_id"`
	NewLikeTotal int    `json:"total_likes"`
}

func (f LikeToggled) Validate() error {
	if f.PollID == "" {
		return fmt.Errorf("%w: like needs poll_id", ErrInvalidFact)
	}
	if f.NewLikeTotal < 0 {
		return fmt.Errorf("%w: negative like total", ErrInvalidFact)
	}
	return nil
}

// CommentPosted reports a newly stored comment.
type CommentPosted struct {
	PollID  string         `json:"poll_id"`
	Comment CommentSummary `json:"comment"`
}

func (f CommentPosted) Validate() error {
	if f.PollID == "" || f.Comment.ID == "" {
		return fmt.Errorf("%w: comment needs poll_id and comment id", ErrInvalidFact)
	}
	return nil
}

// FactPublisher relays facts reported by the persistence layer to live viewers.
// Facts for the same poll must be passed in the order they were reported.
type FactPublisher interface {
	PublishVoteRecorded(ctx context.Context, fact VoteRecorded) error
	PublishLikeToggled(ctx context.Context, fact LikeToggled) error
	PublishCommentPosted(ctx context.Context, fact CommentPosted) error
}
