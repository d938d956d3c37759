package domain

import (
	"context"
	"time"
)

// PollOption is one answer of a poll as shown to viewers.
type PollOption struct {
	ID         string `json:"id"`
	OptionText string `json:"option_text"`
	VoteCount  int    `json:"vote_count"`
	Position   int    `json:"position"`
}

// PollSnapshot is the full current state of a poll, fetched once per connection.
// Options are ordered by Position.
type PollSnapshot struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	TotalVotes  int          `json:"total_votes"`
	TotalLikes  int          `json:"total_likes"`
	Options     []PollOption `json:"options"`
}

// CommentSummary is the part of a posted comment that is pushed to viewers.
type CommentSummary struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	CommentText string    `json:"comment_text"`
	CreatedAt   time.Time `json:"created_at"`
}

// SnapshotRepository reads poll state from the persistence layer.
// Returns ErrPollNotFound when the poll does not exist.
type SnapshotRepository interface {
	GetSnapshot(ctx context.Context, pollID string) (*PollSnapshot, error)
}
