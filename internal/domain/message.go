package domain

import "time"

// MessageType tags every message pushed to viewers.
type MessageType string

const (
	MessageInitialData   MessageType = "initial_data"
	MessageVoteUpdate    MessageType = "vote_update"
	MessageLikeUpdate    MessageType = "like_update"
	MessageCommentUpdate MessageType = "comment_update"
	MessageViewerCount   MessageType = "viewer_count"
	MessageError         MessageType = "error"
)

// Keep-alive frames exchanged as raw text, outside the JSON protocol.
const (
	KeepAliveProbe = "ping"
	KeepAliveAck   = "pong"
)

// Message is a value pushed to the members of a room.
// Values are constructed through the New* functions and never mutated afterwards.
type Message interface {
	Type() MessageType
}

type InitialData struct {
	Kind        MessageType  `json:"type"`
	Poll        PollSnapshot `json:"poll"`
	ViewerCount int          `json:"viewer_count"`
}

func NewInitialData(poll PollSnapshot, viewers int) InitialData {
	return InitialData{Kind: MessageInitialData, Poll: poll, ViewerCount: viewers}
}

func (InitialData) Type() MessageType { return MessageInitialData }

type VoteUpdate struct {
	Kind       MessageType `json:"type"`
	PollID     string      `json:"poll_id"`
	OptionID   string      `json:"option_id"`
	VoteCount  int         `json:"vote_count"`
	TotalVotes int         `json:"total_votes"`
}

func NewVoteUpdate(pollID, optionID string, voteCount, totalVotes int) VoteUpdate {
	return VoteUpdate{Kind: MessageVoteUpdate, PollID: pollID, OptionID: optionID, VoteCount: voteCount, TotalVotes: totalVotes}
}

func (VoteUpdate) Type() MessageType { return MessageVoteUpdate }

type LikeUpdate struct {
	Kind       MessageType `json:"type"`
	PollID     string      `json:"poll_id"`
	TotalLikes int         `json:"total_likes"`
}

func NewLikeUpdate(pollID string, totalLikes int) LikeUpdate {
	return LikeUpdate{Kind: MessageLikeUpdate, PollID: pollID, TotalLikes: totalLikes}
}

func (LikeUpdate) Type() MessageType { return MessageLikeUpdate }

// wireComment carries CreatedAt pre-formatted as ISO-8601 (UTC, no zone suffix).
type wireComment struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	CommentText string `json:"comment_text"`
	CreatedAt   string `json:"created_at"`
}

type CommentUpdate struct {
	Kind    MessageType `json:"type"`
	PollID  string      `json:"poll_id"`
	Comment wireComment `json:"comment"`
}

func NewCommentUpdate(pollID string, comment CommentSummary) CommentUpdate {
	return CommentUpdate{
		Kind:   MessageCommentUpdate,
		PollID: pollID,
		Comment: wireComment{
			ID:          comment.ID,
			Username:    comment.Username,
			CommentText: comment.CommentText,
			CreatedAt:   FormatTimestamp(comment.CreatedAt),
		},
	}
}

func (CommentUpdate) Type() MessageType { return MessageCommentUpdate }

const isoTimestamp = "2006-01-02T15:04:05.999999"

// FormatTimestamp renders t the way comment timestamps appear on the wire.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(isoTimestamp)
}

type ViewerCount struct {
	Kind  MessageType `json:"type"`
	Count int         `json:"count"`
}

func NewViewerCount(count int) ViewerCount {
	return ViewerCount{Kind: MessageViewerCount, Count: count}
}

func (ViewerCount) Type() MessageType { return MessageViewerCount }

type ErrorMessage struct {
	Kind    MessageType `json:"type"`
	Message string      `json:"message"`
}

func NewErrorMessage(message string) ErrorMessage {
	return ErrorMessage{Kind: MessageError, Message: message}
}

func (ErrorMessage) Type() MessageType { return MessageError }
