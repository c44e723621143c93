package model

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Vote is the nature of a feedback entry.
type Vote string

const (
	VotePositive     Vote = "positive"
	VoteNegative     Vote = "negative"
	VoteNotSpecified Vote = "not_specified"
)

// Feedback is user feedback attached to a conversation.
type Feedback struct {
	ID        string    `json:"id"`
	Vote      Vote      `json:"vote"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// ErrFeedbackCommentRequired is returned when a not_specified vote carries no
// comment.
var ErrFeedbackCommentRequired = errors.New("vote can only be not_specified if there is a comment")

// ErrInvalidVote is returned for votes outside the known set.
var ErrInvalidVote = errors.New("invalid vote")

// NewFeedback validates and builds a feedback entry. A not_specified vote is
// only permitted when the comment is non-empty.
func NewFeedback(vote Vote, comment string) (Feedback, error) {
	switch vote {
	case VotePositive, VoteNegative:
	case VoteNotSpecified:
		if comment == "" {
			return Feedback{}, ErrFeedbackCommentRequired
		}
	default:
		return Feedback{}, ErrInvalidVote
	}
	return Feedback{
		ID:        uuid.New().String(),
		Vote:      vote,
		Comment:   comment,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// HasFeedbackSince reports whether the conversation has any feedback created
// at or after t.
func (c *Conversation) HasFeedbackSince(t time.Time) bool {
	for _, f := range c.Feedbacks {
		if !f.CreatedAt.Before(t) {
			return true
		}
	}
	return false
}
