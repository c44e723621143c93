package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// maxQueryLength bounds user questions, matching the API contract.
const maxQueryLength = 4000

// ValidateQuery validates a user question.
func ValidateQuery(query string) error {
	if len(query) == 0 {
		return errors.New("query cannot be empty")
	}
	if len(query) > maxQueryLength {
		return errors.New("query exceeds maximum length")
	}
	if !utf8.ValidString(query) {
		return errors.New("query must be valid UTF-8")
	}
	return nil
}

// ValidateConversationID validates a conversation ID.
func ValidateConversationID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid conversation ID format")
	}
	return nil
}

// ValidateComment validates a feedback comment.
func ValidateComment(comment string) error {
	if len(comment) > maxQueryLength {
		return errors.New("comment exceeds maximum length")
	}
	if !utf8.ValidString(comment) {
		return errors.New("comment must be valid UTF-8")
	}
	return nil
}
