// Package apperr defines the error taxonomy shared by the streaming and
// aggregated answer paths, and the classifier that maps arbitrary errors
// onto it.
package apperr

import "fmt"

// User-facing messages. Internal error details are logged server-side and
// never echoed to callers.
const (
	MsgInternalError        = "Error: Internal error"
	MsgUsageLimitExceeded   = "Error: Usage limit exceeded"
	MsgConversationNotFound = "Error: Conversation not found"
	MsgCollectionNotFound   = "Error: Requested collection was not found"
)

// UsageLimitExceededError signals a client-caused usage limit; recoverable by
// starting a new conversation.
type UsageLimitExceededError struct {
	Message string
}

func (e *UsageLimitExceededError) Error() string {
	return fmt.Sprintf("usage limit exceeded: %s", e.Message)
}

// ResponseGenerationError signals a failure while generating an answer.
type ResponseGenerationError struct {
	Message string
	Err     error
}

func (e *ResponseGenerationError) Error() string {
	return fmt.Sprintf("response generation failed: %s", e.Message)
}

func (e *ResponseGenerationError) Unwrap() error { return e.Err }

// StoreManagementError signals a persistence-layer failure.
type StoreManagementError struct {
	Op  string
	Err error
}

func (e *StoreManagementError) Error() string {
	return fmt.Sprintf("store management failed during %s: %v", e.Op, e.Err)
}

func (e *StoreManagementError) Unwrap() error { return e.Err }

// ObjectNotFoundError signals that a referenced object was missing when an
// update expected to find one. Plain reads materialize an empty conversation
// instead of raising this.
type ObjectNotFoundError struct {
	Kind string
	ID   string
}

func (e *ObjectNotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// CollectionNotFoundError signals that the retrieval index is missing.
type CollectionNotFoundError struct {
	Collection string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %s not found", e.Collection)
}
