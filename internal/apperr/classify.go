package apperr

import (
	"errors"
	"net/http"
)

// Kind is the classified category of an error.
type Kind string

const (
	KindUsageLimit         Kind = "usage_limit_exceeded"
	KindResponseGeneration Kind = "response_generation"
	KindStoreManagement    Kind = "store_management"
	KindObjectNotFound     Kind = "object_not_found"
	KindCollectionNotFound Kind = "collection_not_found"
	KindInternal           Kind = "internal"
)

// Classification is the result of classifying an error: the category, the
// HTTP status for non-streaming callers and the safe detail message surfaced
// to clients on both call paths.
type Classification struct {
	Kind   Kind
	Status int
	Detail string
}

// Classify maps an error onto the taxonomy. Unclassified errors fall through
// to a generic internal category; callers log the original error themselves.
func Classify(err error) Classification {
	var usage *UsageLimitExceededError
	if errors.As(err, &usage) {
		return Classification{
			Kind:   KindUsageLimit,
			Status: http.StatusTooManyRequests,
			Detail: MsgUsageLimitExceeded,
		}
	}
	var gen *ResponseGenerationError
	if errors.As(err, &gen) {
		return Classification{
			Kind:   KindResponseGeneration,
			Status: http.StatusInternalServerError,
			Detail: MsgInternalError,
		}
	}
	var store *StoreManagementError
	if errors.As(err, &store) {
		return Classification{
			Kind:   KindStoreManagement,
			Status: http.StatusInternalServerError,
			Detail: MsgInternalError,
		}
	}
	var notFound *ObjectNotFoundError
	if errors.As(err, &notFound) {
		return Classification{
			Kind:   KindObjectNotFound,
			Status: http.StatusNotFound,
			Detail: MsgConversationNotFound,
		}
	}
	var collection *CollectionNotFoundError
	if errors.As(err, &collection) {
		return Classification{
			Kind:   KindCollectionNotFound,
			Status: http.StatusInternalServerError,
			Detail: MsgCollectionNotFound,
		}
	}
	return Classification{
		Kind:   KindInternal,
		Status: http.StatusInternalServerError,
		Detail: MsgInternalError,
	}
}
