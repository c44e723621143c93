// Package history wraps the conversation store with turn-append semantics:
// FIFO trimming, tool output archiving and a bounded ephemeral context map.
package history

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/pleszr/skyegpt/internal/apperr"
	"github.com/pleszr/skyegpt/internal/model"
	"github.com/pleszr/skyegpt/internal/store"
	"github.com/pleszr/skyegpt/pkg/logger"
	"github.com/pleszr/skyegpt/pkg/metrics"
)

const lockStripes = 64

var errEmptyID = errors.New("conversation id cannot be empty")

// Manager owns conversation documents for the duration of a turn. Concurrent
// Extend calls on the same conversation id are serialized within the process
// by a striped mutex; across processes the durable store is last-writer-wins.
type Manager struct {
	store  store.ConversationStore
	logger *logger.Logger
	locks  [lockStripes]sync.Mutex

	contexts *contextMap
}

// NewManager creates a manager over the given store.
func NewManager(st store.ConversationStore, log *logger.Logger) *Manager {
	return &Manager{
		store:    st,
		logger:   log,
		contexts: newContextMap(defaultContextCap),
	}
}

// Get returns the stored conversation or a fresh empty one carrying id.
// "Not found" is a valid initial state; the fresh conversation is not
// persisted until the first Extend.
func (m *Manager) Get(ctx context.Context, id string) (*model.Conversation, error) {
	if id == "" {
		return nil, &apperr.StoreManagementError{Op: "get", Err: errEmptyID}
	}

	conv, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, &apperr.StoreManagementError{Op: "get", Err: err}
	}
	if conv == nil {
		return model.NewConversation(id), nil
	}
	return conv, nil
}

// Extend appends delta's messages to the conversation, archives tool output
// in the newly appended messages, trims to the most recent MaxHistory
// entries and persists the full document with a single upsert.
func (m *Manager) Extend(ctx context.Context, id string, delta *model.Conversation) error {
	if id == "" {
		return &apperr.StoreManagementError{Op: "extend", Err: errEmptyID}
	}

	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	conv, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	delta.ArchiveToolOutput()
	conv.Extend(delta)

	if err := m.store.Upsert(ctx, id, conv); err != nil {
		return &apperr.StoreManagementError{Op: "extend", Err: err}
	}

	metrics.ConversationsExtended.Inc()
	m.logger.Info("conversation history extended",
		zap.String("conversation_id", id),
		zap.Int("messages", len(conv.Messages)),
	)
	return nil
}

// Find returns the stored conversation, or an ObjectNotFoundError when it
// does not exist. Used where absence is an error rather than an initial
// state (feedback, retrieval endpoints).
func (m *Manager) Find(ctx context.Context, id string) (*model.Conversation, error) {
	conv, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, &apperr.StoreManagementError{Op: "find", Err: err}
	}
	if conv == nil {
		return nil, &apperr.ObjectNotFoundError{Kind: "conversation", ID: id}
	}
	return conv, nil
}

// AddFeedback appends a feedback entry to an existing conversation and
// persists it.
func (m *Manager) AddFeedback(ctx context.Context, id string, feedback model.Feedback) error {
	lock := m.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	conv, err := m.Find(ctx, id)
	if err != nil {
		return err
	}
	conv.AddFeedback(feedback)
	if err := m.store.Upsert(ctx, id, conv); err != nil {
		return &apperr.StoreManagementError{Op: "add feedback", Err: err}
	}
	m.logger.Info("feedback added",
		zap.String("conversation_id", id),
		zap.String("feedback_id", feedback.ID),
		zap.String("vote", string(feedback.Vote)),
	)
	return nil
}

// FindWithFeedbackSince returns conversations with feedback created at or
// after since.
func (m *Manager) FindWithFeedbackSince(ctx context.Context, since time.Time) ([]model.Conversation, error) {
	convs, err := m.store.FindWithFeedbackSince(ctx, since)
	if err != nil {
		return nil, &apperr.StoreManagementError{Op: "find with feedback", Err: err}
	}
	return convs, nil
}

func (m *Manager) lockFor(id string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(id))
	return &m.locks[h.Sum32()%lockStripes]
}
