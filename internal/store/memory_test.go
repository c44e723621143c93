package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pleszr/skyegpt/internal/model"
)

func TestMemoryStoreAbsenceIsNotAnError(t *testing.T) {
	st := NewMemoryStore()

	conv, err := st.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, conv)
}

func TestMemoryStoreUpsertOverwrites(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	conv := model.NewConversation("conv-1")
	conv.Messages = []model.Message{model.NewResponseMessage(model.TextPart("v1"))}
	require.NoError(t, st.Upsert(ctx, conv.ID, conv))

	conv.Messages = append(conv.Messages, model.NewResponseMessage(model.TextPart("v2")))
	require.NoError(t, st.Upsert(ctx, conv.ID, conv))

	stored, err := st.FindByID(ctx, "conv-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Messages, 2)
}

func TestMemoryStoreReturnsIndependentCopies(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	conv := model.NewConversation("conv-1")
	conv.Messages = []model.Message{model.NewResponseMessage(model.TextPart("stored"))}
	require.NoError(t, st.Upsert(ctx, conv.ID, conv))

	first, err := st.FindByID(ctx, "conv-1")
	require.NoError(t, err)
	first.Messages[0].Parts[0].Content = "mutated"

	second, err := st.FindByID(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "stored", second.Messages[0].Parts[0].Content)
}

func TestMemoryStoreFindWithFeedbackSince(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	withRecent := model.NewConversation("recent")
	withRecent.AddFeedback(model.Feedback{ID: "f1", Vote: model.VotePositive, CreatedAt: now})
	require.NoError(t, st.Upsert(ctx, withRecent.ID, withRecent))

	withOld := model.NewConversation("old")
	withOld.AddFeedback(model.Feedback{ID: "f2", Vote: model.VoteNegative, CreatedAt: now.Add(-48 * time.Hour)})
	require.NoError(t, st.Upsert(ctx, withOld.ID, withOld))

	without := model.NewConversation("none")
	require.NoError(t, st.Upsert(ctx, without.ID, without))

	convs, err := st.FindWithFeedbackSince(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "recent", convs[0].ID)
}
