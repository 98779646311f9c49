package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxPendingLifecycle(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()
	now := testutil.Now()

	for i, id := range []string{"o1", "o2", "o3"} {
		require.NoError(t, repo.Insert(ctx, nil, model.OutboxEvent{
			ID:          id,
			Aggregate:   "user",
			AggregateID: "u1",
			EventType:   "UserRegistered",
			Payload:     []byte(`{"type":"UserRegistered"}`),
			CreatedAt:   now.Add(time.Duration(i) * time.Second),
		}))
	}

	pending, err := repo.Pending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "o1", pending[0].ID)
	assert.JSONEq(t, `{"type":"UserRegistered"}`, string(pending[0].Payload))

	require.NoError(t, repo.MarkPublished(ctx, "o1", now))
	require.NoError(t, repo.RecordFailure(ctx, "o2"))

	pending, err = repo.Pending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "o2", pending[0].ID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Nil(t, pending[0].PublishedAt)
}
