package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationsDue(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationsRepository(db)
	ctx := context.Background()
	now := testutil.Now()

	testutil.InsertUser(t, db, "u1", "Ana", "ana@example.com")
	testutil.InsertGroupEvent(t, db, "g1", "u1", "Board games", now.Add(-time.Minute))
	testutil.InsertPersonalEvent(t, db, "p1", "u1", "Dentist", now.Add(-time.Hour))

	testutil.InsertNotification(t, db, "n-late", "group", "g1", "u1", now.Add(-time.Minute), false)
	testutil.InsertNotification(t, db, "n-early", "personal", "p1", "u1", now.Add(-time.Hour), false)
	testutil.InsertNotification(t, db, "n-future", "group", "g1", "u1", now.Add(time.Hour), false)
	testutil.InsertNotification(t, db, "n-sent", "group", "g1", "u1", now.Add(-2*time.Hour), true)

	t.Run("oldest first, only due and unsent", func(t *testing.T) {
		rows, err := repo.Due(ctx, now, 0, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, "n-early", rows[0].ID)
		assert.Equal(t, "Dentist", rows[0].EventTitle)
		assert.Equal(t, "n-late", rows[1].ID)
		assert.Equal(t, "Board games", rows[1].EventTitle)
		assert.Equal(t, "ana@example.com", rows[1].RecipientEmail)
	})

	t.Run("limit", func(t *testing.T) {
		rows, err := repo.Due(ctx, now, 0, 1)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "n-early", rows[0].ID)
	})

	t.Run("attempt ceiling skips poison rows", func(t *testing.T) {
		require.NoError(t, repo.RecordFailure(ctx, "n-early", errors.New("smtp 451")))
		require.NoError(t, repo.RecordFailure(ctx, "n-early", errors.New("smtp 451")))

		rows, err := repo.Due(ctx, now, 2, 10)
		require.NoError(t, err)
		require.Len(t, rows, 1)
		assert.Equal(t, "n-late", rows[0].ID)

		rows, err = repo.Due(ctx, now, 0, 10)
		require.NoError(t, err)
		require.Len(t, rows, 2)
		assert.Equal(t, 2, rows[0].Attempts)
		require.NotNil(t, rows[0].LastError)
		assert.Equal(t, "smtp 451", *rows[0].LastError)
	})
}

func TestNotificationsMarkSentIsSingleWriter(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationsRepository(db)
	ctx := context.Background()
	now := testutil.Now()

	testutil.InsertNotification(t, db, "n1", "group", "g1", "u1", now, false)

	ok, err := repo.MarkSent(ctx, "n1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkSent(ctx, "n1", now.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, ok, "second writer must not win")

	var sentAt time.Time
	require.NoError(t, db.Get(&sentAt, `SELECT sent_at FROM notifications WHERE id = ?`, "n1"))
	assert.True(t, sentAt.Equal(now))
}

func TestNotificationsDeletePendingKeepsSentRows(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationsRepository(db)
	ctx := context.Background()
	now := testutil.Now()

	testutil.InsertNotification(t, db, "n-pending-1", "group", "g1", "u1", now, false)
	testutil.InsertNotification(t, db, "n-pending-2", "group", "g1", "u2", now, false)
	testutil.InsertNotification(t, db, "n-sent", "group", "g1", "u3", now, true)
	testutil.InsertNotification(t, db, "n-other-kind", "personal", "g1", "u1", now, false)

	n, err := repo.DeletePending(ctx, nil, model.EventKindGroup, "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	assert.Equal(t, 1, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications WHERE id = 'n-sent'`))
	assert.Equal(t, 1, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications WHERE id = 'n-other-kind'`))

	n, err = repo.DeletePending(ctx, nil, model.EventKindGroup, "g1")
	require.NoError(t, err)
	assert.EqualValues(t, 0, n, "second removal is a no-op")
}

func TestNotificationsInsertBatchAndMaterialized(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationsRepository(db)
	ctx := context.Background()
	at := testutil.Now().Add(10 * time.Minute)

	rows := []model.Notification{
		{ID: "n1", EventKind: model.EventKindGroup, EventID: "g1", RecipientID: "u1", ScheduledAt: at, CreatedAt: testutil.Now()},
		{ID: "n2", EventKind: model.EventKindGroup, EventID: "g1", RecipientID: "u2", ScheduledAt: at, CreatedAt: testutil.Now()},
		{ID: "n3", EventKind: model.EventKindGroup, EventID: "g2", RecipientID: "u1", ScheduledAt: at, CreatedAt: testutil.Now()},
	}
	require.NoError(t, repo.InsertBatch(ctx, nil, rows))

	got, err := repo.Materialized(ctx, nil, model.EventKindGroup, []string{"g1"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Len())
	assert.True(t, got.Has(rows[0]))
	assert.True(t, got.Has(rows[1]))
	assert.False(t, got.Has(rows[2]))

	moved := rows[0]
	moved.ScheduledAt = at.Add(5 * time.Minute)
	assert.True(t, got.Has(moved), "an unsent reminder blocks a second one at another time")

	got, err = repo.Materialized(ctx, nil, model.EventKindPersonal, []string{"g1", "g2"})
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())

	err = repo.InsertBatch(ctx, nil, rows[:1])
	assert.Error(t, err, "occurrence key is unique")
}

func TestMaterializedSentRowsKeyByOccurrence(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewNotificationsRepository(db)
	ctx := context.Background()
	at := testutil.Now().Add(-time.Hour)

	testutil.InsertNotification(t, db, "n1", "group", "g1", "u1", at, true)

	got, err := repo.Materialized(ctx, nil, model.EventKindGroup, []string{"g1"})
	require.NoError(t, err)

	same := model.Notification{EventKind: model.EventKindGroup, EventID: "g1", RecipientID: "u1", ScheduledAt: at}
	assert.True(t, got.Has(same))

	later := same
	later.ScheduledAt = at.Add(2 * time.Hour)
	assert.False(t, got.Has(later), "a rescheduled occurrence gets its own reminder once the old one was sent")
}
