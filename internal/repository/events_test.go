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

func TestUpcomingWindowAndCursor(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewGroupEventsRepository(db)
	ctx := context.Background()

	from := testutil.Now()
	to := from.Add(15 * time.Minute)

	testutil.InsertGroupEvent(t, db, "g-at-from", "u1", "a", from)
	testutil.InsertGroupEvent(t, db, "g-at-to", "u1", "b", to)
	testutil.InsertGroupEvent(t, db, "g-mid-b", "u1", "c", from.Add(5*time.Minute))
	testutil.InsertGroupEvent(t, db, "g-mid-a", "u1", "d", from.Add(5*time.Minute))
	testutil.InsertGroupEvent(t, db, "g-past", "u1", "e", from.Add(-time.Second))
	testutil.InsertGroupEvent(t, db, "g-late", "u1", "f", to.Add(time.Second))
	testutil.InsertGroupEvent(t, db, "g-cancelled", "u1", "g", from.Add(time.Minute))
	require.NoError(t, repo.SaveCancelled(ctx, nil, "g-cancelled"))

	all, err := repo.Upcoming(ctx, from, to, Cursor{}, 10)
	require.NoError(t, err)
	ids := make([]string, 0, len(all))
	for _, e := range all {
		ids = append(ids, e.ID)
	}
	assert.Equal(t, []string{"g-at-from", "g-mid-a", "g-mid-b", "g-at-to"}, ids)

	page1, err := repo.Upcoming(ctx, from, to, Cursor{}, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	page2, err := repo.Upcoming(ctx, from, to, After(page1[1]), 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, "g-mid-b", page2[0].ID)
	assert.Equal(t, "g-at-to", page2[1].ID)
	page3, err := repo.Upcoming(ctx, from, to, After(page2[1]), 2)
	require.NoError(t, err)
	assert.Empty(t, page3)
}

func TestAttendeesPagingAndIdempotentJoin(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewGroupEventsRepository(db)
	ctx := context.Background()

	for _, u := range []string{"u3", "u1", "u2"} {
		require.NoError(t, repo.AddAttendee(ctx, nil, "g1", u, testutil.Now()))
	}
	require.NoError(t, repo.AddAttendee(ctx, nil, "g1", "u2", testutil.Now()))

	first, err := repo.Attendees(ctx, "g1", "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"u1", "u2"}, first)

	rest, err := repo.Attendees(ctx, "g1", first[len(first)-1], 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"u3"}, rest)
}

func TestGetByIDNotFound(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	_, err := NewGroupEventsRepository(db).GetByID(ctx, nil, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = NewUsersRepository(db).GetByID(ctx, nil, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestSaveCancelledTwiceConflicts(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewPersonalEventsRepository(db)
	ctx := context.Background()

	testutil.InsertPersonalEvent(t, db, "p1", "u1", "Gym", testutil.Now())
	require.NoError(t, repo.SaveCancelled(ctx, nil, "p1"))
	err := repo.SaveCancelled(ctx, nil, "p1")
	assert.True(t, errors.Is(err, model.ErrConflict))

	ev, err := repo.GetByID(ctx, nil, "p1")
	require.NoError(t, err)
	assert.True(t, ev.Cancelled)
}
