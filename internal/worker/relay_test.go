package worker

import (
	"context"
	"testing"
	"time"

	"github.com/jmehdipour/reminder/internal/integration"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayMarksPublishedOnlyAfterAck(t *testing.T) {
	db := testutil.NewDB(t)
	outbox := repository.NewOutboxRepository(db)
	ctx := context.Background()
	now := testutil.Now()

	pub := integration.NewOutboxPublisher(outbox)
	tick := now
	pub.Now = func() time.Time { tick = tick.Add(time.Second); return tick }
	for _, id := range []string{"g1", "g2", "g3"} {
		require.NoError(t, pub.Publish(ctx, &integration.GroupEventCancelled{Meta: integration.NewMeta(now), GroupEventID: id}))
	}

	w := &fakeWriter{failing: 1}
	r := &Relay{Outbox: outbox, Writer: w, BatchSize: 10, Now: func() time.Time { return now }}

	n, err := r.RunOnce(ctx)
	require.Error(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 3, testutil.Count(t, db, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`))
	assert.Equal(t, 1, testutil.Count(t, db, `SELECT COUNT(*) FROM outbox WHERE attempts = 1`))

	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, testutil.Count(t, db, `SELECT COUNT(*) FROM outbox WHERE published_at IS NULL`))

	require.Equal(t, 3, w.count())
	for i, id := range []string{"g1", "g2", "g3"} {
		assert.Equal(t, id, string(w.writes[i].key), "insertion order kept")
		ev, err := integration.Decode(w.writes[i].value)
		require.NoError(t, err)
		assert.Equal(t, id, ev.(*integration.GroupEventCancelled).GroupEventID)
	}

	n, err = r.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
