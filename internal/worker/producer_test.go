package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/testutil"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGroupProducer(db *sqlx.DB, now time.Time, batch, attendeeBatch int) *Producer {
	return &Producer{
		DB: db,
		Source: GroupSource{
			Groups:            repository.NewGroupEventsRepository(db),
			AttendeeBatchSize: attendeeBatch,
		},
		Notifications: repository.NewNotificationsRepository(db),
		Window:        15 * time.Minute,
		BatchSize:     batch,
		Now:           func() time.Time { return now },
	}
}

func TestProducerThreeAttendeesOnce(t *testing.T) {
	db := testutil.NewDB(t)
	now := testutil.Now()
	start := now.Add(10 * time.Minute)

	testutil.InsertGroupEvent(t, db, "g1", "u1", "Hike", start)
	for _, u := range []string{"u1", "u2", "u3"} {
		testutil.AddAttendee(t, db, "g1", u)
	}

	p := newGroupProducer(db, now, 50, 200)

	created, more, err := p.ScanPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, created)
	assert.False(t, more)

	var rows []struct {
		Recipient   string    `db:"recipient_id"`
		ScheduledAt time.Time `db:"scheduled_at"`
		Sent        bool      `db:"sent"`
	}
	require.NoError(t, db.Select(&rows, `SELECT recipient_id, scheduled_at, sent FROM notifications ORDER BY recipient_id`))
	require.Len(t, rows, 3)
	for i, r := range rows {
		assert.Equal(t, fmt.Sprintf("u%d", i+1), r.Recipient)
		assert.True(t, r.ScheduledAt.Equal(start))
		assert.False(t, r.Sent)
	}

	created, _, err = p.ScanPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created, "rerun creates nothing")
	assert.Equal(t, 3, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications`))
}

func TestProducerNoDuplicatesAcrossPagesAndScans(t *testing.T) {
	db := testutil.NewDB(t)
	now := testutil.Now()

	// five events in the window, one at each bound, one outside, one cancelled
	starts := map[string]time.Time{
		"g1": now,
		"g2": now.Add(time.Minute),
		"g3": now.Add(time.Minute),
		"g4": now.Add(7 * time.Minute),
		"g5": now.Add(15 * time.Minute),
		"g6": now.Add(16 * time.Minute),
	}
	for id, at := range starts {
		testutil.InsertGroupEvent(t, db, id, "owner", id, at)
		testutil.AddAttendee(t, db, id, "a")
		testutil.AddAttendee(t, db, id, "b")
		testutil.AddAttendee(t, db, id, "c")
	}
	testutil.InsertGroupEvent(t, db, "gx", "owner", "cancelled", now.Add(time.Minute))
	testutil.AddAttendee(t, db, "gx", "a")
	_, err := db.Exec(`UPDATE group_events SET cancelled = 1 WHERE id = 'gx'`)
	require.NoError(t, err)

	p := newGroupProducer(db, now, 2, 2)
	ctx := context.Background()

	var pages []int
	for {
		created, more, err := p.ScanPage(ctx)
		require.NoError(t, err)
		pages = append(pages, created)
		if !more {
			break
		}
	}
	assert.Equal(t, []int{6, 6, 3}, pages)
	assert.Equal(t, 15, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications`))
	assert.Equal(t, 0, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications WHERE event_id IN ('g6', 'gx')`))

	for i := 0; i < 3; i++ {
		_, _, err := p.ScanPage(ctx)
		require.NoError(t, err)
	}
	assert.Equal(t, 15, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications`))
	assert.Equal(t, 0, testutil.Count(t, db, `
		SELECT COUNT(*) FROM (
			SELECT event_id, recipient_id, scheduled_at FROM notifications
			 GROUP BY event_id, recipient_id, scheduled_at HAVING COUNT(*) > 1
		)`))
}

func TestProducerNewAttendeeAddsOnlyMissingRow(t *testing.T) {
	db := testutil.NewDB(t)
	now := testutil.Now()
	testutil.InsertGroupEvent(t, db, "g1", "u1", "Hike", now.Add(5*time.Minute))
	testutil.AddAttendee(t, db, "g1", "u1")

	p := newGroupProducer(db, now, 50, 200)
	created, _, err := p.ScanPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	testutil.AddAttendee(t, db, "g1", "u2")
	created, _, err = p.ScanPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications WHERE recipient_id = 'u2'`))
}

func TestPersonalProducerRemindsOwner(t *testing.T) {
	db := testutil.NewDB(t)
	now := testutil.Now()
	testutil.InsertPersonalEvent(t, db, "p1", "owner", "Dentist", now.Add(3*time.Minute))

	p := &Producer{
		DB:            db,
		Source:        PersonalSource{Personal: repository.NewPersonalEventsRepository(db)},
		Notifications: repository.NewNotificationsRepository(db),
		Window:        15 * time.Minute,
		BatchSize:     10,
		Now:           func() time.Time { return now },
	}
	created, more, err := p.ScanPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.False(t, more)
	assert.Equal(t, 1, testutil.Count(t, db,
		`SELECT COUNT(*) FROM notifications WHERE event_kind = 'personal' AND recipient_id = 'owner'`))
}

func TestProducerRunStopsOnCancel(t *testing.T) {
	db := testutil.NewDB(t)
	now := testutil.Now()
	testutil.InsertGroupEvent(t, db, "g1", "u1", "Hike", now.Add(5*time.Minute))
	testutil.AddAttendee(t, db, "g1", "u1")

	p := newGroupProducer(db, now, 50, 200)
	p.Sleep = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool {
		var n int
		_ = db.Get(&n, `SELECT COUNT(*) FROM notifications`)
		return n == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("producer did not stop")
	}
}

func TestProducerRescheduleKeepsOneUnsentReminder(t *testing.T) {
	db := testutil.NewDB(t)
	now := testutil.Now()
	testutil.InsertGroupEvent(t, db, "g1", "u1", "Hike", now.Add(10*time.Minute))
	testutil.AddAttendee(t, db, "g1", "u1")

	p := newGroupProducer(db, now, 50, 200)
	ctx := context.Background()

	created, _, err := p.ScanPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, created)

	moved := now.Add(12 * time.Minute)
	_, err = db.Exec(`UPDATE group_events SET starts_at = ? WHERE id = 'g1'`, moved)
	require.NoError(t, err)

	created, _, err = p.ScanPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created, "the stale reminder must be dropped before a new one appears")
	assert.Equal(t, 1, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications WHERE event_id = 'g1' AND sent = 0`))

	_, err = repository.NewNotificationsRepository(db).DeletePending(ctx, nil, model.EventKindGroup, "g1")
	require.NoError(t, err)

	created, _, err = p.ScanPage(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, 1, testutil.Count(t, db,
		`SELECT COUNT(*) FROM notifications WHERE event_id = 'g1' AND sent = 0 AND scheduled_at = ?`, moved))
}

func TestProducerZeroRecipientsCreatesNothing(t *testing.T) {
	db := testutil.NewDB(t)
	now := testutil.Now()
	testutil.InsertGroupEvent(t, db, "g1", "u1", "Empty room", now.Add(5*time.Minute))

	created, more, err := newGroupProducer(db, now, 50, 200).ScanPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, created)
	assert.False(t, more)
	assert.Equal(t, 0, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications`))
}

// flakySource fails recipient lookups for one event a number of times.
type flakySource struct {
	EventSource
	failOn   string
	failures int
}

func (s *flakySource) Recipients(ctx context.Context, ev model.UpcomingEvent) ([]string, error) {
	if ev.ID == s.failOn && s.failures > 0 {
		s.failures--
		return nil, errors.New("attendee lookup failed")
	}
	return s.EventSource.Recipients(ctx, ev)
}

// halfInsert stores the first row of a batch, then fails.
type halfInsert struct {
	repository.NotificationsRepository
	failures int
}

func (r *halfInsert) InsertBatch(ctx context.Context, tx *sqlx.Tx, rows []model.Notification) error {
	if r.failures == 0 {
		return r.NotificationsRepository.InsertBatch(ctx, tx, rows)
	}
	r.failures--
	if err := r.NotificationsRepository.InsertBatch(ctx, tx, rows[:1]); err != nil {
		return err
	}
	return errors.New("connection reset")
}

func TestProducerFailedPageIsRedoneWhole(t *testing.T) {
	seed := func(t *testing.T) (*sqlx.DB, time.Time) {
		db := testutil.NewDB(t)
		now := testutil.Now()
		for i, id := range []string{"g1", "g2", "g3"} {
			testutil.InsertGroupEvent(t, db, id, "owner", id, now.Add(time.Duration(i+1)*time.Minute))
			testutil.AddAttendee(t, db, id, "a")
			testutil.AddAttendee(t, db, id, "b")
		}
		return db, now
	}

	tests := []struct {
		name     string
		sabotage func(p *Producer)
	}{
		{"recipients of second event fail", func(p *Producer) {
			p.Source = &flakySource{EventSource: p.Source, failOn: "g2", failures: 1}
		}},
		{"insert fails midway", func(p *Producer) {
			p.Notifications = &halfInsert{NotificationsRepository: p.Notifications, failures: 1}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, now := seed(t)
			p := newGroupProducer(db, now, 2, 200)
			tt.sabotage(p)
			ctx := context.Background()

			// first page: g1, g2
			_, more, err := p.ScanPage(ctx)
			require.Error(t, err)
			assert.False(t, more)
			assert.True(t, p.cursor.IsZero(), "a failed page restarts the pass")
			assert.Equal(t, 0, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications`), "nothing of the page is kept")

			created, more, err := p.ScanPage(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, created, "the whole page is written on the next pass")
			assert.True(t, more)

			created, more, err = p.ScanPage(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, created)
			assert.False(t, more)
			assert.Equal(t, 6, testutil.Count(t, db, `SELECT COUNT(*) FROM notifications`))
		})
	}
}
