package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmehdipour/reminder/internal/config"
	"github.com/jmehdipour/reminder/internal/db"
	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/util"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo users and upcoming events",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1) load config
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		// 2) connect MySQL
		sqlDB, err := db.MySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		log.Println(">> Seeding demo users...")
		ids, err := seedUsers(sqlDB)
		if err != nil {
			return err
		}

		log.Println(">> Seeding upcoming events...")
		if err := seedEvents(cmd.Context(), sqlDB, ids, cfg.Notifications.Window()); err != nil {
			return err
		}

		log.Println(">> Seed completed")
		return nil
	},
}

var demoUsers = []struct{ name, email string }{
	{"Ada Lovelace", "ada@example.com"},
	{"Alan Turing", "alan@example.com"},
	{"Grace Hopper", "grace@example.com"},
	{"Edsger Dijkstra", "edsger@example.com"},
}

// seedUsers inserts the demo users once (keyed by email) and returns their ids
// in demoUsers order.
func seedUsers(dbx *sqlx.DB) ([]string, error) {
	tx, err := dbx.Beginx()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Truncate(time.Second)
	ids := make([]string, 0, len(demoUsers))
	for _, u := range demoUsers {
		if _, err := tx.Exec(`INSERT IGNORE INTO users (id, name, email, created_at) VALUES (?, ?, ?, ?)`,
			util.New(), u.name, u.email, now); err != nil {
			return nil, fmt.Errorf("insert user %q: %w", u.email, err)
		}
		var id string
		if err := tx.Get(&id, `SELECT id FROM users WHERE email = ?`, u.email); err != nil {
			return nil, fmt.Errorf("load user %q: %w", u.email, err)
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit users: %w", err)
	}
	return ids, nil
}

// seedEvents adds one group event owned by the first user with everyone
// attending, and one personal event per user, all starting inside the
// reminder window.
func seedEvents(ctx context.Context, dbx *sqlx.DB, userIDs []string, window time.Duration) error {
	groups := repository.NewGroupEventsRepository(dbx)
	personal := repository.NewPersonalEventsRepository(dbx)

	tx, err := dbx.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC().Truncate(time.Second)
	startsAt := now.Add(window / 2)

	group := model.GroupEvent{ID: util.New(), OwnerID: userIDs[0], Title: "Team sync", StartsAt: startsAt, CreatedAt: now}
	if err := groups.Insert(ctx, tx, group); err != nil {
		return fmt.Errorf("insert group event: %w", err)
	}
	for _, id := range userIDs {
		if err := groups.AddAttendee(ctx, tx, group.ID, id, now); err != nil {
			return fmt.Errorf("add attendee %s: %w", id, err)
		}
	}

	for i, id := range userIDs {
		e := model.PersonalEvent{
			ID:        util.New(),
			OwnerID:   id,
			Title:     fmt.Sprintf("Focus block #%d", i+1),
			StartsAt:  startsAt.Add(time.Duration(i) * time.Minute),
			CreatedAt: now,
		}
		if err := personal.Insert(ctx, tx, e); err != nil {
			return fmt.Errorf("insert personal event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit events: %w", err)
	}
	return nil
}
