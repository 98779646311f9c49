// Package command runs state-changing use cases inside one transaction and
// announces what changed once that transaction committed.
package command

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
)

// Dispatcher receives the domain events of a committed command.
type Dispatcher interface {
	Dispatch(ctx context.Context, events []model.DomainEvent)
}

// Stager writes the domain events of a command inside its transaction,
// before commit. A failure rolls the command back.
type Stager interface {
	Stage(ctx context.Context, tx *sqlx.Tx, events []model.DomainEvent) error
}

// Recorder collects domain events raised while a command runs.
type Recorder struct {
	events []model.DomainEvent
}

func (r *Recorder) Record(events ...model.DomainEvent) {
	for _, ev := range events {
		if ev != nil {
			r.events = append(r.events, ev)
		}
	}
}

func (r *Recorder) Events() []model.DomainEvent { return r.events }

type Executor struct {
	db         *sqlx.DB
	dispatcher Dispatcher
	stager     Stager
	log        *zap.Logger
}

// NewExecutor dispatches recorded events after commit.
func NewExecutor(db *sqlx.DB, dispatcher Dispatcher, log *zap.Logger) *Executor {
	return &Executor{db: db, dispatcher: dispatcher, log: logger.OrNop(log)}
}

// NewStagingExecutor stages recorded events in the command transaction
// instead of dispatching them after commit.
func NewStagingExecutor(db *sqlx.DB, stager Stager, log *zap.Logger) *Executor {
	return &Executor{db: db, stager: stager, log: logger.OrNop(log)}
}

// Exec runs fn in a transaction. When fn fails the transaction is rolled back
// and fn's error is returned as is. Recorded events are staged before commit
// or dispatched only after a successful commit, depending on the executor.
func (e *Executor) Exec(ctx context.Context, name string, fn func(ctx context.Context, tx *sqlx.Tx, rec *Recorder) error) error {
	start := time.Now()
	rec := &Recorder{}

	if err := e.inTx(ctx, rec, fn); err != nil {
		metrics.CommandsTotal.WithLabelValues(name, "failed").Inc()
		e.log.Info("command failed",
			zap.String("command", name),
			zap.Duration("took", time.Since(start)),
			zap.Error(err),
		)
		return err
	}

	metrics.CommandsTotal.WithLabelValues(name, "committed").Inc()
	e.log.Debug("command committed",
		zap.String("command", name),
		zap.Int("events", len(rec.events)),
		zap.Duration("took", time.Since(start)),
	)

	if len(rec.events) > 0 && e.dispatcher != nil {
		// the state is committed; a client hanging up must not stop the announcement
		e.dispatcher.Dispatch(context.WithoutCancel(ctx), rec.Events())
	}
	return nil
}

func (e *Executor) inTx(ctx context.Context, rec *Recorder, fn func(context.Context, *sqlx.Tx, *Recorder) error) error {
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx, rec); err != nil {
		return err
	}
	if e.stager != nil && len(rec.events) > 0 {
		if err := e.stager.Stage(ctx, tx, rec.Events()); err != nil {
			return fmt.Errorf("stage events: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Query runs read-only work without a transaction.
func (e *Executor) Query(ctx context.Context, fn func(ctx context.Context, db *sqlx.DB) error) error {
	return fn(ctx, e.db)
}
