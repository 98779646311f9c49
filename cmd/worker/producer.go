package worker

import (
	"github.com/jmehdipour/reminder/internal/model"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newProducerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "producer",
		Short: "Start notification producer (group | personal)",
	}
	for _, kind := range []model.EventKind{model.EventKindGroup, model.EventKindPersonal} {
		kind := kind
		cmd.AddCommand(&cobra.Command{
			Use:   kind.String(),
			Short: "Create reminders for upcoming " + kind.String() + " events",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, producer(kind))
			},
		})
	}
	return cmd
}

func producer(kind model.EventKind) builder {
	return func(d *deps) (runner, error) {
		nc := d.cfg.Notifications
		p := &worker.Producer{
			DB:            d.mysql,
			Notifications: repository.NewNotificationsRepository(d.mysql),
			Window:        nc.Window(),
			Sleep:         nc.Sleep(),
			Log:           d.log,
		}

		switch kind {
		case model.EventKindGroup:
			p.Source = worker.GroupSource{
				Groups:            repository.NewGroupEventsRepository(d.mysql),
				AttendeeBatchSize: nc.AttendeeBatchSize,
			}
			p.BatchSize = nc.GroupEventBatchSize
		default:
			p.Source = worker.PersonalSource{Personal: repository.NewPersonalEventsRepository(d.mysql)}
			p.BatchSize = nc.PersonalEventBatchSize
		}

		d.log.Info(">> producer configured",
			zap.String("kind", kind.String()),
			zap.Duration("window", p.Window),
			zap.Int("batch", p.BatchSize),
		)
		return p.Run, nil
	}
}
