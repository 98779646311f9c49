package worker

import (
	"github.com/jmehdipour/reminder/internal/model"
	"github.com/spf13/cobra"
)

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every worker in one process",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd,
			producer(model.EventKindGroup),
			producer(model.EventKindPersonal),
			mailer,
			consumer,
			outboxRelay,
		)
	},
}

// outboxRelay runs the relay only when the API writes to the outbox.
func outboxRelay(d *deps) (runner, error) {
	if !d.cfg.Publisher.OutboxMode() {
		return nil, nil
	}
	return relay(d)
}
