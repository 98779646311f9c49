package worker

import (
	"fmt"
	"strings"

	"github.com/jmehdipour/reminder/internal/config"
	"github.com/jmehdipour/reminder/internal/dispatcher"
	"github.com/jmehdipour/reminder/internal/repository"
	"github.com/jmehdipour/reminder/internal/worker"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Send due reminders",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, mailer)
	},
}

// newDispatcher builds the mail transport from the enabled providers.
func newDispatcher(mc config.MailConfig) (*dispatcher.Dispatcher, error) {
	var provs []dispatcher.Provider
	for _, pc := range mc.Providers {
		if !pc.Enabled {
			continue
		}
		switch strings.ToLower(pc.Kind) {
		case "smtp":
			if strings.TrimSpace(pc.SMTPAddr) == "" {
				continue
			}
			provs = append(provs, dispatcher.NewSMTPProvider(
				pc.Name,
				pc.SMTPAddr,
				pc.Username,
				pc.Password,
				mc.From,
				pc.TimeoutMs,
				pc.Breaker.FailThreshold,
				pc.Breaker.OpenForMs,
			))
		default:
			if strings.TrimSpace(pc.BaseURL) == "" {
				continue
			}
			provs = append(provs, dispatcher.NewHTTPProvider(
				pc.Name,
				pc.BaseURL,
				pc.Path,
				pc.APIKey,
				mc.From,
				pc.TimeoutMs,
				pc.Breaker.FailThreshold,
				pc.Breaker.OpenForMs,
			))
		}
	}
	if len(provs) == 0 {
		return nil, fmt.Errorf("no mail providers enabled in config")
	}
	return dispatcher.NewDispatcher(provs, mc.MaxRetryAttempts), nil
}

func mailer(d *deps) (runner, error) {
	disp, err := newDispatcher(d.cfg.Mail)
	if err != nil {
		return nil, err
	}

	nc := d.cfg.Notifications
	m := &worker.Mailer{
		Notifications: repository.NewNotificationsRepository(d.mysql),
		Sender:        disp,
		BatchSize:     nc.NotificationsBatchSize,
		MaxAttempts:   nc.MaxSendAttempts,
		Sleep:         nc.Sleep(),
		Log:           d.log,
	}

	ch, err := d.clickhouse()
	if err != nil {
		return nil, err
	}
	if ch != nil {
		m.Deliveries = repository.NewCHDeliveriesRepository(ch)
	}

	d.log.Info(">> mailer configured",
		zap.Int("batch", m.BatchSize),
		zap.Int("max_attempts", m.MaxAttempts),
		zap.Bool("delivery_log", m.Deliveries != nil),
	)
	return m.Run, nil
}
