package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	CommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_commands_total",
			Help: "Transactional commands by name and outcome",
		},
		[]string{"command", "outcome"}, // committed|failed
	)

	TranslationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_translation_failures_total",
			Help: "Domain events that could not be translated or published after commit",
		},
		[]string{"event"},
	)

	PublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_published_total",
			Help: "Integration events handed to the publisher by mode and outcome",
		},
		[]string{"mode", "outcome"}, // direct|outbox , ok|error
	)

	NotificationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_notifications_created_total",
			Help: "Notifications materialized by the producers",
		},
		[]string{"kind"}, // group|personal
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_notifications_total",
			Help: "Notification delivery attempts by outcome",
		},
		[]string{"outcome"}, // sent|failed|raced
	)

	ConsumedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_consumed_total",
			Help: "Integration events consumed by type and outcome",
		},
		[]string{"type", "outcome"}, // handled|failed|duplicate|dead_lettered|skipped
	)

	RelayedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_outbox_relayed_total",
			Help: "Outbox rows relayed to the broker by outcome",
		},
		[]string{"outcome"}, // published|failed
	)

	MailTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reminder_mail_total",
			Help: "Mail transport calls by provider and outcome",
		},
		[]string{"provider", "outcome"}, // ok|error|rejected
	)
)

func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		CommandsTotal,
		TranslationFailures,
		PublishedTotal,
		NotificationsCreated,
		NotificationsTotal,
		ConsumedTotal,
		RelayedTotal,
		MailTotal,
	)
}
