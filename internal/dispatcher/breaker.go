package dispatcher

import (
	"time"

	"github.com/jmehdipour/reminder/internal/logger"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// newBreaker opens after failThreshold consecutive failures and lets a single
// probe through once openFor has elapsed.
func newBreaker(name string, failThreshold int, openFor time.Duration) *gobreaker.CircuitBreaker {
	if failThreshold <= 0 {
		failThreshold = 3
	}
	if openFor <= 0 {
		openFor = 15 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     openFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failThreshold)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log.Warn("mail provider breaker",
				zap.String("provider", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

func ready(cb *gobreaker.CircuitBreaker) bool {
	return cb.State() != gobreaker.StateOpen
}
