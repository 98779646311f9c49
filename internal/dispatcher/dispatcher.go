package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/jmehdipour/reminder/internal/mail"
	"github.com/jmehdipour/reminder/internal/metrics"
	"github.com/sony/gobreaker"
)

var ErrNoHealthy = errors.New("no healthy providers")

// Dispatcher spreads messages over providers round-robin, skipping providers
// whose breaker is open, and retries up to maxAttempts times.
type Dispatcher struct {
	providers         []Provider
	roundRobinCounter atomic.Uint64
	maxAttempts       int
}

func NewDispatcher(provs []Provider, maxAttempts int) *Dispatcher {
	if maxAttempts < 1 {
		maxAttempts = 2
	}

	return &Dispatcher{providers: provs, maxAttempts: maxAttempts}
}

var _ mail.Sender = (*Dispatcher)(nil)

func (d *Dispatcher) selectProvider() (Provider, error) {
	healthy := make([]Provider, 0, len(d.providers))
	for _, p := range d.providers {
		if p.Ready() {
			healthy = append(healthy, p)
		}
	}

	if len(healthy) == 0 {
		return nil, ErrNoHealthy
	}

	x := d.roundRobinCounter.Add(1)
	idx := int((x - 1) % uint64(len(healthy)))

	return healthy[idx], nil
}

func (d *Dispatcher) tryOnce(ctx context.Context, msg mail.Message) error {
	p, err := d.selectProvider()
	if err != nil {
		return err
	}

	err = p.Send(ctx, msg)
	switch {
	case err == nil:
		metrics.MailTotal.WithLabelValues(p.Name(), "ok").Inc()
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.MailTotal.WithLabelValues(p.Name(), "rejected").Inc()
	default:
		metrics.MailTotal.WithLabelValues(p.Name(), "error").Inc()
	}
	return err
}

// Send returns nil once one provider accepted msg.
func (d *Dispatcher) Send(ctx context.Context, msg mail.Message) error {
	var last error
	for i := 0; i < d.maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.tryOnce(ctx, msg); err == nil {
			return nil
		} else {
			last = err
		}
	}

	if last == nil {
		last = errors.New("send failed")
	}

	return fmt.Errorf("mail to %s: %w", msg.To, last)
}
