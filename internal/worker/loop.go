// Package worker holds the background loops of the notification pipeline.
// Each loop runs until its context is cancelled and never stops on a failed
// pass: the failure is logged and the next pass retries.
package worker

import (
	"context"
	"time"
)

// sleepCtx waits for d or until ctx is done. It reports whether the caller
// should keep running.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func orNow(now func() time.Time) time.Time {
	if now == nil {
		return time.Now().UTC()
	}
	return now().UTC()
}
