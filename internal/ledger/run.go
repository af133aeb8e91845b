package ledger

import (
	"context"
	"time"
)

// Run refreshes the ledger once immediately, then on every tick of interval
// and on every value received from notify, until ctx is done. Refresh
// failures are logged and the loop carries on with the previous snapshot.
// A nil notify channel disables push-triggered refreshes.
func (l *Ledger) Run(ctx context.Context, interval time.Duration, notify <-chan struct{}) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	_, _ = l.Refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, _ = l.Refresh(ctx)
		case _, ok := <-notify:
			if !ok {
				notify = nil
				continue
			}
			_, _ = l.Refresh(ctx)
		}
	}
}
