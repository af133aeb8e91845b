// Package panel is the presentation side of the ledger: it renders the panel
// label and today's activity list, and turns user gestures into daemon
// commands followed by a refresh.
package panel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/hamster-panel/internal/daemon"
	"github.com/Tiliavir/hamster-panel/internal/ledger"
	"github.com/Tiliavir/hamster-panel/internal/model"
)

// Panel pairs a tracker with the ledger mirroring it.
type Panel struct {
	tracker daemon.Tracker
	ledger  *ledger.Ledger
	now     func() time.Time
	log     *zap.SugaredLogger
}

// Option configures a Panel.
type Option func(*Panel)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Panel) { p.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Panel) { p.log = log }
}

// New returns a Panel. l should be fed from tr.
func New(tr daemon.Tracker, l *ledger.Ledger, opts ...Option) *Panel {
	p := &Panel{tracker: tr, ledger: l, now: time.Now, log: zap.NewNop().Sugar()}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Ledger returns the ledger the panel reads from.
func (p *Panel) Ledger() *ledger.Ledger { return p.ledger }

// Now returns the panel clock's current time.
func (p *Panel) Now() time.Time { return p.now() }

// Refresh re-fetches today's facts.
func (p *Panel) Refresh(ctx context.Context) (*ledger.Snapshot, error) {
	return p.ledger.Refresh(ctx)
}

// Start begins tracking name and refreshes. The new fact is visible only
// once the refresh has seen it.
func (p *Panel) Start(ctx context.Context, name string) (int64, error) {
	cmd, err := ledger.AppendActivity(name, p.now())
	if err != nil {
		return 0, err
	}
	id, err := p.tracker.AddFact(ctx, cmd.Name, cmd.StartEpoch, cmd.EndEpoch, cmd.Temporary)
	if err != nil {
		return 0, fmt.Errorf("starting %q: %w", cmd.Name, err)
	}
	p.log.Infow("started", "id", id, "name", cmd.Name)
	p.refreshAfterCommand(ctx)
	return id, nil
}

// Stop closes the current activity and returns it. stopped is false when
// nothing was running; that is not an error.
func (p *Panel) Stop(ctx context.Context) (fact model.Fact, stopped bool, err error) {
	snap := p.ledger.Snapshot()
	cur, _ := ledger.CurrentActivity(snap)
	cmd, err := ledger.StopCurrent(snap, p.now())
	if errors.Is(err, ledger.ErrNoOpenActivity) {
		return model.Fact{}, false, nil
	}
	if err != nil {
		return model.Fact{}, false, err
	}
	if err := p.tracker.StopTracking(ctx, cmd.EndEpoch); err != nil {
		return model.Fact{}, false, fmt.Errorf("stopping %q: %w", cur.Name, err)
	}
	p.log.Infow("stopped", "id", cmd.FactID, "name", cur.Name)
	end := time.Unix(cmd.EndEpoch, 0).UTC()
	cur.End = &end
	p.refreshAfterCommand(ctx)
	return cur, true, nil
}

// refreshAfterCommand re-fetches after the daemon accepted a command. A
// failure here leaves the previous snapshot and is only logged; the command
// itself succeeded.
func (p *Panel) refreshAfterCommand(ctx context.Context) {
	if _, err := p.ledger.Refresh(ctx); err != nil {
		p.log.Warnw("refresh after command failed", "error", err)
	}
}
