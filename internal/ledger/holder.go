package ledger

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Tiliavir/hamster-panel/internal/model"
)

// Source fetches today's raw fact records.
type Source interface {
	GetTodaysFacts(ctx context.Context) ([]model.RawRecord, error)
}

// Ledger holds the current snapshot and refreshes it from a Source.
// Snapshot is safe to call from any goroutine.
type Ledger struct {
	src     Source
	loc     *time.Location
	log     *zap.SugaredLogger
	now     func() time.Time
	current atomic.Pointer[Snapshot]
	changes chan *Snapshot

	// fetching admits one fetch at a time. requested counts Refresh calls;
	// fetched is the highest count a successful fetch started after.
	fetching  *semaphore.Weighted
	requested atomic.Uint64
	fetched   atomic.Uint64
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLocation sets the display zone for snapshots.
func WithLocation(loc *time.Location) Option {
	return func(l *Ledger) { l.loc = loc }
}

// WithLogger sets the logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger holding an empty snapshot.
func New(src Source, opts ...Option) *Ledger {
	l := &Ledger{
		src:      src,
		loc:      time.Local,
		log:      zap.NewNop().Sugar(),
		now:      time.Now,
		changes:  make(chan *Snapshot, 1),
		fetching: semaphore.NewWeighted(1),
	}
	for _, o := range opts {
		o(l)
	}
	l.current.Store(Empty(l.loc))
	return l
}

// Snapshot returns the installed snapshot. It is never nil.
func (l *Ledger) Snapshot() *Snapshot {
	return l.current.Load()
}

// Location returns the display zone.
func (l *Ledger) Location() *time.Location {
	return l.loc
}

// Changes delivers each newly installed snapshot. Only the latest
// undelivered snapshot is kept, so a slow consumer skips intermediate ones.
func (l *Ledger) Changes() <-chan *Snapshot {
	return l.changes
}

// Refresh fetches and installs a new snapshot. Fetches never overlap. A
// caller waiting behind an in-flight fetch does not reuse its result, since
// that fetch may predate the caller's reason to refresh; it is answered by
// the next fetch to start, which callers queued together share. When the
// fetch fails, the previous snapshot stays installed and the error is
// returned.
func (l *Ledger) Refresh(ctx context.Context) (*Snapshot, error) {
	ticket := l.requested.Add(1)

	if err := l.fetching.Acquire(ctx, 1); err != nil {
		return l.Snapshot(), fmt.Errorf("refreshing facts: %w", err)
	}
	defer l.fetching.Release(1)

	if l.fetched.Load() >= ticket {
		return l.Snapshot(), nil
	}

	covers := l.requested.Load()
	records, err := l.src.GetTodaysFacts(ctx)
	if err != nil {
		l.log.Warnw("refresh failed, keeping previous snapshot", "error", err)
		return l.Snapshot(), fmt.Errorf("refreshing facts: %w", err)
	}
	snap := Ingest(records, l.loc)
	snap.FetchedAt = l.now()
	l.install(snap)
	l.fetched.Store(covers)
	l.log.Debugw("refreshed", "facts", len(snap.Facts), "skipped", snap.Skipped)
	return snap, nil
}

func (l *Ledger) install(snap *Snapshot) {
	l.current.Store(snap)
	for _, err := range snap.Malformed {
		l.log.Warnw("skipped fact record", "error", err)
	}
	// Replace any undelivered snapshot with the newest one.
	select {
	case <-l.changes:
	default:
	}
	select {
	case l.changes <- snap:
	default:
	}
}
