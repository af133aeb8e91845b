// Package daemontest provides an in-memory daemon.Tracker for tests.
package daemontest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Tiliavir/hamster-panel/internal/daemon"
	"github.com/Tiliavir/hamster-panel/internal/model"
	"github.com/Tiliavir/hamster-panel/internal/timecalc"
)

// Tracker keeps facts in memory with the same open/close rules as the
// Hamster service. It emits FactsChanged after every successful write.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	facts   []model.Fact
	nextID  int64
	err     error
	signals chan daemon.Signal

	// AddCalls counts AddFact invocations, failed ones included.
	AddCalls int
}

// New returns an empty tracker using now as its clock.
func New(now func() time.Time) *Tracker {
	if now == nil {
		now = time.Now
	}
	return &Tracker{now: now, nextID: 1, signals: make(chan daemon.Signal, 8)}
}

// Seed appends facts as-is.
func (t *Tracker) Seed(facts ...model.Fact) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, f := range facts {
		if f.ID >= t.nextID {
			t.nextID = f.ID + 1
		}
		t.facts = append(t.facts, f)
	}
}

// Fail makes every following call return a transport error wrapping err.
// Fail(nil) restores normal operation.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// Emit delivers s on Signals.
func (t *Tracker) Emit(s daemon.Signal) {
	t.signals <- s
}

// Facts returns a copy of the stored facts.
func (t *Tracker) Facts() []model.Fact {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Fact(nil), t.facts...)
}

func (t *Tracker) GetTodaysFacts(ctx context.Context) ([]model.RawRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx, "GetTodaysFacts"); err != nil {
		return nil, err
	}
	now := t.now()
	out := make([]model.RawRecord, 0, len(t.facts))
	for _, f := range t.facts {
		end := now
		if f.End != nil {
			end = *f.End
		}
		f.DaemonSeconds = max(int64(end.Sub(f.Start)/time.Second), 0)
		out = append(out, f.Record())
	}
	return out, nil
}

func (t *Tracker) StopTracking(ctx context.Context, endEpoch int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.check(ctx, "StopTracking"); err != nil {
		return err
	}
	if endEpoch == 0 {
		endEpoch = timecalc.ToEpoch(t.now())
	}
	t.stopLocked(timecalc.FromEpoch(endEpoch))
	t.notify()
	return nil
}

func (t *Tracker) AddFact(ctx context.Context, name string, startEpoch, endEpoch int64, _ bool) (int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.AddCalls++
	if err := t.check(ctx, "AddFact"); err != nil {
		return 0, err
	}
	in := daemon.ParseFactString(name)
	if in.Activity == "" {
		return 0, errors.New("fact has no activity name")
	}
	start := timecalc.FromEpoch(startEpoch)
	if endEpoch == 0 {
		t.stopLocked(start)
	}
	f := model.Fact{
		ID:          t.nextID,
		Name:        in.Activity,
		Category:    in.Category,
		Description: in.Description,
		Tags:        in.Tags,
		Start:       start,
	}
	if endEpoch != 0 {
		end := timecalc.FromEpoch(endEpoch)
		f.End = &end
	}
	t.nextID++
	t.facts = append(t.facts, f)
	t.notify()
	return f.ID, nil
}

func (t *Tracker) Signals() <-chan daemon.Signal {
	return t.signals
}

func (t *Tracker) Close() error { return nil }

func (t *Tracker) check(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.err != nil {
		return &daemon.TransportError{Op: op, Err: t.err}
	}
	return nil
}

func (t *Tracker) stopLocked(end time.Time) {
	for i := range t.facts {
		if t.facts[i].End == nil {
			e := end
			if e.Before(t.facts[i].Start) {
				e = t.facts[i].Start
			}
			t.facts[i].End = &e
		}
	}
}

func (t *Tracker) notify() {
	select {
	case t.signals <- daemon.FactsChanged:
	default:
	}
}
