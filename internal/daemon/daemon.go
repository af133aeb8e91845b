// Package daemon talks to the process that owns the tracked facts: the
// Hamster service on the session bus, or a local file-backed stand-in.
package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/Tiliavir/hamster-panel/internal/model"
)

// Signal is a change notification pushed by the daemon. It carries no
// payload; receivers re-fetch.
type Signal int

const (
	FactsChanged Signal = iota
	ActivitiesChanged
	TagsChanged
	// ToggleCalled asks the UI to show or hide itself. It is not a refresh cue.
	ToggleCalled
)

func (s Signal) String() string {
	switch s {
	case FactsChanged:
		return "FactsChanged"
	case ActivitiesChanged:
		return "ActivitiesChanged"
	case TagsChanged:
		return "TagsChanged"
	case ToggleCalled:
		return "ToggleCalled"
	}
	return fmt.Sprintf("Signal(%d)", int(s))
}

// Tracker is the daemon's surface used by the panel.
type Tracker interface {
	// GetTodaysFacts returns today's facts as positional records.
	GetTodaysFacts(ctx context.Context) ([]model.RawRecord, error)
	// StopTracking closes whatever fact is open at endEpoch (UTC seconds).
	StopTracking(ctx context.Context, endEpoch int64) error
	// AddFact starts (endEpoch == 0) or records a fact and returns its id.
	AddFact(ctx context.Context, name string, startEpoch, endEpoch int64, temporary bool) (int64, error)
	// Signals delivers change notifications until Close.
	Signals() <-chan Signal
	Close() error
}

// ErrTransport matches every *TransportError.
var ErrTransport = errors.New("daemon transport failure")

// TransportError reports a failed call to the daemon.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("daemon %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// RefreshTriggers turns refresh-worthy signals into bare triggers for
// ledger.Run and hands ToggleCalled to onToggle, which may be nil. The
// returned channel closes when signals closes or ctx is done.
func RefreshTriggers(ctx context.Context, signals <-chan Signal, onToggle func()) <-chan struct{} {
	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case s, ok := <-signals:
				if !ok {
					return
				}
				if s == ToggleCalled {
					if onToggle != nil {
						onToggle()
					}
					continue
				}
				// Coalesce: one pending trigger is enough.
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()
	return out
}
