package daemon

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/Tiliavir/hamster-panel/internal/model"
)

// Well-known names of the Hamster service.
const (
	BusName    = "org.gnome.Hamster"
	ObjectPath = dbus.ObjectPath("/org/gnome/Hamster")
	Interface  = "org.gnome.Hamster"
)

// DBusTracker is a Tracker backed by the Hamster service on the session bus.
type DBusTracker struct {
	conn    *dbus.Conn
	obj     dbus.BusObject
	log     *zap.SugaredLogger
	raw     chan *dbus.Signal
	signals chan Signal
	done    chan struct{}
	once    sync.Once
}

// DialSession connects to the session bus and subscribes to Hamster signals.
func DialSession(ctx context.Context, log *zap.SugaredLogger) (*DBusTracker, error) {
	conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
	if err != nil {
		return nil, &TransportError{Op: "connect", Err: err}
	}
	t, err := newDBusTracker(conn, log)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return t, nil
}

func newDBusTracker(conn *dbus.Conn, log *zap.SugaredLogger) (*DBusTracker, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	t := &DBusTracker{
		conn:    conn,
		obj:     conn.Object(BusName, ObjectPath),
		log:     log,
		raw:     make(chan *dbus.Signal, 16),
		signals: make(chan Signal, 16),
		done:    make(chan struct{}),
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(ObjectPath),
		dbus.WithMatchInterface(Interface),
	); err != nil {
		return nil, &TransportError{Op: "subscribe", Err: err}
	}
	conn.Signal(t.raw)
	go t.forward()
	return t, nil
}

// GetTodaysFacts calls GetTodaysFacts, whose reply signature is a(iiissisasii).
func (t *DBusTracker) GetTodaysFacts(ctx context.Context) ([]model.RawRecord, error) {
	call := t.obj.CallWithContext(ctx, Interface+".GetTodaysFacts", 0)
	if call.Err != nil {
		return nil, &TransportError{Op: "GetTodaysFacts", Err: call.Err}
	}
	if len(call.Body) != 1 {
		return nil, &TransportError{Op: "GetTodaysFacts", Err: fmt.Errorf("unexpected reply with %d values", len(call.Body))}
	}
	recs, err := recordsFromBody(call.Body[0])
	if err != nil {
		return nil, &TransportError{Op: "GetTodaysFacts", Err: err}
	}
	return recs, nil
}

// StopTracking calls StopTracking(i).
func (t *DBusTracker) StopTracking(ctx context.Context, endEpoch int64) error {
	end, err := epoch32(endEpoch)
	if err != nil {
		return err
	}
	if err := t.obj.CallWithContext(ctx, Interface+".StopTracking", 0, end).Err; err != nil {
		return &TransportError{Op: "StopTracking", Err: err}
	}
	return nil
}

// AddFact calls AddFact(siib) and returns the new fact id.
func (t *DBusTracker) AddFact(ctx context.Context, name string, startEpoch, endEpoch int64, temporary bool) (int64, error) {
	start, err := epoch32(startEpoch)
	if err != nil {
		return 0, err
	}
	end, err := epoch32(endEpoch)
	if err != nil {
		return 0, err
	}
	var id int32
	call := t.obj.CallWithContext(ctx, Interface+".AddFact", 0, name, start, end, temporary)
	if err := call.Store(&id); err != nil {
		return 0, &TransportError{Op: "AddFact", Err: err}
	}
	return int64(id), nil
}

// Signals delivers Hamster change notifications.
func (t *DBusTracker) Signals() <-chan Signal {
	return t.signals
}

// Close unsubscribes and closes the bus connection.
func (t *DBusTracker) Close() error {
	var err error
	t.once.Do(func() {
		close(t.done)
		t.conn.RemoveSignal(t.raw)
		_ = t.conn.RemoveMatchSignal(
			dbus.WithMatchObjectPath(ObjectPath),
			dbus.WithMatchInterface(Interface),
		)
		err = t.conn.Close()
	})
	return err
}

func (t *DBusTracker) forward() {
	defer close(t.signals)
	for {
		select {
		case <-t.done:
			return
		case sig, ok := <-t.raw:
			if !ok {
				return
			}
			s, known := signalFromName(sig.Name)
			if !known {
				t.log.Debugw("ignoring signal", "name", sig.Name)
				continue
			}
			t.log.Debugw("daemon signal", "signal", s)
			select {
			case t.signals <- s:
			default:
				// A refresh is already pending.
			}
		}
	}
}

func signalFromName(name string) (Signal, bool) {
	member, ok := strings.CutPrefix(name, Interface+".")
	if !ok {
		return 0, false
	}
	switch member {
	case "FactsChanged":
		return FactsChanged, true
	case "ActivitiesChanged":
		return ActivitiesChanged, true
	case "TagsChanged":
		return TagsChanged, true
	case "ToggleCalled":
		return ToggleCalled, true
	}
	return 0, false
}

// recordsFromBody unpacks an array of structs as decoded by godbus. A
// non-struct element becomes a one-field record, which the ledger skips.
func recordsFromBody(body any) ([]model.RawRecord, error) {
	switch v := body.(type) {
	case [][]any:
		out := make([]model.RawRecord, len(v))
		for i, rec := range v {
			out[i] = model.RawRecord(rec)
		}
		return out, nil
	case []any:
		out := make([]model.RawRecord, len(v))
		for i, item := range v {
			if rec, ok := item.([]any); ok {
				out[i] = model.RawRecord(rec)
			} else {
				out[i] = model.RawRecord{item}
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("unexpected reply type %T", body)
}

// epoch32 narrows epoch seconds to the daemon's int32 wire type.
func epoch32(sec int64) (int32, error) {
	if sec < math.MinInt32 || sec > math.MaxInt32 {
		return 0, fmt.Errorf("epoch %d does not fit the daemon's 32-bit timestamps", sec)
	}
	return int32(sec), nil
}
